// Package stream fans persisted tracking events out to downstream consumers.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"sitepulse/api/models"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"
)

// Publisher hands an already persisted event to a stream. Implementations must
// not block on delivery.
type Publisher interface {
	Publish(ctx context.Context, e *models.TrackingEvent) error
	Close()
}

// NoopPublisher drops every event. It is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *models.TrackingEvent) error { return nil }
func (NoopPublisher) Close()                                               {}

// KafkaPublisher produces events as JSON keyed by session id, so all events of
// a session land on the same partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	log      *zap.Logger
}

func NewKafkaPublisher(brokers, topic string, log *zap.Logger) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"client.id":         "sitepulse-api",
		"acks":              "1",
		"linger.ms":         20,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	k := &KafkaPublisher{producer: p, topic: topic, log: log}
	go k.watchDeliveries()
	log.Info("kafka publisher ready", zap.String("brokers", brokers), zap.String("topic", topic))
	return k, nil
}

// watchDeliveries drains delivery reports and logs failed ones.
func (k *KafkaPublisher) watchDeliveries() {
	for ev := range k.producer.Events() {
		switch m := ev.(type) {
		case *kafka.Message:
			if m.TopicPartition.Error != nil {
				k.log.Warn("kafka delivery failed",
					zap.String("key", string(m.Key)),
					zap.Error(m.TopicPartition.Error),
				)
			}
		case kafka.Error:
			k.log.Warn("kafka producer error", zap.Error(m))
		}
	}
}

func (k *KafkaPublisher) Publish(_ context.Context, e *models.TrackingEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to serialize tracking event: %w", err)
	}
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Key:            []byte(e.SessionID),
		Value:          payload,
	}
	if err := k.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// Close flushes pending messages for up to five seconds.
func (k *KafkaPublisher) Close() {
	if left := k.producer.Flush(5000); left > 0 {
		k.log.Warn("kafka messages not delivered before shutdown", zap.Int("pending", left))
	}
	k.producer.Close()
}

// New returns a Kafka publisher when brokers are configured, else a no-op one.
func New(brokers, topic string, log *zap.Logger) (Publisher, error) {
	if brokers == "" {
		return NoopPublisher{}, nil
	}
	return NewKafkaPublisher(brokers, topic, log)
}

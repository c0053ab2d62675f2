package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sitepulse/api/apperr"
	"sitepulse/api/database"
	"sitepulse/api/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type MongoStore struct {
	conn *database.Lazy[*database.MongoClient]
	log  *zap.Logger
}

func NewMongoStore(uri, dbName string, log *zap.Logger) *MongoStore {
	s := &MongoStore{log: log}
	s.conn = database.NewLazy("mongodb", func(ctx context.Context) (*database.MongoClient, error) {
		client, err := database.NewMongoDB(ctx, uri, dbName, log)
		if err != nil {
			return nil, err
		}
		s.ensureIndexes(ctx, client)
		return client, nil
	}, (*database.MongoClient).Close)
	return s
}

// ensureIndexes is best effort; a failure only slows queries down.
func (s *MongoStore) ensureIndexes(ctx context.Context, client *database.MongoClient) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "domain", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
	}
	if _, err := client.Collection(eventsCollection).Indexes().CreateMany(ctx, indexes); err != nil {
		s.log.Warn("failed to create tracking indexes", zap.Error(err))
	}
	chatIndex := mongo.IndexModel{Keys: bson.D{{Key: "timestamp", Value: -1}}}
	if _, err := client.Collection(chatCollection).Indexes().CreateOne(ctx, chatIndex); err != nil {
		s.log.Warn("failed to create chat index", zap.Error(err))
	}
}

func (s *MongoStore) events(ctx context.Context) (*mongo.Collection, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(eventsCollection), nil
}

func (s *MongoStore) Insert(ctx context.Context, e *models.TrackingEvent) (string, error) {
	coll, err := s.events(ctx)
	if err != nil {
		return "", err
	}
	res, err := coll.InsertOne(ctx, e)
	if err != nil {
		return "", apperr.Operation("insert tracking event", err)
	}
	return insertedID(res.InsertedID), nil
}

func (s *MongoStore) InsertMany(ctx context.Context, events []models.TrackingEvent) error {
	if len(events) == 0 {
		return nil
	}
	coll, err := s.events(ctx)
	if err != nil {
		return err
	}
	docs := make([]interface{}, len(events))
	for i := range events {
		docs[i] = &events[i]
	}
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		return apperr.Operation("insert tracking events", err)
	}
	return nil
}

func (s *MongoStore) FindByDomain(ctx context.Context, domain string, f models.EventFilter) ([]models.TrackingEvent, error) {
	coll, err := s.events(ctx)
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := coll.Find(ctx, mongoFilter(domain, f), opts)
	if err != nil {
		return nil, apperr.Operation("find tracking events", err)
	}
	defer cursor.Close(ctx)

	var events []models.TrackingEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, apperr.Operation("decode tracking events", err)
	}
	return events, nil
}

func mongoFilter(domain string, f models.EventFilter) bson.M {
	filter := bson.M{"domain": domain}
	if f.From != nil || f.To != nil {
		ts := bson.M{}
		if f.From != nil {
			ts["$gte"] = *f.From
		}
		if f.To != nil {
			ts["$lte"] = *f.To
		}
		filter["timestamp"] = ts
	}
	if f.DeviceType != "" {
		filter["device_type"] = f.DeviceType
	}
	if f.Browser != "" {
		filter["device_browser"] = f.Browser
	}
	if f.OS != "" {
		filter["device_os"] = f.OS
	}
	if f.PagePath != "" {
		filter["page_path"] = f.PagePath
	}
	return filter
}

func (s *MongoStore) HasDomain(ctx context.Context, domain string) (bool, error) {
	coll, err := s.events(ctx)
	if err != nil {
		return false, err
	}
	n, err := coll.CountDocuments(ctx, bson.M{"domain": domain}, options.Count().SetLimit(1))
	if err != nil {
		return false, apperr.Operation("count tracking events", err)
	}
	return n > 0, nil
}

func (s *MongoStore) Domains(ctx context.Context) ([]string, error) {
	coll, err := s.events(ctx)
	if err != nil {
		return nil, err
	}
	values, err := coll.Distinct(ctx, "domain", bson.M{})
	if err != nil {
		return nil, apperr.Operation("list domains", err)
	}

	domains := make([]string, 0, len(values))
	for _, v := range values {
		if d, ok := v.(string); ok && d != "" {
			domains = append(domains, d)
		}
	}
	sort.Strings(domains)
	return domains, nil
}

func (s *MongoStore) SaveChat(ctx context.Context, m *models.ChatMessage) (string, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return "", err
	}
	res, err := client.Collection(chatCollection).InsertOne(ctx, m)
	if err != nil {
		return "", apperr.Operation("insert chat message", err)
	}
	return insertedID(res.InsertedID), nil
}

func (s *MongoStore) RecentChats(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(clampLimit(limit)))
	cursor, err := client.Collection(chatCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, apperr.Operation("find chat history", err)
	}
	defer cursor.Close(ctx)

	var out []models.ChatMessage
	if err := cursor.All(ctx, &out); err != nil {
		return nil, apperr.Operation("decode chat history", err)
	}
	return out, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return err
	}
	if err := client.Client.Ping(ctx, nil); err != nil {
		return apperr.Unavailable("ping mongodb", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	return s.conn.Close()
}

func insertedID(id interface{}) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}

package store

import (
	"context"
	"fmt"

	"sitepulse/api/config"
	"sitepulse/api/models"

	"go.uber.org/zap"
)

const (
	eventsCollection = "tracking_data"
	chatCollection   = "chat_history"

	// MaxChatHistory bounds a single history read.
	MaxChatHistory = 200
)

// EventStore is the append-only persistence of tracking events.
type EventStore interface {
	// Insert persists one event and returns the store-assigned id.
	Insert(ctx context.Context, e *models.TrackingEvent) (string, error)
	// InsertMany persists events in one round trip where the backend allows it.
	InsertMany(ctx context.Context, events []models.TrackingEvent) error
	// FindByDomain returns the events of a domain matching f, oldest first.
	FindByDomain(ctx context.Context, domain string, f models.EventFilter) ([]models.TrackingEvent, error)
	// HasDomain reports whether at least one event exists for domain.
	HasDomain(ctx context.Context, domain string) (bool, error)
	// Domains lists distinct non-empty domains in ascending order.
	Domains(ctx context.Context) ([]string, error)
}

// ChatStore keeps LLM exchange history.
type ChatStore interface {
	SaveChat(ctx context.Context, m *models.ChatMessage) (string, error)
	// RecentChats returns at most limit messages, newest first.
	RecentChats(ctx context.Context, limit int) ([]models.ChatMessage, error)
}

// Store is a backend implementing both stores over one lazily established handle.
type Store interface {
	EventStore
	ChatStore
	Ping(ctx context.Context) error
	Close() error
}

// Open builds the store selected by cfg. No connection is made until the first
// operation.
func Open(cfg *config.Config, log *zap.Logger) (Store, error) {
	log = log.With(zap.String("component", "store"), zap.String("driver", cfg.Store.Driver))
	switch cfg.Store.Driver {
	case config.DriverMongo:
		return NewMongoStore(cfg.Store.MongoURL, cfg.Store.MongoDB, log), nil
	case config.DriverClickHouse:
		return NewClickHouseStore(cfg.ClickHouse, log), nil
	case config.DriverPostgres:
		return NewPostgresStore(cfg.Store.DatabaseURL, log), nil
	case config.DriverSQLite:
		return NewSQLiteStore(cfg.Store.SQLitePath, log), nil
	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxChatHistory {
		return MaxChatHistory
	}
	return limit
}

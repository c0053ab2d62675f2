package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// NewSQLiteDB opens a SQLite file with a busy timeout so concurrent writers
// wait instead of failing.
func NewSQLiteDB(ctx context.Context, path string, log *zap.Logger) (*DBClient, error) {
	if path == "" {
		return nil, fmt.Errorf("SQLITE_PATH is not set")
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	log.Info("opened SQLite database", zap.String("path", path))
	return &DBClient{DB: db, Dialect: "sqlite", log: log}, nil
}

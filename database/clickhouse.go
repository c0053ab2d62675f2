package database

import (
	"context"
	"fmt"
	"time"

	"sitepulse/api/config"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"
)

type ClickHouseClient struct {
	Conn clickhouse.Conn
	log  *zap.Logger
}

func NewClickHouseDB(ctx context.Context, cfg config.ClickHouseConfig, log *zap.Logger) (*ClickHouseClient, error) {
	if cfg.Host == "" || cfg.Database == "" {
		return nil, fmt.Errorf("CLICKHOUSE_HOST or CLICKHOUSE_DB_NAME is not set")
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "sitepulse-api", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 5 * time.Second,
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Info("connected to ClickHouse", zap.String("addr", options.Addr[0]), zap.String("db", cfg.Database))
	return &ClickHouseClient{Conn: conn, log: log}, nil
}

func (c *ClickHouseClient) Close() error {
	if c.Conn == nil {
		return nil
	}
	err := c.Conn.Close()
	c.log.Info("ClickHouse connection closed")
	return err
}

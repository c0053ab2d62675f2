package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type MongoClient struct {
	Client *mongo.Client
	DB     *mongo.Database
	log    *zap.Logger
}

func NewMongoDB(ctx context.Context, uri, dbName string, log *zap.Logger) (*MongoClient, error) {
	if uri == "" || dbName == "" {
		return nil, fmt.Errorf("MONGODB_URL or MONGODB_DB_NAME is not set")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(5 * time.Second)
	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Info("connected to MongoDB", zap.String("db", dbName))
	return &MongoClient{Client: client, DB: client.Database(dbName), log: log}, nil
}

func (c *MongoClient) Collection(name string) *mongo.Collection {
	return c.DB.Collection(name)
}

func (c *MongoClient) Close() error {
	if c.Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.Client.Disconnect(ctx)
	c.log.Info("MongoDB connection closed")
	return err
}

package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoClient wraps a handle to the document store used for conversations,
// messages and deferred notifications.
type MongoClient struct {
	DB *mongo.Database
}

// ConnectMongo opens the document store connection.
func ConnectMongo(uri, database string) (*MongoClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &MongoClient{DB: m.Database(database)}, nil
}

// Ping verifies the document store is reachable.
func (c *MongoClient) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

// Close disconnects the underlying client.
func (c *MongoClient) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

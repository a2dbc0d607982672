package config

import (
	"context"
	"crypto/tls"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var MongoClient *mongo.Client

// InitMongo connects to MongoDB and pings it. Chat session snapshots and
// voice buffers live there.
func InitMongo(cfg MongoConfig) error {
	if cfg.URI == "" {
		return errors.New("MONGO_URI is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(cfg.URI).
		SetServerSelectionTimeout(20 * time.Second).
		SetConnectTimeout(15 * time.Second).
		SetMaxPoolSize(20).
		SetMinPoolSize(1)

	// Atlas rejects the Go 1.24 default handshake on some clusters.
	if cfg.ForceTLS {
		clientOpts = clientOpts.SetTLSConfig(&tls.Config{
			InsecureSkipVerify: cfg.InsecureTLS,
			MinVersion:         tls.VersionTLS12,
			MaxVersion:         tls.VersionTLS12,
		})
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return err
	}

	MongoClient = client
	return nil
}

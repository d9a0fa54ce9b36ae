package config

import (
	"context"
	"crypto/tls"
	"errors"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

var MongoClient *mongo.Client

// MongoOptions builds client options for the tutorial and export-event stores.
// MONGO_FORCE_TLS_CONFIG pins TLS 1.2 for Atlas clusters that reject newer
// handshakes; MONGO_INSECURE_TLS skips verification (local only).
func MongoOptions(uri string) (*options.ClientOptions, error) {
	if uri == "" {
		return nil, errors.New("MONGO_URI environment variable is not set")
	}

	opts := options.Client().ApplyURI(uri).
		SetAppName("cvitapilot").
		SetServerSelectionTimeout(20 * time.Second).
		SetConnectTimeout(15 * time.Second).
		SetMaxPoolSize(10).
		SetMinPoolSize(1).
		SetRetryWrites(true).
		SetWriteConcern(writeconcern.Majority())

	if os.Getenv("MONGO_FORCE_TLS_CONFIG") == "true" {
		opts = opts.SetTLSConfig(&tls.Config{
			InsecureSkipVerify: os.Getenv("MONGO_INSECURE_TLS") == "true",
			MinVersion:         tls.VersionTLS12,
			MaxVersion:         tls.VersionTLS12,
		})
	}
	return opts, opts.Validate()
}

func InitMongo(uri string) error {
	opts, err := MongoOptions(uri)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
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

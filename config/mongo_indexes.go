package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoIndexes lists the indexes each collection needs, keyed by collection.
func MongoIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		"export_events": {
			// expires_at must be a Date for the TTL monitor
			{
				Keys:    bson.D{{Key: "expires_at", Value: 1}},
				Options: options.Index().SetName("ttl_expires_at").SetExpireAfterSeconds(0),
			},
			{
				Keys:    bson.D{{Key: "export_id", Value: 1}, {Key: "timestamp", Value: 1}},
				Options: options.Index().SetName("by_export_ts"),
			},
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetName("by_user"),
			},
		},
		"tutorial_progress": {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().SetName("uniq_user_id").SetUnique(true),
			},
		},
	}
}

func EnsureMongoIndexes(dbName string) error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}
	db := MongoClient.Database(dbName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	for coll, models := range MongoIndexes() {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			errs = append(errs, fmt.Errorf("%s indexes: %w", coll, err))
		}
	}
	return errors.Join(errs...)
}

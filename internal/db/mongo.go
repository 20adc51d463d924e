package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

type DB struct {
	client   *mongo.Client
	database *mongo.Database
}

func Connect(ctx context.Context, uri, database string) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	return &DB{
		client:   client,
		database: client.Database(database),
	}, nil
}

func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, nil)
}

func (d *DB) Collection(name string) *mongo.Collection {
	return d.database.Collection(name)
}

// EnsureIndexes creates every index the queries below rely on. Safe to run on
// every startup; index creation is idempotent.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "artisanProfile.coordinates", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "verificationToken", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		"jobs": {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "artisan", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
		"reviews": {
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "job", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "artisan", Value: 1}}},
		},
		"locations": {
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "coordinates", Value: "2dsphere"}}},
		},
		"categories": {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"messages": {
			{Keys: bson.D{{Key: "room", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		"audit_logs": {
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		},
	}

	for collection, models := range specs {
		if _, err := d.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating %s indexes: %w", collection, err)
		}
	}

	return nil
}

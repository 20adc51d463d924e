package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"abegfix/internal/models"
)

// ErrDuplicateLocation is returned when a location name is already taken.
var ErrDuplicateLocation = errors.New("location already exists")

type LocationRepository struct {
	collection *mongo.Collection
}

func NewLocationRepository(database *DB) *LocationRepository {
	return &LocationRepository{collection: database.Collection("locations")}
}

func (r *LocationRepository) Create(ctx context.Context, location *models.Location) error {
	location.Name = strings.TrimSpace(location.Name)
	location.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, location)
	if IsDuplicateKeyError(err) {
		return ErrDuplicateLocation
	}
	if err != nil {
		return fmt.Errorf("creating location: %w", err)
	}

	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		location.ID = id
	}
	return nil
}

func (r *LocationRepository) FindAll(ctx context.Context) ([]models.Location, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"isActive": true}, options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("querying locations: %w", err)
	}
	defer cursor.Close(ctx)

	var locations []models.Location
	if err := cursor.All(ctx, &locations); err != nil {
		return nil, fmt.Errorf("decoding locations: %w", err)
	}
	return locations, nil
}

func (r *LocationRepository) FindByID(ctx context.Context, id string) (*models.Location, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// FindByName matches the stored name case-insensitively on the full string.
func (r *LocationRepository) FindByName(ctx context.Context, name string) (*models.Location, error) {
	pattern := "^" + regexp.QuoteMeta(strings.TrimSpace(name)) + "$"
	return r.findOne(ctx, bson.M{"name": primitive.Regex{Pattern: pattern, Options: "i"}})
}

func (r *LocationRepository) findOne(ctx context.Context, filter bson.M) (*models.Location, error) {
	var location models.Location
	err := r.collection.FindOne(ctx, filter).Decode(&location)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying location: %w", err)
	}
	return &location, nil
}

// Nearby returns active locations ordered by distance from the given point.
func (r *LocationRepository) Nearby(ctx context.Context, lng, lat float64, radiusMeters float64, limit int64) ([]models.Location, error) {
	query := bson.M{
		"isActive": true,
		"coordinates": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": bson.A{lng, lat},
				},
				"$maxDistance": radiusMeters,
			},
		},
	}

	cursor, err := r.collection.Find(ctx, query, options.Find().SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying nearby locations: %w", err)
	}
	defer cursor.Close(ctx)

	var locations []models.Location
	if err := cursor.All(ctx, &locations); err != nil {
		return nil, fmt.Errorf("decoding nearby locations: %w", err)
	}
	return locations, nil
}

func (r *LocationRepository) SetActive(ctx context.Context, id string, active bool) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	result, err := r.collection.UpdateByID(ctx, oid, bson.M{"$set": bson.M{"isActive": active}})
	if err != nil {
		return fmt.Errorf("updating location: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

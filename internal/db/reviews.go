package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"abegfix/internal/models"
)

// ErrDuplicateReview is returned when a user already reviewed the job.
var ErrDuplicateReview = errors.New("review already exists for this job")

type ReviewRepository struct {
	collection *mongo.Collection
}

func NewReviewRepository(database *DB) *ReviewRepository {
	return &ReviewRepository{collection: database.Collection("reviews")}
}

func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	review.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, review)
	if IsDuplicateKeyError(err) {
		return ErrDuplicateReview
	}
	if err != nil {
		return fmt.Errorf("creating review: %w", err)
	}

	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		review.ID = id
	}
	return nil
}

func (r *ReviewRepository) FindByArtisan(ctx context.Context, artisanID primitive.ObjectID, page Page) ([]models.Review, int64, error) {
	return r.list(ctx, bson.M{"artisan": artisanID}, page)
}

func (r *ReviewRepository) FindByUser(ctx context.Context, userID primitive.ObjectID, page Page) ([]models.Review, int64, error) {
	return r.list(ctx, bson.M{"user": userID}, page)
}

func (r *ReviewRepository) list(ctx context.Context, query bson.M, page Page) ([]models.Review, int64, error) {
	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting reviews: %w", err)
	}

	cursor, err := r.collection.Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit()))
	if err != nil {
		return nil, 0, fmt.Errorf("querying reviews: %w", err)
	}
	defer cursor.Close(ctx)

	var reviews []models.Review
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, 0, fmt.Errorf("decoding reviews: %w", err)
	}

	return reviews, total, nil
}

func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*models.Review, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var review models.Review
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&review)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying review: %w", err)
	}
	return &review, nil
}

func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("deleting review: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AverageRating aggregates the artisan's mean review score. Zero with no
// error means the artisan has no reviews yet.
func (r *ReviewRepository) AverageRating(ctx context.Context, artisanID primitive.ObjectID) (float64, error) {
	cursor, err := r.collection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"artisan": artisanID}}},
		{{Key: "$group", Value: bson.M{
			"_id":    nil,
			"rating": bson.M{"$avg": "$rating"},
		}}},
	})
	if err != nil {
		return 0, fmt.Errorf("aggregating rating: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Rating float64 `bson:"rating"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("decoding rating: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Rating, nil
}

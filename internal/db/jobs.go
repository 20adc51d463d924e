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

type JobRepository struct {
	collection *mongo.Collection
}

func NewJobRepository(database *DB) *JobRepository {
	return &JobRepository{collection: database.Collection("jobs")}
}

func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	now := time.Now().UTC()
	job.Status = models.JobPending
	job.CreatedAt = now
	job.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, job)
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}

	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		job.ID = id
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id string) (*models.Job, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var job models.Job
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&job)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying job: %w", err)
	}
	return &job, nil
}

// FindByParticipant lists jobs where the user is either the customer or the
// artisan, newest first.
func (r *JobRepository) FindByParticipant(ctx context.Context, userID primitive.ObjectID, page Page) ([]models.Job, int64, error) {
	query := bson.M{"$or": bson.A{bson.M{"user": userID}, bson.M{"artisan": userID}}}
	return r.list(ctx, query, page)
}

func (r *JobRepository) FindAll(ctx context.Context, status models.JobStatus, page Page) ([]models.Job, int64, error) {
	query := bson.M{}
	if status != "" {
		query["status"] = status
	}
	return r.list(ctx, query, page)
}

func (r *JobRepository) list(ctx context.Context, query bson.M, page Page) ([]models.Job, int64, error) {
	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting jobs: %w", err)
	}

	cursor, err := r.collection.Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit()))
	if err != nil {
		return nil, 0, fmt.Errorf("querying jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var jobs []models.Job
	if err := cursor.All(ctx, &jobs); err != nil {
		return nil, 0, fmt.Errorf("decoding jobs: %w", err)
	}

	return jobs, total, nil
}

// HasCompletedJob reports whether the user has at least one completed job
// with the artisan.
func (r *JobRepository) HasCompletedJob(ctx context.Context, userID, artisanID primitive.ObjectID) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"user":    userID,
		"artisan": artisanID,
		"status":  models.JobCompleted,
	})
	if err != nil {
		return false, fmt.Errorf("counting completed jobs: %w", err)
	}
	return count > 0, nil
}

func (r *JobRepository) CountCompleted(ctx context.Context, artisanID primitive.ObjectID) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"artisan": artisanID,
		"status":  models.JobCompleted,
	})
	if err != nil {
		return 0, fmt.Errorf("counting completed jobs: %w", err)
	}
	return count, nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status models.JobStatus) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	result, err := r.collection.UpdateByID(ctx, oid, bson.M{
		"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("updating job status: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

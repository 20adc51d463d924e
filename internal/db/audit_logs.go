package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"abegfix/internal/models"
)

type AuditLogRepository struct {
	collection *mongo.Collection
}

func NewAuditLogRepository(database *DB) *AuditLogRepository {
	return &AuditLogRepository{collection: database.Collection("audit_logs")}
}

func (r *AuditLogRepository) Record(ctx context.Context, entry *models.AuditLog) error {
	entry.CreatedAt = time.Now().UTC()
	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("recording audit log: %w", err)
	}
	return nil
}

func (r *AuditLogRepository) List(ctx context.Context, action string, page Page) ([]models.AuditLog, int64, error) {
	query := bson.M{}
	if action != "" {
		query["action"] = action
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("counting audit logs: %w", err)
	}

	cursor, err := r.collection.Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit()))
	if err != nil {
		return nil, 0, fmt.Errorf("querying audit logs: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []models.AuditLog
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, 0, fmt.Errorf("decoding audit logs: %w", err)
	}

	return entries, total, nil
}

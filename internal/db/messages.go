package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"abegfix/internal/models"
)

type MessageRepository struct {
	collection *mongo.Collection
}

func NewMessageRepository(database *DB) *MessageRepository {
	return &MessageRepository{collection: database.Collection("messages")}
}

func (r *MessageRepository) Insert(ctx context.Context, message *models.Message) error {
	message.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, message)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		message.ID = id
	}
	return nil
}

// History returns the most recent messages for a room, oldest first so the
// client can render them in order.
func (r *MessageRepository) History(ctx context.Context, room string, limit int64) ([]models.Message, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"room": room}, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}

	// Reverse into chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
)

// Message belongs to a chat room named "<userID>:<artisanID>".
type Message struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Room      string             `bson:"room" json:"room"`
	SenderID  primitive.ObjectID `bson:"sender" json:"senderId"`
	Type      MessageType        `bson:"type" json:"type"`
	Text      string             `bson:"text,omitempty" json:"text,omitempty"`
	ImageURL  string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

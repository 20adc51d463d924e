package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ArtisanID primitive.ObjectID `bson:"artisan" json:"artisanId"`
	UserID    primitive.ObjectID `bson:"user" json:"userId"`
	JobID     primitive.ObjectID `bson:"job" json:"jobId"`
	Rating    int                `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

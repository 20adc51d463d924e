package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuditLog records a moderation action taken by an admin.
type AuditLog struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ActorID     primitive.ObjectID `bson:"actor" json:"actorId"`
	ActorRole   Role               `bson:"actorRole" json:"actorRole"`
	TargetID    primitive.ObjectID `bson:"target,omitempty" json:"targetId,omitempty"`
	TargetModel string             `bson:"targetModel,omitempty" json:"targetModel,omitempty"`
	Action      string             `bson:"action" json:"action"`
	Meta        map[string]any     `bson:"meta,omitempty" json:"meta,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

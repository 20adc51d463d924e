package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobAccepted   JobStatus = "accepted"
	JobInProgress JobStatus = "in-progress"
	JobCompleted  JobStatus = "completed"
	JobCancelled  JobStatus = "cancelled"
)

func ValidJobStatus(s JobStatus) bool {
	switch s {
	case JobPending, JobAccepted, JobInProgress, JobCompleted, JobCancelled:
		return true
	}
	return false
}

type Job struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user" json:"userId"`
	ArtisanID   primitive.ObjectID `bson:"artisan" json:"artisanId"`
	Title       string             `bson:"title,omitempty" json:"title,omitempty"`
	Description string             `bson:"description" json:"description"`
	Location    string             `bson:"location,omitempty" json:"location,omitempty"`
	Status      JobStatus          `bson:"status" json:"status"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

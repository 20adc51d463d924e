package db

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

var ErrNotFound = errors.New("not found")

func IsDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

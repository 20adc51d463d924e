package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	EmailQueue = "email"
	GeoQueue   = "geo"

	queueKeyPrefix = "queue:"
	popTimeout     = 5 * time.Second
)

// Queue is a Redis-list backed task queue. Producers LPUSH JSON payloads,
// workers block on BRPOP.
type Queue struct {
	client *redis.Client
}

func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

func (q *Queue) Enqueue(ctx context.Context, name string, task any) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encoding task: %w", err)
	}
	if err := q.client.LPush(ctx, queueKeyPrefix+name, payload).Err(); err != nil {
		return fmt.Errorf("enqueueing task: %w", err)
	}
	return nil
}

// Dequeue blocks until a task is available or the timeout passes. A nil
// payload with nil error means the timeout elapsed with nothing queued.
func (q *Queue) Dequeue(ctx context.Context, name string) ([]byte, error) {
	result, err := q.client.BRPop(ctx, popTimeout, queueKeyPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeueing task: %w", err)
	}
	// BRPop returns [key, value].
	if len(result) != 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

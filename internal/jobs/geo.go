package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"abegfix/internal/db"
	"abegfix/internal/geo"
	"abegfix/internal/models"
)

// GeoTask asks the worker to resolve an artisan's address into coordinates.
type GeoTask struct {
	UserID  string `json:"userId"`
	Address string `json:"address"`
}

// GeoWorker geocodes artisan addresses off the request path and stores the
// resulting point on the profile.
type GeoWorker struct {
	queue    *Queue
	geocoder *geo.Geocoder
	users    *db.UserRepository
}

func NewGeoWorker(queue *Queue, geocoder *geo.Geocoder, users *db.UserRepository) *GeoWorker {
	return &GeoWorker{queue: queue, geocoder: geocoder, users: users}
}

func (w *GeoWorker) Start(ctx context.Context) {
	slog.Info("starting geo worker", "component", "jobs")

	for {
		payload, err := w.queue.Dequeue(ctx, GeoQueue)
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			slog.Info("stopping geo worker", "component", "jobs")
			return
		}
		if err != nil {
			slog.Error("error dequeueing geo task", "component", "jobs", "error", err)
			time.Sleep(time.Second)
			continue
		}
		if payload == nil {
			continue
		}

		var task GeoTask
		if err := json.Unmarshal(payload, &task); err != nil {
			slog.Error("error decoding geo task", "component", "jobs", "error", err)
			continue
		}

		w.process(ctx, task)
	}
}

func (w *GeoWorker) process(ctx context.Context, task GeoTask) {
	point, err := w.geocoder.Geocode(ctx, task.Address)
	if err != nil {
		slog.Warn("error geocoding address", "component", "jobs", "user_id", task.UserID, "error", err)
		return
	}

	user, err := w.users.FindByID(ctx, task.UserID)
	if err != nil {
		slog.Warn("error loading user for geocoding", "component", "jobs", "user_id", task.UserID, "error", err)
		return
	}
	if user.ArtisanProfile == nil {
		return
	}

	user.ArtisanProfile.Coordinates = models.NewGeoPoint(point.Lng, point.Lat)
	if err := w.users.Save(ctx, user); err != nil {
		slog.Error("error saving geocoded coordinates", "component", "jobs", "user_id", task.UserID, "error", err)
	}
}

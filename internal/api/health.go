package api

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	"abegfix/internal/db"
)

type HealthHandler struct {
	database *db.DB
	redis    *redis.Client
}

func NewHealthHandler(database *db.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{database: database, redis: redisClient}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"database": "ok",
		"redis":    "ok",
	}
	status := http.StatusOK

	if err := h.database.Ping(r.Context()); err != nil {
		checks["database"] = "error"
		status = http.StatusServiceUnavailable
	}
	if err := h.redis.Ping(r.Context()).Err(); err != nil {
		checks["redis"] = "error"
		status = http.StatusServiceUnavailable
	}

	result := "ok"
	if status != http.StatusOK {
		result = "degraded"
	}

	writeJSON(w, status, map[string]any{
		"status": result,
		"checks": checks,
	})
}

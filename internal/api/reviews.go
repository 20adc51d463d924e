package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"abegfix/internal/db"
	"abegfix/internal/models"
)

type ReviewHandler struct {
	reviews *db.ReviewRepository
	jobs    *db.JobRepository
	users   *db.UserRepository
}

func NewReviewHandler(reviews *db.ReviewRepository, jobs *db.JobRepository, users *db.UserRepository) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, jobs: jobs, users: users}
}

type CreateReviewRequest struct {
	JobID   string `json:"jobId" validate:"required,len=24,hexadecimal"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"omitempty,max=1000"`
}

// POST /api/v1/reviews
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	var req CreateReviewRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	job, err := h.jobs.FindByID(r.Context(), req.JobID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Job not found")
		return
	}
	if err != nil {
		slog.Error("error loading job", "error", err)
		internalError(w)
		return
	}
	if job.UserID != user.ID {
		forbidden(w, "Only the job's customer can leave a review")
		return
	}
	if job.Status != models.JobCompleted {
		conflict(w, "Only completed jobs can be reviewed")
		return
	}

	review := &models.Review{
		ArtisanID: job.ArtisanID,
		UserID:    user.ID,
		JobID:     job.ID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(textPolicy.Sanitize(req.Comment)),
	}
	if err := h.reviews.Create(r.Context(), review); err != nil {
		if errors.Is(err, db.ErrDuplicateReview) {
			conflict(w, "You already reviewed this job")
			return
		}
		slog.Error("error creating review", "error", err)
		internalError(w)
		return
	}

	h.recomputeRating(r, job.ArtisanID)

	writeJSON(w, http.StatusCreated, map[string]any{"review": review})
}

// GET /api/v1/artisans/{id}/reviews
func (h *ReviewHandler) ListByArtisan(w http.ResponseWriter, r *http.Request) {
	artisanID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		notFound(w, "Artisan not found")
		return
	}

	page := pageFromRequest(r)
	reviews, total, err := h.reviews.FindByArtisan(r.Context(), artisanID, page)
	if err != nil {
		slog.Error("error listing reviews", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, paginated(reviews, total, page))
}

// GET /api/v1/reviews/mine
func (h *ReviewHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)
	page := pageFromRequest(r)

	reviews, total, err := h.reviews.FindByUser(r.Context(), user.ID, page)
	if err != nil {
		slog.Error("error listing reviews", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, paginated(reviews, total, page))
}

// DELETE /api/v1/reviews/{id}
//
// The author can retract their own review; admins can remove any.
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	review, err := h.reviews.FindByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Review not found")
		return
	}
	if err != nil {
		slog.Error("error loading review", "error", err)
		internalError(w)
		return
	}
	if review.UserID != user.ID && user.Role != models.RoleAdmin {
		notFound(w, "Review not found")
		return
	}

	if err := h.reviews.Delete(r.Context(), review.ID.Hex()); err != nil {
		slog.Error("error deleting review", "error", err)
		internalError(w)
		return
	}

	h.recomputeRating(r, review.ArtisanID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Review deleted"})
}

func (h *ReviewHandler) recomputeRating(r *http.Request, artisanID primitive.ObjectID) {
	rating, err := h.reviews.AverageRating(r.Context(), artisanID)
	if err != nil {
		slog.Error("error aggregating rating", "error", err)
		return
	}
	if err := h.users.SetRating(r.Context(), artisanID.Hex(), rating); err != nil {
		slog.Error("error saving rating", "error", err)
	}
}

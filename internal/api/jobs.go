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

type JobHandler struct {
	jobs  *db.JobRepository
	users *db.UserRepository
}

func NewJobHandler(jobs *db.JobRepository, users *db.UserRepository) *JobHandler {
	return &JobHandler{jobs: jobs, users: users}
}

type CreateJobRequest struct {
	ArtisanID   string `json:"artisanId" validate:"required,len=24,hexadecimal"`
	Title       string `json:"title" validate:"required,min=3,max=150"`
	Description string `json:"description" validate:"required,min=10,max=2000"`
	Location    string `json:"location" validate:"omitempty,max=200"`
}

// POST /api/v1/jobs
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	var req CreateJobRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	artisan, err := h.users.FindByID(r.Context(), req.ArtisanID)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Artisan not found")
		return
	}
	if err != nil {
		slog.Error("error loading artisan", "error", err)
		internalError(w)
		return
	}
	if artisan.Role != models.RoleArtisan || artisan.IsDeleted || artisan.IsBanned {
		notFound(w, "Artisan not found")
		return
	}
	if artisan.ID == user.ID {
		badRequest(w, "cannot create a job with yourself")
		return
	}

	job := &models.Job{
		UserID:      user.ID,
		ArtisanID:   artisan.ID,
		Title:       strings.TrimSpace(textPolicy.Sanitize(req.Title)),
		Description: strings.TrimSpace(textPolicy.Sanitize(req.Description)),
		Location:    strings.TrimSpace(req.Location),
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		slog.Error("error creating job", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"job": job})
}

// GET /api/v1/jobs
func (h *JobHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)
	page := pageFromRequest(r)

	jobList, total, err := h.jobs.FindByParticipant(r.Context(), user.ID, page)
	if err != nil {
		slog.Error("error listing jobs", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, paginated(jobList, total, page))
}

// GET /api/v1/jobs/{id}
func (h *JobHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	job, err := h.jobs.FindByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Job not found")
		return
	}
	if err != nil {
		slog.Error("error loading job", "error", err)
		internalError(w)
		return
	}
	if !jobParticipant(job, user) && user.Role != models.RoleAdmin {
		notFound(w, "Job not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

type UpdateJobStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted in-progress completed cancelled"`
}

// statusTransitions defines which party may move a job into each status.
var statusTransitions = map[models.JobStatus]struct {
	from    map[models.JobStatus]bool
	artisan bool
	user    bool
}{
	models.JobAccepted:   {from: map[models.JobStatus]bool{models.JobPending: true}, artisan: true},
	models.JobInProgress: {from: map[models.JobStatus]bool{models.JobAccepted: true}, artisan: true},
	models.JobCompleted:  {from: map[models.JobStatus]bool{models.JobInProgress: true}, artisan: true, user: true},
	models.JobCancelled: {
		from: map[models.JobStatus]bool{models.JobPending: true, models.JobAccepted: true},
		user: true, artisan: true,
	},
}

// PATCH /api/v1/jobs/{id}/status
func (h *JobHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	var req UpdateJobStatusRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	target := models.JobStatus(req.Status)

	job, err := h.jobs.FindByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Job not found")
		return
	}
	if err != nil {
		slog.Error("error loading job", "error", err)
		internalError(w)
		return
	}
	if !jobParticipant(job, user) {
		notFound(w, "Job not found")
		return
	}

	transition := statusTransitions[target]
	if !transition.from[job.Status] {
		conflict(w, "Invalid status transition")
		return
	}
	isArtisan := job.ArtisanID == user.ID
	if isArtisan && !transition.artisan || !isArtisan && !transition.user {
		forbidden(w, "Not allowed to set this status")
		return
	}

	if err := h.jobs.UpdateStatus(r.Context(), job.ID.Hex(), target); err != nil {
		slog.Error("error updating job status", "error", err)
		internalError(w)
		return
	}

	job.Status = target
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

// GET /api/v1/jobs/can-review/{artisanId}
func (h *JobHandler) CanReview(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	artisanID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "artisanId"))
	if err != nil {
		badRequest(w, "invalid artisan id")
		return
	}
	if artisanID == user.ID {
		writeJSON(w, http.StatusOK, map[string]bool{"canReview": false})
		return
	}

	completed, err := h.jobs.HasCompletedJob(r.Context(), user.ID, artisanID)
	if err != nil {
		slog.Error("error checking review eligibility", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"canReview": completed})
}

func jobParticipant(job *models.Job, user *models.User) bool {
	return job.UserID == user.ID || job.ArtisanID == user.ID
}

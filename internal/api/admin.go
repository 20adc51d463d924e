package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"abegfix/internal/db"
	"abegfix/internal/models"
)

const (
	auditActionBan              = "user.ban"
	auditActionUnban            = "user.unban"
	auditActionSetRole          = "user.set_role"
	auditActionDelete           = "user.delete"
	auditActionApproveArtisan   = "artisan.approve"
	auditActionFeatureArtisan   = "artisan.feature"
	auditActionUnfeatureArtisan = "artisan.unfeature"
)

type AdminHandler struct {
	users     *db.UserRepository
	jobs      *db.JobRepository
	auditLogs *db.AuditLogRepository
}

func NewAdminHandler(users *db.UserRepository, jobs *db.JobRepository, auditLogs *db.AuditLogRepository) *AdminHandler {
	return &AdminHandler{users: users, jobs: jobs, auditLogs: auditLogs}
}

// GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := db.UserListFilter{}
	if role := query.Get("role"); role != "" {
		if !models.ValidRole(models.Role(role)) {
			badRequest(w, "invalid role")
			return
		}
		filter.Role = models.Role(role)
	}
	if v := query.Get("banned"); v != "" {
		banned := v == "true"
		filter.Banned = &banned
	}

	page := pageFromRequest(r)
	users, total, err := h.users.List(r.Context(), filter, page)
	if err != nil {
		slog.Error("error listing users", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, paginated(users, total, page))
}

type SetBannedRequest struct {
	Banned *bool  `json:"banned" validate:"required"`
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// PATCH /api/v1/admin/users/{id}/ban
func (h *AdminHandler) SetBanned(w http.ResponseWriter, r *http.Request) {
	var req SetBannedRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.users.SetBanned(r.Context(), id, *req.Banned); err != nil {
		h.writeRepoError(w, err, "error updating ban state")
		return
	}

	action := auditActionBan
	if !*req.Banned {
		action = auditActionUnban
	}
	h.audit(r, action, id, map[string]any{"reason": req.Reason})

	writeJSON(w, http.StatusOK, map[string]string{"message": "User updated"})
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user artisan admin"`
}

// PATCH /api/v1/admin/users/{id}/role
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req SetRoleRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.users.SetRole(r.Context(), id, models.Role(req.Role)); err != nil {
		h.writeRepoError(w, err, "error updating role")
		return
	}

	h.audit(r, auditActionSetRole, id, map[string]any{"role": req.Role})
	writeJSON(w, http.StatusOK, map[string]string{"message": "User updated"})
}

// DELETE /api/v1/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if r.URL.Query().Get("hard") == "true" {
		if err := h.users.HardDelete(r.Context(), id); err != nil {
			h.writeRepoError(w, err, "error deleting user")
			return
		}
		h.audit(r, auditActionDelete, id, map[string]any{"hard": true})
		writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
		return
	}

	if err := h.users.SoftDelete(r.Context(), id); err != nil {
		h.writeRepoError(w, err, "error deleting user")
		return
	}
	h.audit(r, auditActionDelete, id, map[string]any{"hard": false})
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

// PATCH /api/v1/admin/artisans/{id}/approve
func (h *AdminHandler) ApproveArtisan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.users.ApproveArtisan(r.Context(), id); err != nil {
		h.writeRepoError(w, err, "error approving artisan")
		return
	}

	h.audit(r, auditActionApproveArtisan, id, nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Artisan approved"})
}

type FeatureArtisanRequest struct {
	Days int `json:"days" validate:"required,min=1,max=90"`
}

// PATCH /api/v1/admin/artisans/{id}/feature
func (h *AdminHandler) FeatureArtisan(w http.ResponseWriter, r *http.Request) {
	var req FeatureArtisanRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	until := time.Now().UTC().Add(time.Duration(req.Days) * 24 * time.Hour)
	if err := h.users.SetFeatured(r.Context(), id, &until); err != nil {
		h.writeRepoError(w, err, "error featuring artisan")
		return
	}

	h.audit(r, auditActionFeatureArtisan, id, map[string]any{"until": until})
	writeJSON(w, http.StatusOK, map[string]any{"featuredUntil": until})
}

// DELETE /api/v1/admin/artisans/{id}/feature
func (h *AdminHandler) UnfeatureArtisan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.users.SetFeatured(r.Context(), id, nil); err != nil {
		h.writeRepoError(w, err, "error unfeaturing artisan")
		return
	}

	h.audit(r, auditActionUnfeatureArtisan, id, nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Artisan unfeatured"})
}

// GET /api/v1/admin/jobs
func (h *AdminHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	status := models.JobStatus(r.URL.Query().Get("status"))
	if status != "" && !models.ValidJobStatus(status) {
		badRequest(w, "invalid status")
		return
	}

	page := pageFromRequest(r)
	jobs, total, err := h.jobs.FindAll(r.Context(), status, page)
	if err != nil {
		slog.Error("error listing jobs", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, paginated(jobs, total, page))
}

// GET /api/v1/admin/analytics
func (h *AdminHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.users.CollectAnalytics(r.Context())
	if err != nil {
		slog.Error("error collecting analytics", "error", err)
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, analytics)
}

// GET /api/v1/admin/audit-logs
func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	page := pageFromRequest(r)
	entries, total, err := h.auditLogs.List(r.Context(), r.URL.Query().Get("action"), page)
	if err != nil {
		slog.Error("error listing audit logs", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, paginated(entries, total, page))
}

func (h *AdminHandler) audit(r *http.Request, action, targetID string, meta map[string]any) {
	entry := newAuditEntry(CurrentUser(r), action, targetID, meta)
	if err := h.auditLogs.Record(r.Context(), entry); err != nil {
		slog.Error("error recording audit log", "error", err, "action", action)
	}
}

// newAuditEntry builds the log document. Handlers carry target ids as hex
// strings; an unparseable id is logged and recorded without a target rather
// than dropping the entry.
func newAuditEntry(actor *models.User, action, targetID string, meta map[string]any) *models.AuditLog {
	entry := &models.AuditLog{
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		TargetModel: "user",
		Action:      action,
		Meta:        meta,
	}
	oid, err := primitive.ObjectIDFromHex(targetID)
	if err != nil {
		slog.Warn("audit target is not a valid id", "action", action, "target", targetID)
		return entry
	}
	entry.TargetID = oid
	return entry
}

func (h *AdminHandler) writeRepoError(w http.ResponseWriter, err error, logMessage string) {
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	slog.Error(logMessage, "error", err)
	internalError(w)
}

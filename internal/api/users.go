package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"abegfix/internal/db"
	"abegfix/internal/models"
)

type UserHandler struct {
	users *db.UserRepository
}

func NewUserHandler(users *db.UserRepository) *UserHandler {
	return &UserHandler{users: users}
}

type UpdateProfileRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=2,max=100"`
	Phone   *string `json:"phone" validate:"omitempty,len=11,numeric,startswith=0"`
	Address *string `json:"address" validate:"omitempty,max=200"`
}

// profileCapabilities is the static table of which profile fields each role
// may change through the self-service endpoint.
var profileCapabilities = map[models.Role]map[string]bool{
	models.RoleUser:    {"name": true, "phone": true, "address": true},
	models.RoleArtisan: {"name": true, "phone": true, "address": true},
	models.RoleAdmin:   {"name": true, "phone": true, "address": true},
}

// PATCH /api/v1/users/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	var req UpdateProfileRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	allowed := profileCapabilities[user.Role]
	if req.Name != nil {
		if !allowed["name"] {
			forbidden(w, "Cannot change name")
			return
		}
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		if !allowed["phone"] {
			forbidden(w, "Cannot change phone")
			return
		}
		user.Phone = *req.Phone
	}
	if req.Address != nil {
		if !allowed["address"] {
			forbidden(w, "Cannot change address")
			return
		}
		user.Address = *req.Address
	}

	if err := h.users.Save(r.Context(), user); err != nil {
		slog.Error("error updating profile", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// GET /api/v1/users/{id}
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.FindByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "User not found")
		return
	}
	if err != nil {
		slog.Error("error loading user", "error", err)
		internalError(w)
		return
	}
	if user.IsDeleted {
		notFound(w, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": toPublicUser(user)})
}

// DELETE /api/v1/users/me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	if err := h.users.SoftDelete(r.Context(), user.ID.Hex()); err != nil {
		slog.Error("error deleting account", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted"})
}

package api

import (
	"errors"
	"log/slog"
	"net/http"

	"abegfix/internal/blob"
	"abegfix/internal/db"
	"abegfix/internal/models"
)

type UploadHandler struct {
	blobs *blob.Service
	users *db.UserRepository
}

func NewUploadHandler(blobs *blob.Service, users *db.UserRepository) *UploadHandler {
	return &UploadHandler{blobs: blobs, users: users}
}

// POST /api/v1/uploads/avatar
//
// Accepts a multipart form with a "file" field. The stored URL replaces the
// account's avatar.
func (h *UploadHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	if err := r.ParseMultipartForm(blob.MaxAvatarSize); err != nil {
		badRequest(w, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "file field is required")
		return
	}
	defer file.Close()

	url, err := h.blobs.UploadAvatar(r.Context(), user.ID.Hex(), file)
	if errors.Is(err, blob.ErrUnsupportedImageType) {
		badRequest(w, "only jpeg, png and webp images are allowed")
		return
	}
	if err != nil {
		slog.Error("error uploading avatar", "error", err)
		internalError(w)
		return
	}

	user.AvatarURL = url
	if err := h.users.Save(r.Context(), user); err != nil {
		slog.Error("error saving avatar url", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"avatarUrl": url})
}

type PresignPortfolioRequest struct {
	ContentType string `json:"contentType" validate:"required,oneof=image/jpeg image/png image/webp"`
}

// POST /api/v1/uploads/portfolio
//
// Returns a presigned PUT URL so portfolio images go straight to object
// storage. The object URL is appended to the artisan's portfolio once the
// client confirms the upload via the profile endpoint.
func (h *UploadHandler) PresignPortfolio(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)
	if user.Role != models.RoleArtisan {
		forbidden(w, "Only artisans can upload portfolio images")
		return
	}

	var req PresignPortfolioRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	uploadURL, objectURL, err := h.blobs.PresignPortfolioPut(r.Context(), user.ID.Hex(), req.ContentType)
	if errors.Is(err, blob.ErrUnsupportedImageType) {
		badRequest(w, "only jpeg, png and webp images are allowed")
		return
	}
	if err != nil {
		slog.Error("error presigning portfolio upload", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"uploadUrl": uploadURL,
		"objectUrl": objectURL,
	})
}

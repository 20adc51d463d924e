package api

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"abegfix/internal/db"
	"abegfix/internal/models"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

type CategoryHandler struct {
	categories *db.CategoryRepository
}

func NewCategoryHandler(categories *db.CategoryRepository) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// GET /api/v1/categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.FindAll(r.Context())
	if err != nil {
		slog.Error("error listing categories", "error", err)
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"omitempty,max=500"`
	Icon        string `json:"icon" validate:"omitempty,max=100"`
}

// POST /api/v1/admin/categories
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)
	category := &models.Category{
		Name:        name,
		Slug:        slugify(name),
		Description: strings.TrimSpace(req.Description),
		Icon:        strings.TrimSpace(req.Icon),
	}
	if err := h.categories.Create(r.Context(), category); err != nil {
		if errors.Is(err, db.ErrDuplicateCategory) {
			conflict(w, "Category already exists")
			return
		}
		slog.Error("error creating category", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"category": category})
}

// DELETE /api/v1/admin/categories/{id}
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.categories.Delete(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Category not found")
		return
	}
	if err != nil {
		slog.Error("error deleting category", "error", err)
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Category deleted"})
}

func slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

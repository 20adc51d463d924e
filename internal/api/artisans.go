package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"abegfix/internal/db"
	"abegfix/internal/jobs"
	"abegfix/internal/models"
)

const (
	maxSkills             = 5
	defaultNearbyRadiusKm = 10
	maxNearbyRadiusKm     = 100
	defaultNearbyLimit    = 20
)

// textPolicy strips all markup from user-supplied free text.
var textPolicy = bluemonday.StrictPolicy()

type ArtisanHandler struct {
	users     *db.UserRepository
	locations *db.LocationRepository
	reviews   *db.ReviewRepository
	jobs      *db.JobRepository
	queue     *jobs.Queue
}

func NewArtisanHandler(users *db.UserRepository, locations *db.LocationRepository, reviews *db.ReviewRepository, jobRepo *db.JobRepository, queue *jobs.Queue) *ArtisanHandler {
	return &ArtisanHandler{users: users, locations: locations, reviews: reviews, jobs: jobRepo, queue: queue}
}

// GET /api/v1/artisans
func (h *ArtisanHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := db.ArtisanFilter{
		Skill:    query.Get("skill"),
		Category: query.Get("category"),
		Search:   query.Get("search"),
		SortBy:   query.Get("sortBy"),
	}
	if v := query.Get("minRating"); v != "" {
		rating, err := strconv.ParseFloat(v, 64)
		if err != nil || rating < 0 || rating > 5 {
			badRequest(w, "minRating must be between 0 and 5")
			return
		}
		filter.MinRating = rating
	}
	if v := query.Get("available"); v != "" {
		available, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, "available must be true or false")
			return
		}
		filter.Available = &available
	}
	if v := query.Get("featured"); v != "" {
		featured, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, "featured must be true or false")
			return
		}
		filter.Featured = featured
	}
	if name := query.Get("location"); name != "" {
		location, err := h.locations.FindByName(r.Context(), name)
		if errors.Is(err, db.ErrNotFound) {
			// Unknown location matches nothing rather than everything.
			writeJSON(w, http.StatusOK, paginated([]publicUser{}, 0, db.NewPage(1, db.DefaultPageSize)))
			return
		}
		if err != nil {
			slog.Error("error resolving location filter", "error", err)
			internalError(w)
			return
		}
		filter.LocationID = location.ID
	}

	page := pageFromRequest(r)
	artisans, total, err := h.users.FindArtisans(r.Context(), filter, page)
	if err != nil {
		slog.Error("error listing artisans", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, paginated(toPublicUsers(artisans), total, page))
}

// GET /api/v1/artisans/{id}
func (h *ArtisanHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	artisan, err := h.users.FindByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Artisan not found")
		return
	}
	if err != nil {
		slog.Error("error loading artisan", "error", err)
		internalError(w)
		return
	}
	if artisan.Role != models.RoleArtisan || artisan.IsDeleted {
		notFound(w, "Artisan not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"artisan": toPublicUser(artisan)})
}

// GET /api/v1/artisans/nearby?lng=&lat=&radius=
func (h *ArtisanHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	lng, errLng := strconv.ParseFloat(query.Get("lng"), 64)
	lat, errLat := strconv.ParseFloat(query.Get("lat"), 64)
	if errLng != nil || errLat != nil || lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		badRequest(w, "valid lng and lat are required")
		return
	}

	radiusKm := float64(defaultNearbyRadiusKm)
	if v := query.Get("radius"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 || parsed > maxNearbyRadiusKm {
			badRequest(w, "radius must be between 0 and 100 km")
			return
		}
		radiusKm = parsed
	}

	artisans, err := h.users.FindNearbyArtisans(r.Context(), lng, lat, radiusKm*1000, defaultNearbyLimit)
	if err != nil {
		slog.Error("error searching nearby artisans", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"artisans": toPublicUsers(artisans)})
}

type UpdateArtisanProfileRequest struct {
	Bio               *string  `json:"bio" validate:"omitempty,max=1000"`
	Category          *string  `json:"category" validate:"omitempty,max=100"`
	Skills            []string `json:"skills" validate:"omitempty,max=5,dive,min=2,max=50"`
	YearsOfExperience *int     `json:"yearsOfExperience" validate:"omitempty,min=0,max=80"`
	Location          *string  `json:"location" validate:"omitempty,max=100"`
	Address           *string  `json:"address" validate:"omitempty,max=200"`
	PortfolioImages   []string `json:"portfolioImages" validate:"omitempty,max=10,dive,url,max=500"`
}

// PATCH /api/v1/artisans/me
func (h *ArtisanHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	var req UpdateArtisanProfileRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if user.ArtisanProfile == nil {
		user.ArtisanProfile = &models.ArtisanProfile{}
	}
	profile := user.ArtisanProfile

	if req.Bio != nil {
		profile.Bio = strings.TrimSpace(textPolicy.Sanitize(*req.Bio))
	}
	if req.Category != nil {
		profile.Category = strings.TrimSpace(*req.Category)
	}
	if req.Skills != nil {
		if len(req.Skills) > maxSkills {
			badRequest(w, "at most 5 skills are allowed")
			return
		}
		skills := make([]string, 0, len(req.Skills))
		for _, skill := range req.Skills {
			skills = append(skills, strings.TrimSpace(skill))
		}
		profile.Skills = skills
	}
	if req.YearsOfExperience != nil {
		profile.YearsOfExperience = *req.YearsOfExperience
	}
	if req.PortfolioImages != nil {
		profile.PortfolioImages = req.PortfolioImages
	}
	if req.Location != nil {
		location, err := h.locations.FindByName(r.Context(), *req.Location)
		if errors.Is(err, db.ErrNotFound) {
			badRequest(w, "unknown location")
			return
		}
		if err != nil {
			slog.Error("error resolving location", "error", err)
			internalError(w)
			return
		}
		profile.LocationID = location.ID
	}

	geocodeAddress := ""
	if req.Address != nil {
		user.Address = *req.Address
		geocodeAddress = *req.Address
	}

	if err := h.users.Save(r.Context(), user); err != nil {
		slog.Error("error saving artisan profile", "error", err)
		internalError(w)
		return
	}

	// Coordinates resolve asynchronously so slow geocoders never block the
	// profile update.
	if geocodeAddress != "" {
		task := jobs.GeoTask{UserID: user.ID.Hex(), Address: geocodeAddress}
		if err := h.queue.Enqueue(r.Context(), jobs.GeoQueue, task); err != nil {
			slog.Error("error enqueueing geo task", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

type SetAvailabilityRequest struct {
	Available *bool `json:"available" validate:"required"`
}

// PATCH /api/v1/artisans/me/availability
func (h *ArtisanHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	var req SetAvailabilityRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if user.ArtisanProfile == nil {
		user.ArtisanProfile = &models.ArtisanProfile{}
	}
	user.ArtisanProfile.Available = *req.Available

	if err := h.users.Save(r.Context(), user); err != nil {
		slog.Error("error updating availability", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"available": user.ArtisanProfile.Available})
}

// GET /api/v1/artisans/{id}/stats
func (h *ArtisanHandler) Stats(w http.ResponseWriter, r *http.Request) {
	artisan, err := h.users.FindByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Artisan not found")
		return
	}
	if err != nil {
		slog.Error("error loading artisan", "error", err)
		internalError(w)
		return
	}
	if artisan.Role != models.RoleArtisan || artisan.IsDeleted {
		notFound(w, "Artisan not found")
		return
	}

	_, reviewCount, err := h.reviews.FindByArtisan(r.Context(), artisan.ID, db.NewPage(1, 1))
	if err != nil {
		slog.Error("error counting reviews", "error", err)
		internalError(w)
		return
	}
	completedJobs, err := h.jobs.CountCompleted(r.Context(), artisan.ID)
	if err != nil {
		slog.Error("error counting completed jobs", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rating":        artisan.Rating,
		"reviewCount":   reviewCount,
		"completedJobs": completedJobs,
		"available":     artisan.ArtisanProfile != nil && artisan.ArtisanProfile.Available,
	})
}

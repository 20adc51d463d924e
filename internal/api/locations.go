package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"abegfix/internal/db"
	"abegfix/internal/geo"
	"abegfix/internal/models"
)

type LocationHandler struct {
	locations *db.LocationRepository
	geocoder  *geo.Geocoder
}

func NewLocationHandler(locations *db.LocationRepository, geocoder *geo.Geocoder) *LocationHandler {
	return &LocationHandler{locations: locations, geocoder: geocoder}
}

// GET /api/v1/locations
func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	locations, err := h.locations.FindAll(r.Context())
	if err != nil {
		slog.Error("error listing locations", "error", err)
		internalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locations})
}

// GET /api/v1/locations/nearby?lng=&lat=&radius=
func (h *LocationHandler) Nearby(w http.ResponseWriter, r *http.Request) {
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

	locations, err := h.locations.Nearby(r.Context(), lng, lat, radiusKm*1000, defaultNearbyLimit)
	if err != nil {
		slog.Error("error searching nearby locations", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"locations": locations})
}

type CreateLocationRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	State string `json:"state" validate:"omitempty,max=100"`
}

// POST /api/v1/admin/locations
//
// Coordinates are resolved synchronously: an admin adding a location wants
// to see the geocoding result immediately.
func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	point, err := h.geocoder.Geocode(r.Context(), req.Name)
	if errors.Is(err, geo.ErrNoResults) {
		badRequest(w, "location could not be geocoded")
		return
	}
	if err != nil {
		slog.Error("error geocoding location", "error", err)
		internalError(w)
		return
	}

	location := &models.Location{
		Name:        strings.ToLower(strings.TrimSpace(req.Name)),
		State:       strings.TrimSpace(req.State),
		Coordinates: models.NewGeoPoint(point.Lng, point.Lat),
		IsActive:    true,
	}
	if err := h.locations.Create(r.Context(), location); err != nil {
		if errors.Is(err, db.ErrDuplicateLocation) {
			conflict(w, "Location already exists")
			return
		}
		slog.Error("error creating location", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"location": location})
}

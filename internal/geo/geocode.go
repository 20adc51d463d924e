package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"abegfix/internal/config"
)

const (
	defaultGoogleBaseURL   = "https://maps.googleapis.com/maps/api/geocode/json"
	defaultOpenCageBaseURL = "https://api.opencagedata.com/geocode/v1/json"

	requestTimeout = 5 * time.Second
)

var ErrNoResults = errors.New("no geocoding results")

// Point is a WGS84 coordinate pair, longitude first.
type Point struct {
	Lng float64
	Lat float64
}

// Geocoder resolves free-form addresses through Google, falling back to
// OpenCage when Google is unavailable or returns nothing.
type Geocoder struct {
	httpClient *http.Client

	googleBaseURL   string
	openCageBaseURL string
	googleKey       string
	openCageKey     string
	regionSuffix    string
}

func NewGeocoder(cfg config.GeocodeConfig) *Geocoder {
	return &Geocoder{
		httpClient:      &http.Client{Timeout: requestTimeout},
		googleBaseURL:   defaultGoogleBaseURL,
		openCageBaseURL: defaultOpenCageBaseURL,
		googleKey:       cfg.GoogleAPIKey,
		openCageKey:     cfg.OpenCageAPIKey,
		regionSuffix:    cfg.RegionSuffix,
	}
}

// Geocode resolves an address to coordinates. Bare names get the configured
// region suffix appended before lookup.
func (g *Geocoder) Geocode(ctx context.Context, address string) (Point, error) {
	query := strings.TrimSpace(address)
	if query == "" {
		return Point{}, ErrNoResults
	}
	if g.regionSuffix != "" && !strings.Contains(query, ",") {
		query = query + ", " + g.regionSuffix
	}

	if g.googleKey != "" {
		point, err := g.geocodeGoogle(ctx, query)
		if err == nil {
			return point, nil
		}
		slog.Warn("google geocoding failed, trying fallback", "component", "geo", "error", err)
	}

	if g.openCageKey != "" {
		return g.geocodeOpenCage(ctx, query)
	}

	return Point{}, ErrNoResults
}

func (g *Geocoder) geocodeGoogle(ctx context.Context, query string) (Point, error) {
	params := url.Values{}
	params.Set("address", query)
	params.Set("key", g.googleKey)

	var response struct {
		Status  string `json:"status"`
		Results []struct {
			Geometry struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := g.fetch(ctx, g.googleBaseURL, params, &response); err != nil {
		return Point{}, err
	}

	if response.Status != "OK" || len(response.Results) == 0 {
		return Point{}, fmt.Errorf("google geocoding status %q: %w", response.Status, ErrNoResults)
	}

	loc := response.Results[0].Geometry.Location
	return Point{Lng: loc.Lng, Lat: loc.Lat}, nil
}

func (g *Geocoder) geocodeOpenCage(ctx context.Context, query string) (Point, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("key", g.openCageKey)
	params.Set("limit", "1")

	var response struct {
		Results []struct {
			Geometry struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := g.fetch(ctx, g.openCageBaseURL, params, &response); err != nil {
		return Point{}, err
	}

	if len(response.Results) == 0 {
		return Point{}, ErrNoResults
	}

	geom := response.Results[0].Geometry
	return Point{Lng: geom.Lng, Lat: geom.Lat}, nil
}

func (g *Geocoder) fetch(ctx context.Context, baseURL string, params url.Values, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building geocoding request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling geocoding API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoding API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding geocoding response: %w", err)
	}
	return nil
}

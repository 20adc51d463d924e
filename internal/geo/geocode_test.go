package geo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func googleResponse(lat, lng float64) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"results": [{"geometry": {"location": {"lat": ` + formatFloat(lat) + `, "lng": ` + formatFloat(lng) + `}}}]
		}`))
	}
}

func openCageResponse(lat, lng float64) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": [{"geometry": {"lat": ` + formatFloat(lat) + `, "lng": ` + formatFloat(lng) + `}}]
		}`))
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func newTestGeocoder(googleURL, openCageURL string) *Geocoder {
	return &Geocoder{
		httpClient:      &http.Client{Timeout: time.Second},
		googleBaseURL:   googleURL,
		openCageBaseURL: openCageURL,
		googleKey:       "google-key",
		openCageKey:     "opencage-key",
		regionSuffix:    "Lagos, Nigeria",
	}
}

func TestGeocodePrefersGoogle(t *testing.T) {
	google := httptest.NewServer(googleResponse(6.52, 3.37))
	defer google.Close()
	openCage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("fallback called even though google succeeded")
	}))
	defer openCage.Close()

	g := newTestGeocoder(google.URL, openCage.URL)
	point, err := g.Geocode(context.Background(), "Ikeja")
	if err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	if point.Lat != 6.52 || point.Lng != 3.37 {
		t.Fatalf("point = %+v, want lat 6.52 lng 3.37", point)
	}
}

func TestGeocodeFallsBackToOpenCage(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer google.Close()
	openCage := httptest.NewServer(openCageResponse(9.05, 7.49))
	defer openCage.Close()

	g := newTestGeocoder(google.URL, openCage.URL)
	point, err := g.Geocode(context.Background(), "Garki")
	if err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	if point.Lat != 9.05 || point.Lng != 7.49 {
		t.Fatalf("point = %+v, want lat 9.05 lng 7.49", point)
	}
}

func TestGeocodeFallsBackOnZeroResults(t *testing.T) {
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	}))
	defer google.Close()
	openCage := httptest.NewServer(openCageResponse(9.05, 7.49))
	defer openCage.Close()

	g := newTestGeocoder(google.URL, openCage.URL)
	point, err := g.Geocode(context.Background(), "Nowhere Street")
	if err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	if point.Lat != 9.05 {
		t.Fatalf("point = %+v, want opencage result", point)
	}
}

func TestGeocodeNoResultsAnywhere(t *testing.T) {
	empty := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	})
	google := httptest.NewServer(empty)
	defer google.Close()
	openCage := httptest.NewServer(empty)
	defer openCage.Close()

	g := newTestGeocoder(google.URL, openCage.URL)
	if _, err := g.Geocode(context.Background(), "Nowhere"); !errors.Is(err, ErrNoResults) {
		t.Fatalf("Geocode() error = %v, want ErrNoResults", err)
	}
}

func TestGeocodeAppendsRegionSuffix(t *testing.T) {
	var gotAddress string
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddress = r.URL.Query().Get("address")
		googleResponse(6.52, 3.37)(w, r)
	}))
	defer google.Close()

	g := newTestGeocoder(google.URL, "")
	if _, err := g.Geocode(context.Background(), "Ikeja"); err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	if gotAddress != "Ikeja, Lagos, Nigeria" {
		t.Fatalf("address = %q, want %q", gotAddress, "Ikeja, Lagos, Nigeria")
	}

	// Addresses that already carry a region keep it.
	if _, err := g.Geocode(context.Background(), "Ikeja, Abuja"); err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	if gotAddress != "Ikeja, Abuja" {
		t.Fatalf("address = %q, want %q", gotAddress, "Ikeja, Abuja")
	}
}

func TestGeocodeEmptyAddress(t *testing.T) {
	g := newTestGeocoder("", "")
	if _, err := g.Geocode(context.Background(), "   "); !errors.Is(err, ErrNoResults) {
		t.Fatalf("Geocode() error = %v, want ErrNoResults", err)
	}
}

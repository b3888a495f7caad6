// Package location provides the observer-location request action.
package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/litescript/ls-skychart/internal/catalog"
	"github.com/litescript/ls-skychart/internal/playback"
)

// ErrUnavailable is returned when no location could be determined.
var ErrUnavailable = errors.New("location unavailable")

// Locator determines the observer location.
type Locator interface {
	Locate(ctx context.Context) (playback.Location, error)
}

// Static always returns the same location.
type Static playback.Location

// Locate returns the fixed location.
func (s Static) Locate(context.Context) (playback.Location, error) {
	return playback.Location(s), nil
}

// HTTPLocator asks a JSON geolocation endpoint. The response must carry
// "latitude" and "longitude"; "utc_offset_minutes" is optional.
type HTTPLocator struct {
	URL    string
	Client *http.Client
}

type geoResponse struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	OffsetMin *int     `json:"utc_offset_minutes"`
}

// Locate fetches the location.
func (h HTTPLocator) Locate(ctx context.Context) (playback.Location, error) {
	if h.URL == "" {
		return playback.Location{}, ErrUnavailable
	}
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	body, err := catalog.FetchBody(ctx, client, h.URL)
	if err != nil {
		return playback.Location{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var g geoResponse
	if err := json.Unmarshal(body, &g); err != nil {
		return playback.Location{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if g.Latitude == nil || g.Longitude == nil ||
		math.Abs(*g.Latitude) > 90 || math.Abs(*g.Longitude) > 180 {
		return playback.Location{}, fmt.Errorf("%w: incomplete response", ErrUnavailable)
	}

	loc := playback.Location{Lat: *g.Latitude, Lon: *g.Longitude}
	if g.OffsetMin != nil {
		loc.TimezoneMinutes = *g.OffsetMin
	} else {
		// Nominal zone from longitude.
		loc.TimezoneMinutes = int(math.Round(loc.Lon/15)) * 60
	}
	return loc, nil
}

// Fallback tries primary and returns current when it fails.
func Fallback(ctx context.Context, primary Locator, current playback.Location) (playback.Location, bool) {
	if primary == nil {
		return current, false
	}
	loc, err := primary.Locate(ctx)
	if err != nil {
		return current, false
	}
	return loc, true
}

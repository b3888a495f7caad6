package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litescript/ls-skychart/internal/playback"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPLocator(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    playback.Location
		wantErr bool
	}{
		{"with offset", 200, `{"latitude":34.26,"longitude":108.94,"utc_offset_minutes":480}`, playback.Location{Lat: 34.26, Lon: 108.94, TimezoneMinutes: 480}, false},
		{"nominal zone", 200, `{"latitude":51.48,"longitude":-0.2}`, playback.Location{Lat: 51.48, Lon: -0.2, TimezoneMinutes: 0}, false},
		{"west", 200, `{"latitude":40.7,"longitude":-74.0}`, playback.Location{Lat: 40.7, Lon: -74.0, TimezoneMinutes: -300}, false},
		{"missing lon", 200, `{"latitude":1}`, playback.Location{}, true},
		{"out of range", 200, `{"latitude":100,"longitude":0}`, playback.Location{}, true},
		{"server error", 500, `oops`, playback.Location{}, true},
		{"not json", 200, `<html>`, playback.Location{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			got, err := HTTPLocator{URL: srv.URL, Client: srv.Client()}.Locate(context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnavailable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHTTPLocator_NoURL(t *testing.T) {
	_, err := HTTPLocator{}.Locate(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFallback(t *testing.T) {
	current := playback.Location{Lat: 1, Lon: 2}

	got, ok := Fallback(context.Background(), HTTPLocator{}, current)
	assert.False(t, ok)
	assert.Equal(t, current, got)

	got, ok = Fallback(context.Background(), Static{Lat: 5, Lon: 6, TimezoneMinutes: 60}, current)
	assert.True(t, ok)
	assert.Equal(t, playback.Location{Lat: 5, Lon: 6, TimezoneMinutes: 60}, got)

	got, ok = Fallback(context.Background(), nil, current)
	assert.False(t, ok)
	assert.Equal(t, current, got)
}

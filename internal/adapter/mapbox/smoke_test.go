//go:build mapbox

package mapbox

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/seismic-swarm-etl/internal/observability"
)

// These tests hit the real Mapbox API and require a valid MAPBOX_TOKEN env var.
// Run with: go test -tags=mapbox ./internal/adapter/mapbox/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		t.Fatal("MAPBOX_TOKEN must be set to run smoke tests")
	}
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    DefaultBaseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSmoke_ReverseGeocode_Norcia(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ReverseGeocode(context.Background(), 42.7922, 13.0932)
	require.NoError(t, err)

	assert.NotEmpty(t, result.PlaceName)
	assert.Equal(t, "Italy", result.Country)
	t.Logf("reverse geocode: %+v", result)
}

func TestSmoke_ReverseGeocode_Offshore(t *testing.T) {
	c := smokeClient(t)

	result, err := c.ReverseGeocode(context.Background(), 39.2, 17.9)
	require.NoError(t, err)
	t.Logf("offshore reverse geocode: %+v", result)
}

func TestSmoke_CachedReverseGeocode(t *testing.T) {
	c := smokeClient(t)
	cached := NewCachedGeocoder(c, 100, observability.NewMetricsForTesting())

	r1, err := cached.ReverseGeocode(context.Background(), 42.3498, 13.3991)
	require.NoError(t, err)
	r2, err := cached.ReverseGeocode(context.Background(), 42.3501, 13.3994)
	require.NoError(t, err)

	assert.Equal(t, r1, r2)
}

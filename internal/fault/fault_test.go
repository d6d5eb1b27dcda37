package fault

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFaults = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "Monte Vettore"},
     "geometry": {"type": "LineString", "coordinates": [[13.20, 42.75], [13.30, 42.90]]}},
    {"type": "Feature", "properties": {"name": "Paganica"},
     "geometry": {"type": "MultiLineString", "coordinates": [[[13.40, 42.30], [13.50, 42.40]], [[13.50, 42.40], [13.55, 42.45]]]}},
    {"type": "Feature", "properties": {"code": 12},
     "geometry": {"type": "LineString", "coordinates": [[13.0, 42.0], [13.1, 42.1]]}},
    {"type": "Feature", "properties": {"name": "Stretto"},
     "geometry": {"type": "Point", "coordinates": [15.6, 38.2]}},
    {"type": "Feature", "properties": {"name": "Lone vertex"},
     "geometry": {"type": "LineString", "coordinates": [[15.0, 38.0]]}}
  ]
}`

func TestLoad(t *testing.T) {
	idx, err := Load(strings.NewReader(testFaults), "")
	require.NoError(t, err)

	assert.Equal(t, 3, idx.Len(), "unnamed and point features are skipped")
}

func TestNearest(t *testing.T) {
	idx, err := Load(strings.NewReader(testFaults), DefaultNameProperty)
	require.NoError(t, err)

	tests := []struct {
		name     string
		lat, lon float64
		fault    string
	}{
		{"on the Vettore trace", 42.825, 13.25, "Monte Vettore"},
		{"L'Aquila", 42.35, 13.40, "Paganica"},
		{"beyond the Paganica end", 42.50, 13.60, "Paganica"},
		{"Sicily", 37.9, 15.1, "Lone vertex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := idx.Nearest(tt.lat, tt.lon)
			assert.Equal(t, tt.fault, m.Name)
			assert.GreaterOrEqual(t, m.DistanceKm, 0.0)
		})
	}
}

func TestNearest_OnTraceIsZero(t *testing.T) {
	idx, err := Load(strings.NewReader(testFaults), "")
	require.NoError(t, err)

	m := idx.Nearest(42.75, 13.20)
	assert.Equal(t, "Monte Vettore", m.Name)
	assert.Zero(t, m.DistanceKm)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(strings.NewReader(`{"type":"Feature"}`), "")
	assert.ErrorContains(t, err, "expected FeatureCollection")

	_, err = Load(strings.NewReader(`{"type":"FeatureCollection","features":[]}`), "")
	assert.ErrorContains(t, err, "no named line features")

	_, err = Load(strings.NewReader(`not json`), "")
	assert.Error(t, err)

	_, err = Load(strings.NewReader(`{"type":"FeatureCollection","features":[{"properties":{"name":"x"},"geometry":{"type":"LineString","coordinates":"oops"}}]}`), "")
	assert.ErrorContains(t, err, "feature 0 (x)")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faults.geojson")
	require.NoError(t, os.WriteFile(path, []byte(testFaults), 0o600))

	idx, err := LoadFile(path, "name")
	require.NoError(t, err)
	assert.Equal(t, 3, idx.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.geojson"), "name")
	assert.Error(t, err)
}

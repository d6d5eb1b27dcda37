package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/seismic-swarm-etl/internal/catalog"
	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
	"github.com/couchcryptid/seismic-swarm-etl/internal/fault"
	"github.com/couchcryptid/seismic-swarm-etl/internal/pipeline"
)

const rawCatalog = `ID,time,latitude,longitude,mag,type
1,2016-10-30T06:40:17Z,42.84,13.11,6.5,earthquake
2,2016-10-30T07:00:00Z,45.60,13.80,3.1,earthquake
3,2016-10-30T07:10:00Z,,13.12,3.2,earthquake
`

type mockGeocoder struct {
	err   error
	calls int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, lat, _ float64) (domain.GeocodingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.GeocodingResult{}, m.err
	}
	if lat > 45 {
		return domain.GeocodingResult{PlaceName: "Trieste", Country: "Slovenia"}, nil
	}
	return domain.GeocodingResult{PlaceName: "Norcia", Country: "Italy"}, nil
}

type mockFaults struct{}

func (mockFaults) Nearest(lat, _ float64) fault.Match {
	if lat > 45 {
		return fault.Match{}
	}
	return fault.Match{Name: "Mt. Vettore", DistanceKm: 1.2}
}

func readRaw(t *testing.T) *catalog.Table {
	t.Helper()
	tbl, err := catalog.ReadTable(strings.NewReader(rawCatalog))
	require.NoError(t, err)
	return tbl
}

func TestEnricher_FillsColumns(t *testing.T) {
	geo := &mockGeocoder{}
	e := pipeline.NewEnricher(geo, mockFaults{}, "", discardLogger())

	src := readRaw(t)
	out, stats, err := e.Enrich(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, pipeline.EnrichStats{Rows: 3, Geocoded: 2, FaultsSet: 1, Kept: 3}, stats)
	assert.Equal(t, "Norcia", out.Get(0, catalog.ColLocation))
	assert.Equal(t, "Italy", out.Get(0, catalog.ColCountry))
	assert.Equal(t, "Mt. Vettore", out.Get(0, catalog.ColFault))
	assert.Empty(t, out.Get(1, catalog.ColFault))
	assert.Empty(t, out.Get(2, catalog.ColCountry), "row without coordinates passes through")
	assert.Equal(t, 2, geo.calls)
	assert.False(t, src.Has(catalog.ColCountry), "input table untouched")
}

func TestEnricher_CountryRestriction(t *testing.T) {
	e := pipeline.NewEnricher(&mockGeocoder{}, nil, " ITALY", discardLogger())

	out, stats, err := e.Enrich(context.Background(), readRaw(t))
	require.NoError(t, err)

	require.Len(t, out.Rows, 1)
	assert.Equal(t, "1", out.Get(0, catalog.ColID))
	assert.Equal(t, 1, stats.Kept)
}

func TestEnricher_GeocodeFailureKeepsRow(t *testing.T) {
	e := pipeline.NewEnricher(&mockGeocoder{err: errors.New("rate limited")}, nil, "", discardLogger())

	out, stats, err := e.Enrich(context.Background(), readRaw(t))
	require.NoError(t, err)

	assert.Len(t, out.Rows, 3)
	assert.Equal(t, 2, stats.GeocodeFailed)
	assert.Empty(t, out.Get(0, catalog.ColCountry))
}

func TestEnricher_KeepsExistingValues(t *testing.T) {
	tbl := readRaw(t)
	tbl.Set(0, catalog.ColCountry, "Italy")
	tbl.Set(0, catalog.ColLocation, "Preci")

	out, _, err := pipeline.NewEnricher(&mockGeocoder{}, nil, "", discardLogger()).Enrich(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, "Preci", out.Get(0, catalog.ColLocation))
}

func TestEnricher_EnrichedTableLoads(t *testing.T) {
	out, _, err := pipeline.NewEnricher(&mockGeocoder{}, mockFaults{}, "", discardLogger()).
		Enrich(context.Background(), readRaw(t))
	require.NoError(t, err)

	store, err := catalog.FromTable(out, "enriched")
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, "Mt. Vettore", domain.Deref(store.Events()[0].Fault))
}

func TestEnricher_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := pipeline.NewEnricher(nil, nil, "", discardLogger()).Enrich(ctx, readRaw(t))
	assert.ErrorIs(t, err, context.Canceled)
}

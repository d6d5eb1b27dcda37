package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- mock geocoder ---

type mockGeocoder struct {
	result GeocodingResult
	err    error
	calls  int
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (GeocodingResult, error) {
	m.calls++
	return m.result, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestEnrichWithGeocoding_NilGeocoder(t *testing.T) {
	rec := RawRecord{ID: "1", Latitude: "42.7", Longitude: "13.2"}

	result, source := EnrichWithGeocoding(context.Background(), rec, nil, discardLogger())

	assert.Equal(t, GeoSourceSkipped, source)
	assert.Equal(t, rec, result)
}

func TestEnrichWithGeocoding_FillsMissingFields(t *testing.T) {
	geo := &mockGeocoder{
		result: GeocodingResult{PlaceName: "Norcia", Country: "Italy", Confidence: 0.9},
	}
	rec := RawRecord{ID: "1", Latitude: "42.79", Longitude: "13.09"}

	result, source := EnrichWithGeocoding(context.Background(), rec, geo, discardLogger())

	assert.Equal(t, GeoSourceReverse, source)
	assert.Equal(t, "Norcia", result.Location)
	assert.Equal(t, "Italy", result.Country)
	assert.Equal(t, 1, geo.calls)
}

func TestEnrichWithGeocoding_KeepsExistingValues(t *testing.T) {
	geo := &mockGeocoder{
		result: GeocodingResult{PlaceName: "Norcia", Country: "Italy"},
	}
	rec := RawRecord{ID: "1", Latitude: "42.79", Longitude: "13.09", Country: "San Marino"}

	result, source := EnrichWithGeocoding(context.Background(), rec, geo, discardLogger())

	assert.Equal(t, GeoSourceReverse, source)
	assert.Equal(t, "Norcia", result.Location)
	assert.Equal(t, "San Marino", result.Country)
}

func TestEnrichWithGeocoding_AlreadyComplete(t *testing.T) {
	geo := &mockGeocoder{}
	rec := RawRecord{ID: "1", Latitude: "42.79", Longitude: "13.09", Location: "Norcia", Country: "Italy"}

	_, source := EnrichWithGeocoding(context.Background(), rec, geo, discardLogger())

	assert.Equal(t, GeoSourceOriginal, source)
	assert.Equal(t, 0, geo.calls)
}

func TestEnrichWithGeocoding_Error_GracefulDegradation(t *testing.T) {
	geo := &mockGeocoder{err: errors.New("rate limited")}
	rec := RawRecord{ID: "1", Latitude: "42.79", Longitude: "13.09"}

	result, source := EnrichWithGeocoding(context.Background(), rec, geo, discardLogger())

	assert.Equal(t, GeoSourceFailed, source)
	assert.Equal(t, rec, result)
}

func TestEnrichWithGeocoding_BadCoordinates(t *testing.T) {
	geo := &mockGeocoder{}
	rec := RawRecord{ID: "1", Latitude: "", Longitude: "13.09"}

	_, source := EnrichWithGeocoding(context.Background(), rec, geo, discardLogger())

	assert.Equal(t, GeoSourceSkipped, source)
	assert.Equal(t, 0, geo.calls)
}

func TestEnrichWithGeocoding_EmptyResult(t *testing.T) {
	geo := &mockGeocoder{}
	rec := RawRecord{ID: "1", Latitude: "0.5", Longitude: "-30.2"}

	result, source := EnrichWithGeocoding(context.Background(), rec, geo, discardLogger())

	assert.Equal(t, GeoSourceOriginal, source)
	assert.Empty(t, result.Location)
}

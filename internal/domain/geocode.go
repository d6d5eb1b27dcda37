package domain

import (
	"context"
	"log/slog"
	"strings"
)

// Geo source labels recorded by EnrichWithGeocoding.
const (
	GeoSourceReverse  = "reverse"
	GeoSourceOriginal = "original"
	GeoSourceFailed   = "failed"
	GeoSourceSkipped  = "skipped"
)

// EnrichWithGeocoding fills a record's location and country from a reverse
// geocode of its coordinates. Values already present are kept. With a nil
// geocoder or on failure the record is returned unchanged together with the
// outcome label.
func EnrichWithGeocoding(ctx context.Context, rec RawRecord, geocoder Geocoder, logger *slog.Logger) (RawRecord, string) {
	if geocoder == nil {
		return rec, GeoSourceSkipped
	}
	if strings.TrimSpace(rec.Location) != "" && strings.TrimSpace(rec.Country) != "" {
		return rec, GeoSourceOriginal
	}

	lat, lon, ok := ParseCoordinates(rec.Latitude, rec.Longitude)
	if !ok {
		return rec, GeoSourceSkipped
	}

	result, err := geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"event_id", rec.ID,
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		return rec, GeoSourceFailed
	}
	if result.PlaceName == "" && result.Country == "" {
		return rec, GeoSourceOriginal
	}

	if strings.TrimSpace(rec.Location) == "" && result.PlaceName != "" {
		rec.Location = result.PlaceName
	}
	if strings.TrimSpace(rec.Country) == "" && result.Country != "" {
		rec.Country = result.Country
	}
	return rec, GeoSourceReverse
}

package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/couchcryptid/seismic-swarm-etl/internal/catalog"
	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
	"github.com/couchcryptid/seismic-swarm-etl/internal/fault"
)

// FaultLocator finds the fault nearest to a point.
type FaultLocator interface {
	Nearest(lat, lon float64) fault.Match
}

// EnrichStats counts what an enrichment pass did.
type EnrichStats struct {
	Rows          int
	Geocoded      int
	GeocodeFailed int
	FaultsSet     int
	Kept          int
}

// Enricher fills location, country and fault columns of a catalog table.
type Enricher struct {
	geocoder domain.Geocoder
	faults   FaultLocator
	country  string
	logger   *slog.Logger
}

// NewEnricher creates an Enricher. A nil geocoder or fault locator disables
// that step. A non-blank country keeps only rows whose country matches it
// after geocoding.
func NewEnricher(geocoder domain.Geocoder, faults FaultLocator, country string, logger *slog.Logger) *Enricher {
	return &Enricher{
		geocoder: geocoder,
		faults:   faults,
		country:  strings.TrimSpace(country),
		logger:   logger,
	}
}

// Enrich returns an enriched copy of t. Rows whose coordinates do not parse
// pass through untouched. Geocoding failures keep the row as is.
func (e *Enricher) Enrich(ctx context.Context, t *catalog.Table) (*catalog.Table, EnrichStats, error) {
	out := t.Filter(func(int) bool { return true })
	out.AddColumn(catalog.ColCountry)
	out.AddColumn(catalog.ColLocation)
	out.AddColumn(catalog.ColFault)

	stats := EnrichStats{Rows: len(out.Rows)}
	for i := range out.Rows {
		if err := ctx.Err(); err != nil {
			return nil, EnrichStats{}, err
		}

		rec := out.Record(i)
		enriched, source := domain.EnrichWithGeocoding(ctx, rec, e.geocoder, e.logger)
		switch source {
		case domain.GeoSourceReverse:
			stats.Geocoded++
			out.Set(i, catalog.ColLocation, enriched.Location)
			out.Set(i, catalog.ColCountry, enriched.Country)
		case domain.GeoSourceFailed:
			stats.GeocodeFailed++
		}

		if e.faults == nil {
			continue
		}
		lat, lon, ok := domain.ParseCoordinates(rec.Latitude, rec.Longitude)
		if !ok {
			continue
		}
		if m := e.faults.Nearest(lat, lon); m.Name != "" {
			out.Set(i, catalog.ColFault, m.Name)
			stats.FaultsSet++
		}
	}

	if e.country != "" {
		all := out
		out = all.Filter(func(row int) bool {
			return domain.NormalizeName(all.Get(row, catalog.ColCountry)) == domain.NormalizeName(e.country)
		})
	}
	stats.Kept = len(out.Rows)

	e.logger.Info("catalog enriched",
		"rows", stats.Rows,
		"geocoded", stats.Geocoded,
		"geocode_failed", stats.GeocodeFailed,
		"faults_set", stats.FaultsSet,
		"kept", stats.Kept,
	)
	return out, stats, nil
}

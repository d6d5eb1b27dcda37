package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/seismic-swarm-etl/internal/catalog"
	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
)

// ReadFile reads a pair report written by WriteFile.
func ReadFile(path string) ([]domain.Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read parses a pair report. Extra columns (such as the macro region
// columns added by Band) are ignored; any of the fixed columns missing is an
// error, as is a row that does not parse.
func Read(r io.Reader) ([]domain.Pair, error) {
	t, err := catalog.ReadTable(r)
	if err != nil {
		return nil, err
	}
	if missing := missingColumns(t); len(missing) > 0 {
		return nil, fmt.Errorf("pair report missing columns: %s", strings.Join(missing, ", "))
	}

	pairs := make([]domain.Pair, 0, len(t.Rows))
	for i := range t.Rows {
		p, err := parseRow(t, i)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func missingColumns(t *catalog.Table) []string {
	var missing []string
	for _, c := range Header() {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

func parseRow(t *catalog.Table, row int) (domain.Pair, error) {
	ms, err := parseEvent(t, row, "MS_")
	if err != nil {
		return domain.Pair{}, err
	}
	cs, err := parseEvent(t, row, "CS_")
	if err != nil {
		return domain.Pair{}, err
	}
	days, err := strconv.ParseFloat(t.Get(row, ColDaysBefore), 64)
	if err != nil {
		return domain.Pair{}, &domain.FieldValidationError{Row: row + 1, Field: ColDaysBefore, Value: t.Get(row, ColDaysBefore), Err: err}
	}
	dist, err := strconv.ParseFloat(t.Get(row, ColDistanceKm), 64)
	if err != nil {
		return domain.Pair{}, &domain.FieldValidationError{Row: row + 1, Field: ColDistanceKm, Value: t.Get(row, ColDistanceKm), Err: err}
	}
	return domain.Pair{Mainshock: ms, Candidate: cs, DaysBefore: days, DistanceKm: dist}, nil
}

// parseEvent reuses the catalog validation so report rows obey the same
// rules as catalog rows. Pair members are earthquakes by construction.
func parseEvent(t *catalog.Table, row int, prefix string) (domain.Event, error) {
	return domain.ParseRecord(row+1, domain.RawRecord{
		ID:        t.Get(row, prefix+"ID"),
		Time:      t.Get(row, prefix+"Time"),
		Latitude:  t.Get(row, prefix+"Lat"),
		Longitude: t.Get(row, prefix+"Lon"),
		Depth:     t.Get(row, prefix+"Depth"),
		Mag:       t.Get(row, prefix+"Mag"),
		Type:      domain.EventTypeEarthquake,
		Country:   t.Get(row, prefix+"Country"),
		Location:  t.Get(row, prefix+"Location"),
		Fault:     t.Get(row, prefix+"Fault"),
	})
}

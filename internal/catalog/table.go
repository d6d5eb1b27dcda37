package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
)

// Column names used by the catalog format.
const (
	ColID        = "ID"
	ColIDLower   = "id"
	ColTime      = "time"
	ColLatitude  = "latitude"
	ColLongitude = "longitude"
	ColDepth     = "depth"
	ColMag       = "mag"
	ColType      = "type"
	ColCountry   = "country"
	ColContinent = "continent"
	ColLocation  = "location"
	ColFault     = "fault"
)

// DefaultDropColumns are the upstream bookkeeping columns removed by Clean.
var DefaultDropColumns = []string{
	"place", "locationSource", "magSource",
	"nst", "gap", "dmin", "rms", "net", "id", "updated",
	"horizontalError", "depthError", "magError", "magNst", "status",
}

// Table is a header-addressed CSV table. Every row has exactly len(Header)
// cells.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// NewTable creates an empty table with the given header.
func NewTable(header []string) *Table {
	t := &Table{Header: slices.Clone(header)}
	t.reindex()
	return t
}

// ReadTable parses CSV with a header row. Short rows are padded with blank
// cells and long rows truncated to the header width.
func ReadTable(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty input: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := NewTable(header)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(t.Rows)+1, err)
		}
		t.Rows = append(t.Rows, fit(rec, len(header)))
	}
	return t, nil
}

func fit(rec []string, width int) []string {
	if len(rec) == width {
		return rec
	}
	out := make([]string, width)
	copy(out, rec)
	return out
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
}

// Has reports whether the header contains name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Get returns the cell for the named column, or "" when the column is absent.
func (t *Table) Get(row int, name string) string {
	i, ok := t.index[name]
	if !ok {
		return ""
	}
	return t.Rows[row][i]
}

// Set writes a cell, appending the column when it does not exist yet.
func (t *Table) Set(row int, name, value string) {
	i, ok := t.index[name]
	if !ok {
		t.AddColumn(name)
		i = t.index[name]
	}
	t.Rows[row][i] = value
}

// AddColumn appends an empty column unless it already exists.
func (t *Table) AddColumn(name string) {
	if t.Has(name) {
		return
	}
	t.Header = append(t.Header, name)
	t.index[name] = len(t.Header) - 1
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
}

// IDColumn returns the identifier column name, preferring "ID" over "id".
func (t *Table) IDColumn() (string, bool) {
	if t.Has(ColID) {
		return ColID, true
	}
	if t.Has(ColIDLower) {
		return ColIDLower, true
	}
	return "", false
}

// Record maps a row onto the catalog fields.
func (t *Table) Record(row int) domain.RawRecord {
	idCol, _ := t.IDColumn()
	return domain.RawRecord{
		ID:        t.Get(row, idCol),
		Time:      t.Get(row, ColTime),
		Latitude:  t.Get(row, ColLatitude),
		Longitude: t.Get(row, ColLongitude),
		Depth:     t.Get(row, ColDepth),
		Mag:       t.Get(row, ColMag),
		Type:      t.Get(row, ColType),
		Country:   t.Get(row, ColCountry),
		Continent: t.Get(row, ColContinent),
		Location:  t.Get(row, ColLocation),
		Fault:     t.Get(row, ColFault),
	}
}

// Filter returns a new table holding the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	out := NewTable(t.Header)
	for i, r := range t.Rows {
		if keep(i) {
			out.Rows = append(out.Rows, slices.Clone(r))
		}
	}
	return out
}

// Clean drops the named columns, drops rows with a blank magnitude, and
// inserts a sequential integer ID column (starting at 1) in first position.
func (t *Table) Clean(drop []string) *Table {
	dropSet := make(map[string]bool, len(drop))
	for _, d := range drop {
		dropSet[d] = true
	}
	// An existing ID column is replaced by the new sequence.
	dropSet[ColID] = true

	keep := make([]int, 0, len(t.Header))
	header := []string{ColID}
	for i, name := range t.Header {
		if dropSet[name] {
			continue
		}
		keep = append(keep, i)
		header = append(header, name)
	}

	out := NewTable(header)
	magCol, hasMag := t.index[ColMag]
	next := 1
	for _, r := range t.Rows {
		if hasMag && strings.TrimSpace(r[magCol]) == "" {
			continue
		}
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(next))
		for _, i := range keep {
			row = append(row, r[i])
		}
		out.Rows = append(out.Rows, row)
		next++
	}
	return out
}

// Write renders the table as CSV.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

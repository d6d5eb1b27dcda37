package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
)

// DropDuplicateID is the Stats.Dropped reason for a repeated identifier.
const DropDuplicateID = "duplicate_id"

// requiredColumns must all be present in the header for a load to proceed.
// The identifier column is checked separately since it has two spellings.
var requiredColumns = []string{ColTime, ColLatitude, ColLongitude, ColMag, ColType, ColCountry}

// Stats describes the outcome of a load.
type Stats struct {
	Rows    int            // data rows read
	Loaded  int            // rows that became events
	Dropped map[string]int // rejected rows by failing field
}

// DroppedTotal sums the rejected rows.
func (s Stats) DroppedTotal() int {
	n := 0
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

// Store is an immutable, load-ordered collection of validated events.
type Store struct {
	events []domain.Event
	stats  Stats
}

// LoadFile opens and loads a catalog CSV file.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.LoadError{Source: path, Err: err}
	}
	defer f.Close()
	return Load(f, path)
}

// Load parses a catalog CSV. Rows failing a required field are dropped and
// counted in Stats. A missing required column or an empty result is a
// *domain.LoadError.
func Load(r io.Reader, source string) (*Store, error) {
	table, err := ReadTable(r)
	if err != nil {
		return nil, &domain.LoadError{Source: source, Err: err}
	}
	return FromTable(table, source)
}

// FromTable validates an already parsed table into a Store.
func FromTable(table *Table, source string) (*Store, error) {
	if missing := missingColumns(table); len(missing) > 0 {
		return nil, &domain.LoadError{
			Source: source,
			Err:    fmt.Errorf("missing required columns: %s", strings.Join(missing, ", ")),
		}
	}

	s := &Store{
		events: make([]domain.Event, 0, len(table.Rows)),
		stats:  Stats{Rows: len(table.Rows), Dropped: map[string]int{}},
	}
	seen := make(map[int64]struct{}, len(table.Rows))

	for i := range table.Rows {
		e, err := domain.ParseRecord(i+1, table.Record(i))
		if err != nil {
			var fve *domain.FieldValidationError
			if errors.As(err, &fve) {
				s.stats.Dropped[fve.Field]++
				continue
			}
			return nil, &domain.LoadError{Source: source, Err: err}
		}
		if _, dup := seen[e.ID]; dup {
			s.stats.Dropped[DropDuplicateID]++
			continue
		}
		seen[e.ID] = struct{}{}
		s.events = append(s.events, e)
	}
	s.stats.Loaded = len(s.events)

	if len(s.events) == 0 {
		return nil, &domain.LoadError{
			Source: source,
			Err:    fmt.Errorf("no valid rows (%d read, %d dropped)", s.stats.Rows, s.stats.DroppedTotal()),
		}
	}
	return s, nil
}

func missingColumns(t *Table) []string {
	var missing []string
	if _, ok := t.IDColumn(); !ok {
		missing = append(missing, ColID)
	}
	for _, c := range requiredColumns {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Events returns the events in load order. The slice is a copy.
func (s *Store) Events() []domain.Event {
	return slices.Clone(s.events)
}

// Len returns the number of events.
func (s *Store) Len() int {
	return len(s.events)
}

// Stats returns load diagnostics.
func (s *Store) Stats() Stats {
	out := s.stats
	out.Dropped = make(map[string]int, len(s.stats.Dropped))
	for k, v := range s.stats.Dropped {
		out.Dropped[k] = v
	}
	return out
}

// FilterByType returns events whose type matches name (trimmed,
// case-insensitive), in load order.
func (s *Store) FilterByType(name string) []domain.Event {
	return s.filter(func(e domain.Event) bool { return domain.MatchesType(e, name) })
}

// FilterByCountry returns events whose country matches name (trimmed,
// case-insensitive). A blank name applies no restriction.
func (s *Store) FilterByCountry(name string) []domain.Event {
	return s.filter(func(e domain.Event) bool { return domain.MatchesCountry(e, name) })
}

func (s *Store) filter(keep func(domain.Event) bool) []domain.Event {
	out := make([]domain.Event, 0, len(s.events))
	for _, e := range s.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

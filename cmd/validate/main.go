// Command validate cross-checks a pair report against the catalog it was
// built from. It verifies the header contract, pair integrity against the
// pairing thresholds, recomputed distances and day offsets, and that the
// report holds exactly the pairs the engine finds for the same thresholds.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -catalog data/catalog.csv \
//	  -pairs data/pairs.csv \
//	  -min-mag 3.0 -max-days 29 -max-radius 500
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/couchcryptid/seismic-swarm-etl/internal/catalog"
	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
	"github.com/couchcryptid/seismic-swarm-etl/internal/report"
	"github.com/couchcryptid/seismic-swarm-etl/internal/swarm"
)

// Tolerances at output precision.
const (
	distanceTolerance = 0.005 + 1e-9
	daysTolerance     = 0.00005 + 1e-9
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	catalogPath := flag.String("catalog", "", "catalog CSV the report was built from")
	pairsPath := flag.String("pairs", "", "pair report CSV")
	params := swarm.DefaultParams()
	flag.Float64Var(&params.MinMainshockMag, "min-mag", params.MinMainshockMag, "minimum mainshock magnitude")
	flag.IntVar(&params.MaxDaysBefore, "max-days", params.MaxDaysBefore, "candidate window in days")
	flag.Float64Var(&params.MaxRadiusKm, "max-radius", params.MaxRadiusKm, "candidate radius in km")
	flag.StringVar(&params.CountryFilter, "country", "", "country filter used for the report")
	flag.Parse()

	if *catalogPath == "" || *pairsPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	if code := run(*catalogPath, *pairsPath, params, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

func run(catalogPath, pairsPath string, params swarm.Params, out io.Writer) int {
	fmt.Fprintln(out, "=== Pair Report Validation ===")

	if err := params.Validate(); err != nil {
		fmt.Fprintf(out, "FATAL: %v\n", err)
		return 1
	}

	store, err := catalog.LoadFile(catalogPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load catalog: %v\n", err)
		return 1
	}
	raw, err := os.ReadFile(pairsPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: read pairs: %v\n", err)
		return 1
	}

	header := validateHeader(raw)
	var pairs []domain.Pair
	if header.passed() {
		if pairs, err = report.Read(bytes.NewReader(raw)); err != nil {
			header.errorf("parse report: %v", err)
		}
	}

	events := store.Events()
	phases := []*phase{header}
	if header.passed() {
		phases = append(phases,
			validateIntegrity(pairs, events, params),
			validateRecomputed(pairs),
			validateCompleteness(pairs, events, params),
		)
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintf(out, "\nEvents: %d catalog, %d pairs in report\n", len(events), len(pairs))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Phase 1: Header ──
// The fixed report columns come first, in order. Extra trailing columns
// (macro regions added by banding) are allowed.

func validateHeader(raw []byte) *phase {
	p := &phase{name: "Phase 1: Header Contract"}

	t, err := catalog.ReadTable(bytes.NewReader(raw))
	if err != nil {
		p.errorf("read header: %v", err)
		return p
	}
	want := report.Header()
	if len(t.Header) < len(want) || !slices.Equal(t.Header[:len(want)], want) {
		p.errorf("header mismatch: got %v, want prefix %v", t.Header, want)
	}
	return p
}

// ── Phase 2: Pair Integrity ──

func validateIntegrity(pairs []domain.Pair, events []domain.Event, params swarm.Params) *phase {
	p := &phase{name: "Phase 2: Pair Integrity"}

	byID := make(map[int64]domain.Event, len(events))
	for _, e := range events {
		byID[e.ID] = e
	}

	seen := make(map[string]bool, len(pairs))
	for i, pair := range pairs {
		line := i + 2
		ms, cs := pair.Mainshock, pair.Candidate
		if ms.ID == cs.ID {
			p.errorf("line %d: self pair %d", line, ms.ID)
		}
		if seen[pair.Key()] {
			p.errorf("line %d: duplicate pair %s", line, pair.Key())
		}
		seen[pair.Key()] = true

		checkKnown(p, line, "mainshock", ms, byID)
		checkKnown(p, line, "candidate", cs, byID)

		if ms.Magnitude < params.MinMainshockMag {
			p.errorf("line %d: mainshock magnitude %v below %v", line, ms.Magnitude, params.MinMainshockMag)
		}
		if !cs.Time.Before(ms.Time) {
			p.errorf("line %d: candidate %d is not before mainshock %d", line, cs.ID, ms.ID)
		}
		if pair.DaysBefore < 0 || pair.DaysBefore > float64(params.MaxDaysBefore) {
			p.errorf("line %d: days_before %v outside [0, %d]", line, pair.DaysBefore, params.MaxDaysBefore)
		}
		if pair.DistanceKm < 0 || pair.DistanceKm > params.MaxRadiusKm+distanceTolerance {
			p.errorf("line %d: distance_km %v outside [0, %v]", line, pair.DistanceKm, params.MaxRadiusKm)
		}
	}
	return p
}

func checkKnown(p *phase, line int, role string, e domain.Event, byID map[int64]domain.Event) {
	ref, ok := byID[e.ID]
	if !ok {
		p.errorf("line %d: %s %d not in catalog", line, role, e.ID)
		return
	}
	if !ref.Time.Equal(e.Time) || ref.Magnitude != e.Magnitude ||
		ref.Latitude != e.Latitude || ref.Longitude != e.Longitude {
		p.errorf("line %d: %s %d differs from catalog", line, role, e.ID)
	}
}

// ── Phase 3: Recomputed Values ──

func validateRecomputed(pairs []domain.Pair) *phase {
	p := &phase{name: "Phase 3: Recomputed Distance and Days"}

	for i, pair := range pairs {
		ms, cs := pair.Mainshock, pair.Candidate
		dist := swarm.GreatCircleKm(ms.Latitude, ms.Longitude, cs.Latitude, cs.Longitude)
		if math.Abs(dist-pair.DistanceKm) > distanceTolerance {
			p.errorf("line %d: distance_km %v, recomputed %.4f", i+2, pair.DistanceKm, dist)
		}
		days := swarm.DaysBetween(ms.Time, cs.Time)
		if math.Abs(days-pair.DaysBefore) > daysTolerance {
			p.errorf("line %d: days_before %v, recomputed %.6f", i+2, pair.DaysBefore, days)
		}
	}
	return p
}

// ── Phase 4: Completeness ──
// The report must contain exactly the pairs the engine finds for the same
// catalog and thresholds.

func validateCompleteness(pairs []domain.Pair, events []domain.Event, params swarm.Params) *phase {
	p := &phase{name: "Phase 4: Completeness"}

	want, err := swarm.FindPairs(events, params)
	if err != nil {
		p.errorf("recompute pairs: %v", err)
		return p
	}

	got := make(map[string]bool, len(pairs))
	for _, pair := range pairs {
		got[pair.Key()] = true
	}
	expected := make(map[string]bool, len(want))
	for _, pair := range want {
		expected[pair.Key()] = true
		if !got[pair.Key()] {
			p.errorf("missing pair %s", pair.Key())
		}
	}
	for _, pair := range pairs {
		if !expected[pair.Key()] {
			p.errorf("unexpected pair %s", pair.Key())
		}
	}
	return p
}

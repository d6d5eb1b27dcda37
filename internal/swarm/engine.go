package swarm

import (
	"context"
	"fmt"
	"math"

	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
	"github.com/couchcryptid/seismic-swarm-etl/internal/worker"
)

// MaxDaysBeforeLimit caps the day window so the window start stays within
// time.Duration range.
const MaxDaysBeforeLimit = 100_000

// Output precision.
const (
	daysPrecision     = 4
	distancePrecision = 2
)

// Params are the pairing thresholds.
type Params struct {
	MinMainshockMag float64
	MaxDaysBefore   int
	MaxRadiusKm     float64
	CountryFilter   string // blank means no restriction
}

// DefaultParams returns the thresholds commonly used for the Italian
// catalog.
func DefaultParams() Params {
	return Params{
		MinMainshockMag: 3.0,
		MaxDaysBefore:   29,
		MaxRadiusKm:     500,
	}
}

// Validate returns a *domain.ConfigurationError for thresholds outside their
// domain.
func (p Params) Validate() error {
	switch {
	case math.IsNaN(p.MinMainshockMag) || math.IsInf(p.MinMainshockMag, 0):
		return &domain.ConfigurationError{Param: "min_mainshock_mag", Reason: "must be a finite number"}
	case p.MaxDaysBefore < 0:
		return &domain.ConfigurationError{Param: "max_days_before", Reason: fmt.Sprintf("must be >= 0, got %d", p.MaxDaysBefore)}
	case p.MaxDaysBefore > MaxDaysBeforeLimit:
		return &domain.ConfigurationError{Param: "max_days_before", Reason: fmt.Sprintf("must be <= %d, got %d", MaxDaysBeforeLimit, p.MaxDaysBefore)}
	case math.IsNaN(p.MaxRadiusKm) || p.MaxRadiusKm < 0:
		return &domain.ConfigurationError{Param: "max_radius_km", Reason: fmt.Sprintf("must be >= 0, got %v", p.MaxRadiusKm)}
	}
	return nil
}

// Result is the outcome of one pairing run.
type Result struct {
	Pairs      []domain.Pair
	WorkingSet int // earthquakes after the country filter
	Mainshocks int
}

// Engine evaluates pairs. The zero value runs sequentially; Workers > 1 fans
// the mainshock loop out over a worker pool. Output is identical either way.
type Engine struct {
	Workers int
}

// FindPairs runs the sequential engine.
func FindPairs(events []domain.Event, p Params) ([]domain.Pair, error) {
	res, err := Engine{}.Run(context.Background(), events, p)
	if err != nil {
		return nil, err
	}
	return res.Pairs, nil
}

// FindPairs is Run without the counts.
func (e Engine) FindPairs(ctx context.Context, events []domain.Event, p Params) ([]domain.Pair, error) {
	res, err := e.Run(ctx, events, p)
	if err != nil {
		return nil, err
	}
	return res.Pairs, nil
}

// Run validates p, builds the working set and evaluates every mainshock in
// input order. A cancelled ctx aborts the run with no partial output.
func (e Engine) Run(ctx context.Context, events []domain.Event, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	working := WorkingSet(events, p.CountryFilter)
	mainshocks := Mainshocks(working, p.MinMainshockMag)
	res := Result{
		Pairs:      []domain.Pair{},
		WorkingSet: len(working),
		Mainshocks: len(mainshocks),
	}
	if len(mainshocks) == 0 {
		return res, nil
	}

	var (
		pairs []domain.Pair
		err   error
	)
	if e.Workers > 1 && len(mainshocks) > 1 {
		pairs, err = e.parallel(ctx, mainshocks, working, p)
	} else {
		pairs, err = sequential(ctx, mainshocks, working, p)
	}
	if err != nil {
		return Result{}, err
	}
	res.Pairs = pairs
	return res, nil
}

// WorkingSet keeps earthquakes, further restricted to country when it is not
// blank. Input order is preserved.
func WorkingSet(events []domain.Event, country string) []domain.Event {
	out := make([]domain.Event, 0, len(events))
	for _, e := range events {
		if domain.IsEarthquake(e) && domain.MatchesCountry(e, country) {
			out = append(out, e)
		}
	}
	return out
}

// Mainshocks returns the events with magnitude >= minMag, in input order.
func Mainshocks(events []domain.Event, minMag float64) []domain.Event {
	var out []domain.Event
	for _, e := range events {
		if e.Magnitude >= minMag {
			out = append(out, e)
		}
	}
	return out
}

func sequential(ctx context.Context, mainshocks, working []domain.Event, p Params) ([]domain.Pair, error) {
	pairs := []domain.Pair{}
	for _, ms := range mainshocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pairs = append(pairs, pairsFor(ms, working, p)...)
	}
	return pairs, nil
}

// parallel gives each mainshock its own result slot so workers never share
// mutable state; slots are concatenated in mainshock order afterwards.
func (e Engine) parallel(ctx context.Context, mainshocks, working []domain.Event, p Params) ([]domain.Pair, error) {
	slots := make([][]domain.Pair, len(mainshocks))
	pool := worker.NewPool(e.Workers, len(mainshocks), func(_ context.Context, i int) error {
		slots[i] = pairsFor(mainshocks[i], working, p)
		return nil
	})

	pool.Start(ctx)
	for i := range mainshocks {
		if err := pool.Submit(ctx, i); err != nil {
			_ = pool.Stop()
			return nil, err
		}
	}
	if err := pool.Stop(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := 0
	for _, s := range slots {
		n += len(s)
	}
	pairs := make([]domain.Pair, 0, n)
	for _, s := range slots {
		pairs = append(pairs, s...)
	}
	return pairs, nil
}

// pairsFor evaluates one mainshock against the working set.
func pairsFor(ms domain.Event, working []domain.Event, p Params) []domain.Pair {
	var out []domain.Pair
	for _, c := range TemporalCandidates(working, ms.Time, p.MaxDaysBefore, ms.ID) {
		dist := GreatCircleKm(ms.Latitude, ms.Longitude, c.Latitude, c.Longitude)
		if dist > p.MaxRadiusKm {
			continue
		}
		out = append(out, domain.Pair{
			Mainshock:  ms,
			Candidate:  c,
			DaysBefore: domain.Round(DaysBetween(ms.Time, c.Time), daysPrecision),
			DistanceKm: domain.Round(dist, distancePrecision),
		})
	}
	return out
}

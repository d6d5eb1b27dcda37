package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/seismic-swarm-etl/internal/catalog"
	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
	"github.com/couchcryptid/seismic-swarm-etl/internal/observability"
	"github.com/couchcryptid/seismic-swarm-etl/internal/swarm"
)

// CatalogSource produces the event store for one run.
type CatalogSource interface {
	Extract(ctx context.Context) (*catalog.Store, error)
}

// PairFinder evaluates mainshock/candidate pairs over a set of events.
type PairFinder interface {
	Run(ctx context.Context, events []domain.Event, p swarm.Params) (swarm.Result, error)
}

// PairSink writes the pairs of a run to a destination.
type PairSink interface {
	LoadBatch(ctx context.Context, pairs []domain.Pair) error
}

// Sink names a PairSink for logs and metrics. Retry enables exponential
// backoff between attempts, meant for network sinks such as Kafka.
type Sink struct {
	Name  string
	Sink  PairSink
	Retry bool
}

// Summary describes a completed run.
type Summary struct {
	Rows            int            `json:"rows"`
	Loaded          int            `json:"loaded"`
	Dropped         map[string]int `json:"dropped"`
	WorkingSet      int            `json:"working_set"`
	Mainshocks      int            `json:"mainshocks"`
	Pairs           int            `json:"pairs"`
	PairingDuration time.Duration  `json:"pairing_duration_ns"`
	FinishedAt      time.Time      `json:"finished_at"`
}

const (
	defaultAttempts = 5
	initialBackoff  = 200 * time.Millisecond
	maxBackoff      = 5 * time.Second
)

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRetry overrides the attempt limit and backoff bounds used for sinks
// with Retry set.
func WithRetry(attempts int, initial, ceiling time.Duration) Option {
	return func(p *Pipeline) {
		p.attempts = max(attempts, 1)
		p.initialBackoff = initial
		p.maxBackoff = ceiling
	}
}

// Pipeline orchestrates one extract, pair, load pass.
type Pipeline struct {
	source  CatalogSource
	finder  PairFinder
	params  swarm.Params
	sinks   []Sink
	logger  *slog.Logger
	metrics *observability.Metrics

	attempts       int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	ready atomic.Bool
	last  atomic.Pointer[Summary]
}

// New creates a Pipeline with the given stages and observability.
func New(source CatalogSource, finder PairFinder, params swarm.Params, sinks []Sink,
	logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		source:         source,
		finder:         finder,
		params:         params,
		sinks:          sinks,
		logger:         logger,
		metrics:        metrics,
		attempts:       defaultAttempts,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// LastRun returns the summary of the most recent successful run.
func (p *Pipeline) LastRun() (Summary, bool) {
	s := p.last.Load()
	if s == nil {
		return Summary{}, false
	}
	return *s, true
}

// Run loads the catalog, evaluates pairs and hands them to every sink. A
// failing sink does not stop the others; all sink errors are joined into the
// returned error.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	p.logger.Info("pipeline started",
		"sinks", len(p.sinks),
		"min_mainshock_mag", p.params.MinMainshockMag,
		"max_days_before", p.params.MaxDaysBefore,
		"max_radius_km", p.params.MaxRadiusKm,
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	store, err := p.source.Extract(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("extract catalog: %w", err)
	}
	stats := store.Stats()
	p.recordLoad(stats)

	start := time.Now()
	res, err := p.finder.Run(ctx, store.Events(), p.params)
	if err != nil {
		return Summary{}, fmt.Errorf("find pairs: %w", err)
	}
	elapsed := time.Since(start)
	p.metrics.PairingDuration.Observe(elapsed.Seconds())
	p.metrics.Mainshocks.Set(float64(res.Mainshocks))
	p.metrics.PairsFound.Add(float64(len(res.Pairs)))
	if res.Mainshocks == 0 {
		p.logger.Info("no mainshocks at or above threshold", "min_mainshock_mag", p.params.MinMainshockMag)
	}

	var errs []error
	for _, s := range p.sinks {
		if err := p.load(ctx, s, res.Pairs); err != nil {
			p.metrics.SinkErrors.WithLabelValues(s.Name).Inc()
			p.logger.Error("sink failed", "sink", s.Name, "error", err)
			errs = append(errs, fmt.Errorf("sink %s: %w", s.Name, err))
		}
	}

	summary := Summary{
		Rows:            stats.Rows,
		Loaded:          stats.Loaded,
		Dropped:         stats.Dropped,
		WorkingSet:      res.WorkingSet,
		Mainshocks:      res.Mainshocks,
		Pairs:           len(res.Pairs),
		PairingDuration: elapsed,
		FinishedAt:      domain.Now(),
	}
	if err := errors.Join(errs...); err != nil {
		return summary, err
	}

	p.last.Store(&summary)
	p.ready.Store(true)
	p.logger.Info("pipeline finished",
		"events", summary.Loaded,
		"working_set", summary.WorkingSet,
		"mainshocks", summary.Mainshocks,
		"pairs", summary.Pairs,
		"duration", elapsed,
	)
	return summary, nil
}

func (p *Pipeline) recordLoad(stats catalog.Stats) {
	p.metrics.EventsLoaded.Add(float64(stats.Loaded))
	for reason, n := range stats.Dropped {
		p.metrics.RowsDropped.WithLabelValues(reason).Add(float64(n))
	}
	if dropped := stats.DroppedTotal(); dropped > 0 {
		p.logger.Warn("catalog rows dropped", "dropped", dropped, "reasons", stats.Dropped)
	}
	p.logger.Info("catalog loaded", "rows", stats.Rows, "events", stats.Loaded)
}

// load writes pairs to one sink, retrying with exponential backoff when the
// sink allows it.
func (p *Pipeline) load(ctx context.Context, s Sink, pairs []domain.Pair) error {
	attempts := 1
	if s.Retry {
		attempts = p.attempts
	}
	backoff := p.initialBackoff

	for attempt := 1; ; attempt++ {
		err := s.Sink.LoadBatch(ctx, pairs)
		if err == nil {
			return nil
		}
		if attempt >= attempts || ctx.Err() != nil {
			return err
		}
		p.logger.Warn("sink write failed, retrying",
			"sink", s.Name, "attempt", attempt, "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, backoff) {
			return err
		}
		backoff = nextBackoff(backoff, p.maxBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

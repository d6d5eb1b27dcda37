package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/couchcryptid/seismic-swarm-etl/internal/catalog"
	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
	"github.com/couchcryptid/seismic-swarm-etl/internal/observability"
	"github.com/couchcryptid/seismic-swarm-etl/internal/pipeline"
	"github.com/couchcryptid/seismic-swarm-etl/internal/report"
	"github.com/couchcryptid/seismic-swarm-etl/internal/swarm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testCatalog = `ID,time,latitude,longitude,mag,type,country
1,2020-03-10T00:00:00Z,42.0,13.0,4.5,earthquake,Italy
2,2020-03-05T00:00:00Z,42.1,13.05,2.0,earthquake,Italy
3,2020-01-30T00:00:00Z,42.1,13.05,2.0,earthquake,Italy
4,not-a-time,42.1,13.05,2.0,earthquake,Italy
`

// --- mocks ---

type storeSource struct {
	input string
	err   error
}

func (s storeSource) Extract(_ context.Context) (*catalog.Store, error) {
	if s.err != nil {
		return nil, s.err
	}
	return catalog.Load(strings.NewReader(s.input), "test")
}

type mockSink struct {
	failures int // fail this many calls before succeeding
	calls    int
	loaded   []domain.Pair
}

func (m *mockSink) LoadBatch(_ context.Context, pairs []domain.Pair) error {
	m.calls++
	if m.calls <= m.failures {
		return errors.New("sink unavailable")
	}
	m.loaded = pairs
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPipeline(src pipeline.CatalogSource, sinks []pipeline.Sink, metrics *observability.Metrics, opts ...pipeline.Option) *pipeline.Pipeline {
	return pipeline.New(src, swarm.Engine{Workers: 2}, swarm.DefaultParams(), sinks, discardLogger(), metrics, opts...)
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { domain.SetClock(nil) })

	sink := &mockSink{}
	metrics := observability.NewMetricsForTesting()
	p := newPipeline(storeSource{input: testCatalog}, []pipeline.Sink{{Name: "mock", Sink: sink}}, metrics)

	require.Error(t, p.CheckReadiness(context.Background()))
	_, ok := p.LastRun()
	require.False(t, ok)

	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Rows)
	assert.Equal(t, 3, summary.Loaded)
	assert.Equal(t, map[string]int{"time": 1}, summary.Dropped)
	assert.Equal(t, 3, summary.WorkingSet)
	assert.Equal(t, 1, summary.Mainshocks)
	assert.Equal(t, 1, summary.Pairs)
	assert.Equal(t, fixed, summary.FinishedAt)

	require.Len(t, sink.loaded, 1)
	assert.Equal(t, "1-2", sink.loaded[0].Key())

	require.NoError(t, p.CheckReadiness(context.Background()))
	last, ok := p.LastRun()
	require.True(t, ok)
	assert.Equal(t, summary.Pairs, last.Pairs)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.EventsLoaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RowsDropped.WithLabelValues("time")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Mainshocks))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PairsFound))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning))
}

func TestPipeline_Run_ExtractError(t *testing.T) {
	loadErr := &domain.LoadError{Source: "catalog.csv", Err: os.ErrNotExist}
	sink := &mockSink{}
	p := newPipeline(storeSource{err: loadErr}, []pipeline.Sink{{Name: "mock", Sink: sink}}, observability.NewMetricsForTesting())

	_, err := p.Run(context.Background())

	var le *domain.LoadError
	require.True(t, errors.As(err, &le))
	assert.Zero(t, sink.calls)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_InvalidParams(t *testing.T) {
	params := swarm.DefaultParams()
	params.MaxRadiusKm = -1
	sink := &mockSink{}
	p := pipeline.New(storeSource{input: testCatalog}, swarm.Engine{}, params,
		[]pipeline.Sink{{Name: "mock", Sink: sink}}, discardLogger(), observability.NewMetricsForTesting())

	_, err := p.Run(context.Background())

	var ce *domain.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Zero(t, sink.calls)
}

func TestPipeline_Run_RetriesSink(t *testing.T) {
	sink := &mockSink{failures: 2}
	p := newPipeline(storeSource{input: testCatalog},
		[]pipeline.Sink{{Name: "kafka", Sink: sink, Retry: true}},
		observability.NewMetricsForTesting(),
		pipeline.WithRetry(3, time.Millisecond, 2*time.Millisecond))

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, sink.calls)
	assert.Len(t, sink.loaded, 1)
}

func TestPipeline_Run_SinkFailureDoesNotStopOthers(t *testing.T) {
	failing := &mockSink{failures: 100}
	healthy := &mockSink{}
	metrics := observability.NewMetricsForTesting()
	p := newPipeline(storeSource{input: testCatalog},
		[]pipeline.Sink{
			{Name: "kafka", Sink: failing, Retry: true},
			{Name: "report", Sink: healthy},
		},
		metrics,
		pipeline.WithRetry(2, time.Millisecond, time.Millisecond))

	summary, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink kafka")

	assert.Equal(t, 2, failing.calls)
	assert.Len(t, healthy.loaded, 1)
	assert.Equal(t, 1, summary.Pairs)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SinkErrors.WithLabelValues("kafka")))
	assert.Error(t, p.CheckReadiness(context.Background()), "a failed run does not flip readiness")
}

func TestPipeline_Run_NoRetryWithoutFlag(t *testing.T) {
	sink := &mockSink{failures: 1}
	p := newPipeline(storeSource{input: testCatalog},
		[]pipeline.Sink{{Name: "report", Sink: sink}},
		observability.NewMetricsForTesting(),
		pipeline.WithRetry(5, time.Millisecond, time.Millisecond))

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, sink.calls)
}

func TestPipeline_Run_CancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := &cancellingSink{cancel: cancel}
	p := newPipeline(storeSource{input: testCatalog},
		[]pipeline.Sink{{Name: "kafka", Sink: sink, Retry: true}},
		observability.NewMetricsForTesting(),
		pipeline.WithRetry(10, time.Hour, time.Hour))

	_, err := p.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, sink.calls)
}

type cancellingSink struct {
	cancel context.CancelFunc
	calls  int
}

func (s *cancellingSink) LoadBatch(_ context.Context, _ []domain.Pair) error {
	s.calls++
	s.cancel()
	return errors.New("broker down")
}

func TestPipeline_FileSourceToReport(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "catalog.csv")
	out := filepath.Join(dir, "pairs.csv")
	require.NoError(t, os.WriteFile(in, []byte(testCatalog), 0o600))

	p := newPipeline(pipeline.FileSource{Path: in},
		[]pipeline.Sink{{Name: "report", Sink: pipeline.ReportFile{Path: out}}},
		observability.NewMetricsForTesting())

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	pairs, err := report.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 5.0, pairs[0].DaysBefore)
}

func TestPipeline_ReportWriter(t *testing.T) {
	var buf bytes.Buffer
	p := newPipeline(storeSource{input: testCatalog},
		[]pipeline.Sink{{Name: "report", Sink: pipeline.ReportWriter{W: &buf}}},
		observability.NewMetricsForTesting())

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	pairs, err := report.Read(&buf)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, 5.0, pairs[0].DaysBefore)
}

func TestTableSource(t *testing.T) {
	tbl, err := catalog.ReadTable(strings.NewReader(testCatalog))
	require.NoError(t, err)

	store, err := pipeline.TableSource{Table: tbl, Name: "fetched"}.Extract(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())

	_, err = pipeline.TableSource{Name: "empty"}.Extract(context.Background())
	var le *domain.LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "empty", le.Source)
}

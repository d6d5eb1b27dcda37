package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/seismic-swarm-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/seismic-swarm-etl/internal/adapter/kafka"
	"github.com/couchcryptid/seismic-swarm-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/seismic-swarm-etl/internal/pipeline"
	"github.com/couchcryptid/seismic-swarm-etl/internal/swarm"
)

type pairsOptions struct {
	in, out, db string
	serve       bool
	stdout      io.Writer // report destination when out is "-"
}

func newPairsCmd(a *app) *cobra.Command {
	var opts pairsOptions
	var (
		minMag, maxRadius float64
		maxDays, workers  int
		country           string
		kafka             bool
	)

	cmd := &cobra.Command{
		Use:   "pairs",
		Short: "Find mainshock/candidate pairs and write the pair report",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, "in", "out"); err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("min-mag") {
				a.cfg.MinMainshockMag = minMag
			}
			if f.Changed("max-days") {
				a.cfg.MaxDaysBefore = maxDays
			}
			if f.Changed("max-radius") {
				a.cfg.MaxRadiusKm = maxRadius
			}
			if f.Changed("country") {
				a.cfg.CountryFilter = country
			}
			if f.Changed("workers") {
				a.cfg.PairWorkers = resolveWorkers(workers)
			}
			if f.Changed("kafka") {
				a.cfg.KafkaEnabled = kafka
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			opts.stdout = cmd.OutOrStdout()
			return a.runPairs(cmd.Context(), opts)
		},
	}

	defaults := swarm.DefaultParams()
	f := cmd.Flags()
	f.StringVar(&opts.in, "in", "", "catalog CSV path")
	f.StringVar(&opts.out, "out", "", "pair report CSV path, - for stdout")
	f.StringVar(&opts.db, "db", "", "also load the pairs into this SQLite database")
	f.BoolVar(&opts.serve, "serve", false, "keep the ops server running after the run until interrupted")
	f.Float64Var(&minMag, "min-mag", defaults.MinMainshockMag, "minimum mainshock magnitude (MIN_MAINSHOCK_MAG)")
	f.IntVar(&maxDays, "max-days", defaults.MaxDaysBefore, "candidate window in days before the mainshock (MAX_DAYS_BEFORE)")
	f.Float64Var(&maxRadius, "max-radius", defaults.MaxRadiusKm, "candidate radius in km (MAX_RADIUS_KM)")
	f.StringVar(&country, "country", "", "restrict the working set to one country (COUNTRY_FILTER)")
	f.IntVar(&workers, "workers", 1, "pairing workers, 0 for one per CPU (PAIR_WORKERS)")
	f.BoolVar(&kafka, "kafka", false, "publish pairs to Kafka (KAFKA_ENABLED)")
	return cmd
}

// resolveWorkers maps 0 to one worker per CPU. Negative values are left for
// Validate to reject.
func resolveWorkers(n int) int {
	if n == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

func (a *app) runPairs(ctx context.Context, opts pairsOptions) error {
	var reportSink pipeline.PairSink = pipeline.ReportWriter{W: opts.stdout}
	if opts.out != "-" {
		if err := os.MkdirAll(filepath.Dir(opts.out), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		reportSink = pipeline.ReportFile{Path: opts.out}
	}
	sinks := []pipeline.Sink{{Name: "report", Sink: reportSink}}

	if a.cfg.KafkaEnabled {
		w := kafkaadapter.NewWriter(a.cfg, a.metrics, a.logger)
		defer func() {
			if err := w.Close(); err != nil {
				a.logger.Error("kafka writer close error", "error", err)
			}
		}()
		sinks = append(sinks, pipeline.Sink{Name: "kafka", Sink: w, Retry: true})
	}
	if opts.db != "" {
		db, err := sqlite.Open(opts.db, a.logger)
		if err != nil {
			return err
		}
		defer db.Close()
		sinks = append(sinks, pipeline.Sink{Name: "sqlite", Sink: db})
	}

	p := pipeline.New(
		pipeline.FileSource{Path: opts.in},
		swarm.Engine{Workers: a.cfg.PairWorkers},
		a.cfg.PairParams(),
		sinks,
		a.logger,
		a.metrics,
	)

	if a.cfg.HTTPAddr != "" {
		stop := a.startOpsServer(p)
		defer stop()
	}

	summary, err := p.Run(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("pair report written", "path", opts.out, "pairs", summary.Pairs)

	if opts.serve && a.cfg.HTTPAddr != "" {
		a.logger.Info("serving ops endpoints until interrupted", "addr", a.cfg.HTTPAddr)
		<-ctx.Done()
	}
	return nil
}

// startOpsServer runs the health/metrics server in the background and
// returns a function that shuts it down within the configured timeout.
func (a *app) startOpsServer(p *pipeline.Pipeline) func() {
	srv := httpadapter.NewServer(a.cfg.HTTPAddr, p, a.gatherer, a.logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Error("http server shutdown error", "error", err)
		}
	}
}

// Command swarm runs the seismic swarm ETL: fetch a regional catalog from
// USGS, clean and enrich it, find mainshock/candidate pairs, band the pair
// report by latitude, and load catalogs and pairs into SQLite.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
	"github.com/couchcryptid/seismic-swarm-etl/internal/observability"
)

// Exit codes.
const (
	exitFailure = 1 // load, configuration or runtime failure
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	a := &app{
		metrics:  observability.NewMetrics(),
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()

	if err != nil {
		a.logger.Error("swarm failed", "kind", errorKind(err), "error", err)
		os.Exit(exitCode(err))
	}
}

// usageError marks bad invocations: unknown flags, missing arguments.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ue *usageError
	if errors.As(err, &ue) || strings.HasPrefix(err.Error(), "unknown command") {
		return exitUsage
	}
	return exitFailure
}

func errorKind(err error) string {
	var (
		ue *usageError
		le *domain.LoadError
		ce *domain.ConfigurationError
	)
	switch {
	case errors.As(err, &ue):
		return "usage"
	case errors.As(err, &le):
		return "load"
	case errors.As(err, &ce):
		return "configuration"
	default:
		return "runtime"
	}
}

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/seismic-swarm-etl/internal/config"
	"github.com/couchcryptid/seismic-swarm-etl/internal/observability"
)

// app carries what every subcommand needs. Config and logger are filled in
// by the root pre-run hook.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	gatherer prometheus.Gatherer
}

func newRootCmd(a *app) *cobra.Command {
	var envFile, logLevel string

	root := &cobra.Command{
		Use:           "swarm",
		Short:         "Seismic swarm ETL: catalog ingestion and mainshock/candidate pairing",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			a.cfg = cfg
			a.logger = observability.NewLogger(cfg)
			return nil
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading the environment (default .env if present)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newFetchCmd(a),
		newCleanCmd(a),
		newEnrichCmd(a),
		newPairsCmd(a),
		newBandCmd(a),
		newLoadCmd(a),
	)
	return root
}

// loadEnv loads the given dotenv file, or .env when present. Variables
// already set in the environment win.
func loadEnv(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// noArgs rejects positional arguments as a usage error.
func noArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &usageError{err: fmt.Errorf("unexpected arguments: %s", strings.Join(args, " "))}
	}
	return nil
}

// requireFlags reports unset flags as a usage error.
func requireFlags(cmd *cobra.Command, names ...string) error {
	var missing []string
	for _, n := range names {
		if v, err := cmd.Flags().GetString(n); err != nil || v == "" {
			missing = append(missing, "--"+n)
		}
	}
	if len(missing) > 0 {
		return &usageError{err: fmt.Errorf("required flag(s) not set: %s", strings.Join(missing, ", "))}
	}
	return nil
}

// createOutput opens path for writing, or returns stdout for "-".
func createOutput(cmd *cobra.Command, path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopCloser{cmd.OutOrStdout()}, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

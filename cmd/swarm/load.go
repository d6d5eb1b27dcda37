package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/seismic-swarm-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/seismic-swarm-etl/internal/catalog"
	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
	"github.com/couchcryptid/seismic-swarm-etl/internal/report"
)

func newBandCmd(a *app) *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "band",
		Short: "Append North/Center/South macro region columns to a pair report",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, "in", "out"); err != nil {
				return err
			}
			f, err := os.Open(in)
			if err != nil {
				return &domain.LoadError{Source: in, Err: err}
			}
			defer f.Close()
			w, err := createOutput(cmd, out)
			if err != nil {
				return err
			}
			n, err := report.Band(f, w)
			if err != nil {
				_ = w.Close()
				return err
			}
			a.logger.Info("pair report banded", "rows", n)
			return w.Close()
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "pair report CSV path")
	cmd.Flags().StringVar(&out, "out", "", "output CSV path, - for stdout")
	return cmd
}

// Schemas accepted by load --schema.
const (
	schemaNormalized = "normalized"
	schemaStar       = "star"
	schemaBoth       = "both"
)

func newLoadCmd(a *app) *cobra.Command {
	var catalogPath, pairsPath, dbPath, schema string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a catalog (and optionally a pair report) into SQLite",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, "catalog"); err != nil {
				return err
			}
			switch schema {
			case schemaNormalized, schemaStar, schemaBoth:
			default:
				return &usageError{err: fmt.Errorf("invalid --schema %q: want normalized, star or both", schema)}
			}
			if !cmd.Flags().Changed("db") {
				dbPath = a.cfg.DBPath
			}

			store, err := catalog.LoadFile(catalogPath)
			if err != nil {
				return err
			}
			var pairs []domain.Pair
			if pairsPath != "" {
				if pairs, err = report.ReadFile(pairsPath); err != nil {
					return &domain.LoadError{Source: pairsPath, Err: err}
				}
			}

			db, err := sqlite.Open(dbPath, a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			events := store.Events()
			if schema != schemaStar {
				if err := db.LoadNormalized(ctx, events); err != nil {
					return err
				}
			}
			if schema != schemaNormalized {
				if err := db.LoadStarSchema(ctx, events); err != nil {
					return err
				}
			}
			if pairsPath != "" {
				if err := db.LoadBatch(ctx, pairs); err != nil {
					return err
				}
			}
			a.logger.Info("database loaded", "path", dbPath, "events", len(events), "pairs", len(pairs))
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "catalog CSV path")
	cmd.Flags().StringVar(&pairsPath, "pairs", "", "pair report CSV path")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default DB_PATH)")
	cmd.Flags().StringVar(&schema, "schema", schemaBoth, "schema to load: normalized, star or both")
	return cmd
}

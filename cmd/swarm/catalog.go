package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/seismic-swarm-etl/internal/adapter/mapbox"
	"github.com/couchcryptid/seismic-swarm-etl/internal/adapter/usgs"
	"github.com/couchcryptid/seismic-swarm-etl/internal/catalog"
	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
	"github.com/couchcryptid/seismic-swarm-etl/internal/fault"
	"github.com/couchcryptid/seismic-swarm-etl/internal/pipeline"
)

func newFetchCmd(a *app) *cobra.Command {
	var start, end, out string
	var minMag float64

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the Italian USGS catalog in 4-month windows",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, "out"); err != nil {
				return err
			}
			endTime := domain.Now()
			if end != "" {
				t, err := time.Parse(time.DateOnly, end)
				if err != nil {
					return &usageError{err: fmt.Errorf("invalid --end: %w", err)}
				}
				endTime = t
			}
			startTime := endTime.AddDate(-1, 0, 0)
			if start != "" {
				t, err := time.Parse(time.DateOnly, start)
				if err != nil {
					return &usageError{err: fmt.Errorf("invalid --start: %w", err)}
				}
				startTime = t
			}

			q := usgs.ItalyQuery(startTime, endTime)
			q.MinMagnitude = minMag
			client := usgs.NewClient(a.cfg.USGSBaseURL, a.cfg.USGSTimeout, a.metrics, a.logger)
			tbl, stats, err := client.Fetch(cmd.Context(), q)
			if err != nil {
				return err
			}
			a.logger.Info("catalog fetched", "windows", stats.Windows, "failed", stats.Failed, "rows", stats.Rows)
			return writeTable(cmd, out, tbl)
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "start date YYYY-MM-DD (default one year before --end)")
	cmd.Flags().StringVar(&end, "end", "", "end date YYYY-MM-DD, exclusive (default now)")
	cmd.Flags().Float64Var(&minMag, "min-mag", 0, "minimum magnitude to request")
	cmd.Flags().StringVar(&out, "out", "", "output CSV path, - for stdout")
	return cmd
}

func newCleanCmd(a *app) *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Drop bookkeeping columns and blank-magnitude rows, number rows from 1",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, "in", "out"); err != nil {
				return err
			}
			tbl, err := readTable(in)
			if err != nil {
				return err
			}
			cleaned := tbl.Clean(catalog.DefaultDropColumns)
			a.logger.Info("catalog cleaned", "rows_in", len(tbl.Rows), "rows_out", len(cleaned.Rows))
			return writeTable(cmd, out, cleaned)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input CSV path")
	cmd.Flags().StringVar(&out, "out", "", "output CSV path, - for stdout")
	return cmd
}

func newEnrichCmd(a *app) *cobra.Command {
	var in, out, country, faultsPath string

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Fill location and country by reverse geocoding and the nearest fault name",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, "in", "out"); err != nil {
				return err
			}
			tbl, err := readTable(in)
			if err != nil {
				return err
			}

			var geocoder domain.Geocoder
			if a.cfg.MapboxEnabled {
				client := mapbox.NewClient(a.cfg.MapboxToken, a.cfg.MapboxTimeout, a.metrics, a.logger)
				geocoder = mapbox.NewCachedGeocoder(client, a.cfg.MapboxCacheSize, a.metrics)
				a.logger.Info("mapbox geocoding enabled", "cache_size", a.cfg.MapboxCacheSize, "timeout", a.cfg.MapboxTimeout)
			} else {
				a.logger.Info("mapbox geocoding disabled")
			}

			var faults pipeline.FaultLocator
			if !cmd.Flags().Changed("faults") {
				faultsPath = a.cfg.FaultsPath
			}
			if faultsPath != "" {
				idx, err := fault.LoadFile(faultsPath, a.cfg.FaultNameProperty)
				if err != nil {
					return &domain.LoadError{Source: faultsPath, Err: err}
				}
				a.logger.Info("fault dataset loaded", "faults", idx.Len())
				faults = idx
			}

			if !cmd.Flags().Changed("country") {
				country = a.cfg.CountryFilter
			}
			enriched, _, err := pipeline.NewEnricher(geocoder, faults, country, a.logger).Enrich(cmd.Context(), tbl)
			if err != nil {
				return err
			}
			return writeTable(cmd, out, enriched)
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input CSV path")
	cmd.Flags().StringVar(&out, "out", "", "output CSV path, - for stdout")
	cmd.Flags().StringVar(&country, "country", "", "keep only rows in this country after geocoding (default COUNTRY_FILTER)")
	cmd.Flags().StringVar(&faultsPath, "faults", "", "GeoJSON fault dataset (default FAULTS_PATH)")
	return cmd
}

func readTable(path string) (*catalog.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &domain.LoadError{Source: path, Err: err}
	}
	defer f.Close()
	tbl, err := catalog.ReadTable(f)
	if err != nil {
		return nil, &domain.LoadError{Source: path, Err: err}
	}
	return tbl, nil
}

func writeTable(cmd *cobra.Command, path string, tbl *catalog.Table) error {
	w, err := createOutput(cmd, path)
	if err != nil {
		return err
	}
	if err := tbl.Write(w); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

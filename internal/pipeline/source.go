package pipeline

import (
	"context"
	"errors"
	"io"

	"github.com/couchcryptid/seismic-swarm-etl/internal/catalog"
	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
	"github.com/couchcryptid/seismic-swarm-etl/internal/report"
)

// FileSource reads the catalog from a CSV file.
type FileSource struct {
	Path string
}

func (s FileSource) Extract(_ context.Context) (*catalog.Store, error) {
	return catalog.LoadFile(s.Path)
}

// TableSource builds the store from an in-memory table, such as the output
// of a fetch and enrich pass.
type TableSource struct {
	Table *catalog.Table
	Name  string
}

func (s TableSource) Extract(ctx context.Context) (*catalog.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Table == nil {
		return nil, &domain.LoadError{Source: s.Name, Err: errors.New("no table")}
	}
	return catalog.FromTable(s.Table, s.Name)
}

// ReportFile writes pairs as a CSV report. The file is replaced atomically.
type ReportFile struct {
	Path string
}

func (r ReportFile) LoadBatch(_ context.Context, pairs []domain.Pair) error {
	return report.WriteFile(r.Path, pairs)
}

// ReportWriter streams the CSV report to W, typically stdout.
type ReportWriter struct {
	W io.Writer
}

func (r ReportWriter) LoadBatch(_ context.Context, pairs []domain.Pair) error {
	return report.Write(r.W, pairs)
}

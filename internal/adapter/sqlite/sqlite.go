// Package sqlite loads catalogs and pair reports into a SQLite database,
// either as a normalized schema or as a star schema for analysis.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
)

// Table names.
const (
	TableLocation       = "location"
	TableFault          = "fault"
	TableEventType      = "event_type"
	TableEarthquake     = "earthquake"
	TableDimTime        = "dim_time"
	TableDimLocation    = "dim_location"
	TableDimFault       = "dim_fault"
	TableDimType        = "dim_type"
	TableFactEarthquake = "fact_earthquake"
	TableSwarmPair      = "swarm_pair"
)

// DB wraps a SQLite connection.
type DB struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path. ":memory:" is
// accepted for tests.
func Open(path string, logger *slog.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &DB{db: db, logger: logger}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Count returns the number of rows in table. Only the package's own table
// names are accepted.
func (d *DB) Count(ctx context.Context, table string) (int, error) {
	if !knownTable(table) {
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func knownTable(name string) bool {
	switch name {
	case TableLocation, TableFault, TableEventType, TableEarthquake,
		TableDimTime, TableDimLocation, TableDimFault, TableDimType, TableFactEarthquake,
		TableSwarmPair:
		return true
	}
	return false
}

// withTx runs fn inside a transaction, committing on success.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// recreate drops the given tables (in order) and runs the schema DDL.
func recreate(ctx context.Context, tx *sql.Tx, drop []string, schema string) error {
	for _, t := range drop {
		if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+t); err != nil {
			return fmt.Errorf("drop %s: %w", t, err)
		}
	}
	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// nullString maps an optional text field to a SQL value.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

// lookup is an insert-or-get cache for a dimension keyed by K.
type lookup[K comparable] struct {
	stmt *sql.Stmt
	ids  map[K]int64
}

func newLookup[K comparable](ctx context.Context, tx *sql.Tx, insert string) (*lookup[K], error) {
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return nil, fmt.Errorf("prepare %q: %w", insert, err)
	}
	return &lookup[K]{stmt: stmt, ids: make(map[K]int64)}, nil
}

// id returns the key's row id, inserting args on first sight.
func (l *lookup[K]) id(ctx context.Context, key K, args ...any) (int64, error) {
	if id, ok := l.ids[key]; ok {
		return id, nil
	}
	res, err := l.stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	l.ids[key] = id
	return id, nil
}

func (l *lookup[K]) close() {
	_ = l.stmt.Close()
}

// Event types are normalized before lookup so "Earthquake " and
// "earthquake" share a row.
func typeKey(e domain.Event) string {
	return domain.NormalizeName(e.Type)
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
)

const normalizedSchema = `
CREATE TABLE location (
	id INTEGER PRIMARY KEY,
	location TEXT NOT NULL UNIQUE
);

CREATE TABLE fault (
	id INTEGER PRIMARY KEY,
	fault TEXT NOT NULL UNIQUE
);

CREATE TABLE event_type (
	id INTEGER PRIMARY KEY,
	type TEXT NOT NULL UNIQUE
);

CREATE TABLE earthquake (
	id INTEGER PRIMARY KEY,
	time TEXT NOT NULL,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	depth REAL,
	mag REAL NOT NULL,
	country TEXT NOT NULL,
	continent TEXT,
	location_id INTEGER REFERENCES location(id),
	fault_id INTEGER REFERENCES fault(id),
	type_id INTEGER NOT NULL REFERENCES event_type(id)
);

CREATE INDEX idx_earthquake_time ON earthquake(time);
CREATE INDEX idx_earthquake_fault ON earthquake(fault_id);
`

// LoadNormalized replaces the normalized tables with events. Location, fault
// and type values are deduplicated into lookup tables.
func (d *DB) LoadNormalized(ctx context.Context, events []domain.Event) error {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		drop := []string{TableEarthquake, TableLocation, TableFault, TableEventType}
		if err := recreate(ctx, tx, drop, normalizedSchema); err != nil {
			return err
		}

		locations, err := newLookup[string](ctx, tx, `INSERT INTO location (location) VALUES (?)`)
		if err != nil {
			return err
		}
		defer locations.close()
		faults, err := newLookup[string](ctx, tx, `INSERT INTO fault (fault) VALUES (?)`)
		if err != nil {
			return err
		}
		defer faults.close()
		types, err := newLookup[string](ctx, tx, `INSERT INTO event_type (type) VALUES (?)`)
		if err != nil {
			return err
		}
		defer types.close()

		insert, err := tx.PrepareContext(ctx, `
			INSERT INTO earthquake (
				id, time, latitude, longitude, depth, mag, country, continent,
				location_id, fault_id, type_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare earthquake insert: %w", err)
		}
		defer insert.Close()

		for _, e := range events {
			var locationID, faultID sql.NullInt64
			if e.Location != nil {
				id, err := locations.id(ctx, *e.Location, *e.Location)
				if err != nil {
					return fmt.Errorf("insert location for event %d: %w", e.ID, err)
				}
				locationID = sql.NullInt64{Int64: id, Valid: true}
			}
			if e.Fault != nil {
				id, err := faults.id(ctx, *e.Fault, *e.Fault)
				if err != nil {
					return fmt.Errorf("insert fault for event %d: %w", e.ID, err)
				}
				faultID = sql.NullInt64{Int64: id, Valid: true}
			}
			typeID, err := types.id(ctx, typeKey(e), typeKey(e))
			if err != nil {
				return fmt.Errorf("insert type for event %d: %w", e.ID, err)
			}

			if _, err := insert.ExecContext(ctx,
				e.ID, domain.FormatTime(e.Time), e.Latitude, e.Longitude, nullFloat(e.Depth), e.Magnitude,
				e.Country, nullString(e.Continent), locationID, faultID, typeID,
			); err != nil {
				return fmt.Errorf("insert event %d: %w", e.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load normalized schema: %w", err)
	}
	d.logger.Info("normalized schema loaded", "events", len(events))
	return nil
}

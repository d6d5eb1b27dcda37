package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
)

const starSchema = `
CREATE TABLE dim_time (
	time_sk INTEGER PRIMARY KEY AUTOINCREMENT,
	time TEXT NOT NULL UNIQUE,
	hour INTEGER NOT NULL,
	day INTEGER NOT NULL,
	month INTEGER NOT NULL,
	quarter INTEGER NOT NULL,
	year INTEGER NOT NULL,
	day_of_week TEXT NOT NULL,
	month_name TEXT NOT NULL
);

CREATE TABLE dim_location (
	location_sk INTEGER PRIMARY KEY AUTOINCREMENT,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	location TEXT,
	country TEXT NOT NULL,
	macro_region TEXT NOT NULL
);

CREATE TABLE dim_fault (
	fault_sk INTEGER PRIMARY KEY AUTOINCREMENT,
	fault TEXT NOT NULL UNIQUE
);

CREATE TABLE dim_type (
	type_sk INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL UNIQUE
);

CREATE TABLE fact_earthquake (
	earthquake_sk INTEGER PRIMARY KEY AUTOINCREMENT,
	time_sk INTEGER NOT NULL REFERENCES dim_time(time_sk),
	location_sk INTEGER NOT NULL REFERENCES dim_location(location_sk),
	fault_sk INTEGER REFERENCES dim_fault(fault_sk),
	type_sk INTEGER NOT NULL REFERENCES dim_type(type_sk),
	count_events INTEGER NOT NULL DEFAULT 1,
	depth REAL,
	mag REAL NOT NULL,
	earthquake_id INTEGER NOT NULL
);
`

type locationKey struct {
	lat, lon          float64
	location, country string
}

// TimeParts are the calendar attributes stored in dim_time.
type TimeParts struct {
	Hour, Day, Month, Quarter, Year int
	DayOfWeek, MonthName            string
}

// SplitTime breaks t (in UTC) into dim_time attributes.
func SplitTime(t time.Time) TimeParts {
	t = t.UTC()
	return TimeParts{
		Hour:      t.Hour(),
		Day:       t.Day(),
		Month:     int(t.Month()),
		Quarter:   (int(t.Month())-1)/3 + 1,
		Year:      t.Year(),
		DayOfWeek: t.Weekday().String(),
		MonthName: t.Month().String(),
	}
}

// LoadStarSchema replaces the star schema with events: one fact row per event
// pointing at deduplicated time, location, fault and type dimensions.
func (d *DB) LoadStarSchema(ctx context.Context, events []domain.Event) error {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		drop := []string{TableFactEarthquake, TableDimTime, TableDimLocation, TableDimFault, TableDimType}
		if err := recreate(ctx, tx, drop, starSchema); err != nil {
			return err
		}

		times, err := newLookup[string](ctx, tx, `
			INSERT INTO dim_time (time, hour, day, month, quarter, year, day_of_week, month_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer times.close()
		locations, err := newLookup[locationKey](ctx, tx, `
			INSERT INTO dim_location (latitude, longitude, location, country, macro_region)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer locations.close()
		faults, err := newLookup[string](ctx, tx, `INSERT INTO dim_fault (fault) VALUES (?)`)
		if err != nil {
			return err
		}
		defer faults.close()
		types, err := newLookup[string](ctx, tx, `INSERT INTO dim_type (type) VALUES (?)`)
		if err != nil {
			return err
		}
		defer types.close()

		insert, err := tx.PrepareContext(ctx, `
			INSERT INTO fact_earthquake (
				time_sk, location_sk, fault_sk, type_sk, count_events, depth, mag, earthquake_id
			) VALUES (?, ?, ?, ?, 1, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare fact insert: %w", err)
		}
		defer insert.Close()

		for _, e := range events {
			ts := domain.FormatTime(e.Time)
			parts := SplitTime(e.Time)
			timeSK, err := times.id(ctx, ts, ts, parts.Hour, parts.Day, parts.Month, parts.Quarter,
				parts.Year, parts.DayOfWeek, parts.MonthName)
			if err != nil {
				return fmt.Errorf("insert time for event %d: %w", e.ID, err)
			}

			lk := locationKey{lat: e.Latitude, lon: e.Longitude, location: domain.Deref(e.Location), country: e.Country}
			lat := e.Latitude
			locationSK, err := locations.id(ctx, lk, e.Latitude, e.Longitude, nullString(e.Location),
				e.Country, domain.MacroRegion(&lat))
			if err != nil {
				return fmt.Errorf("insert location for event %d: %w", e.ID, err)
			}

			var faultSK sql.NullInt64
			if e.Fault != nil {
				id, err := faults.id(ctx, *e.Fault, *e.Fault)
				if err != nil {
					return fmt.Errorf("insert fault for event %d: %w", e.ID, err)
				}
				faultSK = sql.NullInt64{Int64: id, Valid: true}
			}

			typeSK, err := types.id(ctx, typeKey(e), typeKey(e))
			if err != nil {
				return fmt.Errorf("insert type for event %d: %w", e.ID, err)
			}

			if _, err := insert.ExecContext(ctx, timeSK, locationSK, faultSK, typeSK,
				nullFloat(e.Depth), e.Magnitude, e.ID); err != nil {
				return fmt.Errorf("insert fact for event %d: %w", e.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load star schema: %w", err)
	}
	d.logger.Info("star schema loaded", "events", len(events))
	return nil
}

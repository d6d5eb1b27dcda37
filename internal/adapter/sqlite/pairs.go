package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
)

const pairSchema = `
CREATE TABLE swarm_pair (
	mainshock_id INTEGER NOT NULL,
	candidate_id INTEGER NOT NULL,
	mainshock_time TEXT NOT NULL,
	candidate_time TEXT NOT NULL,
	mainshock_mag REAL NOT NULL,
	candidate_mag REAL NOT NULL,
	mainshock_fault TEXT,
	candidate_fault TEXT,
	mainshock_macro_region TEXT NOT NULL,
	candidate_macro_region TEXT NOT NULL,
	days_before REAL NOT NULL,
	distance_km REAL NOT NULL,
	PRIMARY KEY (mainshock_id, candidate_id)
);

CREATE INDEX idx_swarm_pair_candidate ON swarm_pair(candidate_id);
`

// LoadBatch replaces the swarm_pair table with pairs.
// It implements pipeline.PairSink.
func (d *DB) LoadBatch(ctx context.Context, pairs []domain.Pair) error {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := recreate(ctx, tx, []string{TableSwarmPair}, pairSchema); err != nil {
			return err
		}

		insert, err := tx.PrepareContext(ctx, `
			INSERT INTO swarm_pair (
				mainshock_id, candidate_id, mainshock_time, candidate_time,
				mainshock_mag, candidate_mag, mainshock_fault, candidate_fault,
				mainshock_macro_region, candidate_macro_region, days_before, distance_km
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare pair insert: %w", err)
		}
		defer insert.Close()

		for _, p := range pairs {
			ms, cs := p.Mainshock, p.Candidate
			msLat, csLat := ms.Latitude, cs.Latitude
			if _, err := insert.ExecContext(ctx,
				ms.ID, cs.ID, domain.FormatTime(ms.Time), domain.FormatTime(cs.Time),
				ms.Magnitude, cs.Magnitude, nullString(ms.Fault), nullString(cs.Fault),
				domain.MacroRegion(&msLat), domain.MacroRegion(&csLat), p.DaysBefore, p.DistanceKm,
			); err != nil {
				return fmt.Errorf("insert pair %s: %w", p.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("load pairs: %w", err)
	}
	d.logger.Info("pairs loaded", "pairs", len(pairs))
	return nil
}

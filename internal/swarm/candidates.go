package swarm

import (
	"time"

	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
)

// day is a calendar-free 24 hour day.
const day = 24 * time.Hour

// TemporalCandidates returns the events in [ref - maxDaysBefore days, ref)
// whose ID differs from excludeID, in input order. The lower bound is
// inclusive and the upper bound exclusive.
func TemporalCandidates(events []domain.Event, ref time.Time, maxDaysBefore int, excludeID int64) []domain.Event {
	lower := ref.Add(-time.Duration(maxDaysBefore) * day)

	var out []domain.Event
	for _, e := range events {
		if inWindow(e, lower, ref, excludeID) {
			out = append(out, e)
		}
	}
	return out
}

func inWindow(e domain.Event, lower, ref time.Time, excludeID int64) bool {
	return e.ID != excludeID && !e.Time.Before(lower) && e.Time.Before(ref)
}

// DaysBetween returns later - earlier in fractional days.
func DaysBetween(later, earlier time.Time) float64 {
	return later.Sub(earlier).Seconds() / day.Seconds()
}

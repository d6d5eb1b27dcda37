package domain

import (
	"time"
)

// EventTypeEarthquake is the event class the pairing engine works on.
const EventTypeEarthquake = "earthquake"

// RawRecord is one catalog row as read from CSV, before validation.
// Empty strings mean the cell was blank or the column was missing.
type RawRecord struct {
	ID        string
	Time      string
	Latitude  string
	Longitude string
	Depth     string
	Mag       string
	Type      string
	Country   string
	Continent string
	Location  string
	Fault     string
}

// Event is one validated earthquake catalog entry.
type Event struct {
	ID        int64     `json:"id"`
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Magnitude float64   `json:"magnitude"`
	Depth     *float64  `json:"depth"`
	Type      string    `json:"type"`
	Country   string    `json:"country"`
	Continent *string   `json:"continent"`
	Location  *string   `json:"location"`
	Fault     *string   `json:"fault"`
}

// Pair links a mainshock to an earlier nearby candidate event. Both events are
// snapshots taken when the pair was formed.
type Pair struct {
	Mainshock  Event   `json:"mainshock"`
	Candidate  Event   `json:"candidate"`
	DaysBefore float64 `json:"days_before"` // rounded to 4 decimals
	DistanceKm float64 `json:"distance_km"` // rounded to 2 decimals
}

// Key identifies a pair by its two event IDs, e.g. "17-12".
func (p Pair) Key() string {
	return formatInt(p.Mainshock.ID) + "-" + formatInt(p.Candidate.ID)
}

// StringPtr returns a pointer to s, or nil when s is blank.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 {
	return &v
}

// Deref returns the pointed-to string, or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

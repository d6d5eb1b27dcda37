package domain

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// Latitude thresholds for MacroRegion.
const (
	northMinLatitude  = 44.0
	centerMinLatitude = 41.5
)

// Macro region labels.
const (
	RegionNorth   = "North"
	RegionCenter  = "Center"
	RegionSouth   = "South"
	RegionUnknown = "Unknown"
)

var (
	errOutOfRange  = errors.New("out of range")
	errNotInteger  = errors.New("not an integer")
	errNotFinite   = errors.New("not a finite number")
	errUnknownTime = errors.New("unrecognized timestamp format")
)

// timeLayouts are tried in order by ParseTime. Layouts without a zone are
// interpreted as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseRecord validates a raw catalog row and builds an Event. Any missing or
// malformed required field yields a *FieldValidationError; malformed optional
// fields are dropped to nil.
func ParseRecord(row int, rec RawRecord) (Event, error) {
	id, err := parseID(rec.ID)
	if err != nil {
		return Event{}, fieldError(row, "id", rec.ID, err)
	}
	t, err := ParseTime(rec.Time)
	if err != nil {
		return Event{}, fieldError(row, "time", rec.Time, err)
	}
	lat, err := parseBounded(rec.Latitude, -90, 90)
	if err != nil {
		return Event{}, fieldError(row, "latitude", rec.Latitude, err)
	}
	lon, err := parseBounded(rec.Longitude, -180, 180)
	if err != nil {
		return Event{}, fieldError(row, "longitude", rec.Longitude, err)
	}
	mag, err := parseFinite(rec.Mag)
	if err != nil {
		return Event{}, fieldError(row, "mag", rec.Mag, err)
	}
	typ := strings.TrimSpace(rec.Type)
	if typ == "" {
		return Event{}, &FieldValidationError{Row: row, Field: "type"}
	}
	country := strings.TrimSpace(rec.Country)
	if country == "" {
		return Event{}, &FieldValidationError{Row: row, Field: "country"}
	}

	return Event{
		ID:        id,
		Time:      t,
		Latitude:  lat,
		Longitude: lon,
		Magnitude: mag,
		Depth:     parseOptionalFloat(rec.Depth),
		Type:      typ,
		Country:   country,
		Continent: StringPtr(strings.TrimSpace(rec.Continent)),
		Location:  StringPtr(strings.TrimSpace(rec.Location)),
		Fault:     StringPtr(strings.TrimSpace(rec.Fault)),
	}, nil
}

func fieldError(row int, field, value string, err error) *FieldValidationError {
	if strings.TrimSpace(value) == "" {
		return &FieldValidationError{Row: row, Field: field}
	}
	return &FieldValidationError{Row: row, Field: field, Value: value, Err: err}
}

// ParseTime parses a catalog timestamp. Times are returned in UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errUnknownTime
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errUnknownTime
}

// FormatTime renders t the way catalog and report files store it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseID accepts integer identifiers, including integral floats such as
// "42.0" written by tools that widen integer columns.
func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return id, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotInteger
	}
	if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
		return 0, errNotInteger
	}
	return int64(v), nil
}

func parseFinite(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

func parseBounded(s string, lo, hi float64) (float64, error) {
	v, err := parseFinite(s)
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, errOutOfRange
	}
	return v, nil
}

// parseOptionalFloat returns nil for blank or malformed input.
func parseOptionalFloat(s string) *float64 {
	v, err := parseFinite(s)
	if err != nil {
		return nil
	}
	return &v
}

// ParseCoordinates parses a latitude/longitude pair, reporting false when
// either value is missing, malformed or out of range.
func ParseCoordinates(lat, lon string) (float64, float64, bool) {
	la, err := parseBounded(lat, -90, 90)
	if err != nil {
		return 0, 0, false
	}
	lo, err := parseBounded(lon, -180, 180)
	if err != nil {
		return 0, 0, false
	}
	return la, lo, true
}

// NormalizeName folds a free-text label for comparison: trimmed, lower-cased.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsEarthquake reports whether the event belongs to the physical earthquake
// class (as opposed to explosions, quarry blasts and so on).
func IsEarthquake(e Event) bool {
	return NormalizeName(e.Type) == EventTypeEarthquake
}

// MatchesType reports whether the event's type equals name after normalization.
func MatchesType(e Event, name string) bool {
	return NormalizeName(e.Type) == NormalizeName(name)
}

// MatchesCountry reports whether the event's country equals name after
// normalization. A blank name matches everything.
func MatchesCountry(e Event, name string) bool {
	if strings.TrimSpace(name) == "" {
		return true
	}
	return NormalizeName(e.Country) == NormalizeName(name)
}

// MacroRegion assigns a coarse latitude band. A nil latitude is Unknown.
func MacroRegion(lat *float64) string {
	if lat == nil || math.IsNaN(*lat) {
		return RegionUnknown
	}
	switch {
	case *lat >= northMinLatitude:
		return RegionNorth
	case *lat >= centerMinLatitude:
		return RegionCenter
	default:
		return RegionSouth
	}
}

// MacroRegionOf parses a latitude cell and assigns its band.
func MacroRegionOf(lat string) string {
	return MacroRegion(parseOptionalFloat(lat))
}

// Round rounds v to the given number of decimal places, half away from zero.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// Package report reads and writes the mainshock/candidate pair CSV.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
)

// Column names, in output order.
const (
	ColMSID       = "MS_ID"
	ColMSTime     = "MS_Time"
	ColMSLat      = "MS_Lat"
	ColMSLon      = "MS_Lon"
	ColMSMag      = "MS_Mag"
	ColMSDepth    = "MS_Depth"
	ColMSCountry  = "MS_Country"
	ColMSFault    = "MS_Fault"
	ColMSLocation = "MS_location"
	ColCSID       = "CS_ID"
	ColCSTime     = "CS_Time"
	ColCSLat      = "CS_Lat"
	ColCSLon      = "CS_Lon"
	ColCSMag      = "CS_Mag"
	ColCSDepth    = "CS_Depth"
	ColCSCountry  = "CS_Country"
	ColCSFault    = "CS_Fault"
	ColCSLocation = "CS_location"
	ColDaysBefore = "Days_Before_Exact"
	ColDistanceKm = "Distance_Exact_km"
)

// Header returns the fixed pair report header.
func Header() []string {
	return []string{
		ColMSID, ColMSTime, ColMSLat, ColMSLon, ColMSMag, ColMSDepth, ColMSCountry, ColMSFault, ColMSLocation,
		ColCSID, ColCSTime, ColCSLat, ColCSLon, ColCSMag, ColCSDepth, ColCSCountry, ColCSFault, ColCSLocation,
		ColDaysBefore, ColDistanceKm,
	}
}

// Write renders pairs as CSV. The header is written even when pairs is empty.
func Write(w io.Writer, pairs []domain.Pair) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, p := range pairs {
		if err := cw.Write(Record(p)); err != nil {
			return fmt.Errorf("write pair %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the report to path atomically: the data goes to a
// temporary file in the same directory which is renamed over path only once
// fully written.
func WriteFile(path string, pairs []domain.Pair) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = Write(tmp, pairs); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp report: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename report: %w", err)
	}
	return nil
}

// Record flattens a pair into report cells. Absent optional fields are
// empty cells.
func Record(p domain.Pair) []string {
	rec := make([]string, 0, 20)
	rec = appendEvent(rec, p.Mainshock)
	rec = appendEvent(rec, p.Candidate)
	return append(rec, formatFloat(p.DaysBefore), formatFloat(p.DistanceKm))
}

func appendEvent(rec []string, e domain.Event) []string {
	depth := ""
	if e.Depth != nil {
		depth = formatFloat(*e.Depth)
	}
	return append(rec,
		strconv.FormatInt(e.ID, 10),
		domain.FormatTime(e.Time),
		formatFloat(e.Latitude),
		formatFloat(e.Longitude),
		formatFloat(e.Magnitude),
		depth,
		e.Country,
		domain.Deref(e.Fault),
		domain.Deref(e.Location),
	)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

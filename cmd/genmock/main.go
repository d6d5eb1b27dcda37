// Command genmock writes a synthetic, reproducible earthquake catalog in the
// enriched catalog format. Events are grouped into sequences (foreshocks, a
// mainshock, aftershocks) over a uniform background, which gives the pairing
// engine realistic clusters to find.
//
// Usage:
//
//	go run ./cmd/genmock -seed 42 -sequences 20 -background 500 -out data/mock/catalog.csv
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/couchcryptid/seismic-swarm-etl/internal/catalog"
	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
)

var header = []string{
	catalog.ColID, catalog.ColTime, catalog.ColLatitude, catalog.ColLongitude, catalog.ColDepth,
	catalog.ColMag, "magType", catalog.ColType, catalog.ColCountry, catalog.ColContinent,
	catalog.ColLocation, catalog.ColFault,
}

var faultNames = []string{
	"Paganica", "Mt. Vettore", "Colfiorito", "Mirandola", "Irpinia",
	"Campotosto", "Gubbio", "Val d'Agri", "Monte Morrone", "Casamicciola",
}

var magTypes = []string{"ml", "mb", "mw", "mww", "md"}

// options controls the generated catalog.
type options struct {
	seed       int64
	sequences  int
	background int
	start      time.Time
	days       int
}

// event is one generated row before IDs are assigned.
type event struct {
	time      time.Time
	lat, lon  float64
	depth     float64
	mag       float64
	magType   string
	eventType string
	location  string
	fault     string
}

// Italy bounding box, matching the default USGS fetch.
const (
	minLat, maxLat = 36.5, 47.0
	minLon, maxLon = 6.5, 18.5
	kmPerDegree    = 111.2
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	seed := flag.Int64("seed", 42, "random seed; the same seed yields the same catalog")
	sequences := flag.Int("sequences", 20, "number of clustered sequences")
	background := flag.Int("background", 500, "number of unclustered background events")
	start := flag.String("start", "2020-01-01", "first day of the catalog (YYYY-MM-DD)")
	days := flag.Int("days", 365, "length of the catalog in days")
	out := flag.String("out", "", "output CSV path (default stdout)")
	flag.Parse()

	startTime, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	if *days <= 0 || *sequences < 0 || *background < 0 {
		flag.Usage()
		return fmt.Errorf("-days must be > 0, -sequences and -background >= 0")
	}

	tbl := generate(options{
		seed:       *seed,
		sequences:  *sequences,
		background: *background,
		start:      startTime.UTC(),
		days:       *days,
	})

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := tbl.Write(w); err != nil {
		return err
	}
	if *out != "" {
		log.Printf("wrote %d events to %s", len(tbl.Rows), *out)
	}
	return nil
}

// generate builds the catalog table. Rows are sorted by time and numbered
// from 1.
func generate(o options) *catalog.Table {
	f := gofakeit.New(o.seed)
	span := time.Duration(o.days) * 24 * time.Hour
	end := o.start.Add(span)

	var events []event
	for range o.sequences {
		events = append(events, sequence(f, o.start, end)...)
	}
	for range o.background {
		events = append(events, backgroundEvent(f, o.start, end))
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].time.Before(events[j].time) })

	tbl := catalog.NewTable(header)
	for i, e := range events {
		tbl.Rows = append(tbl.Rows, []string{
			strconv.Itoa(i + 1),
			domain.FormatTime(e.time),
			formatCoord(e.lat),
			formatCoord(e.lon),
			strconv.FormatFloat(e.depth, 'f', 1, 64),
			strconv.FormatFloat(e.mag, 'f', 1, 64),
			e.magType,
			e.eventType,
			"Italy",
			"Europe",
			e.location,
			e.fault,
		})
	}
	return tbl
}

// sequence emits a mainshock with foreshocks in the preceding weeks and
// aftershocks in the following days, all within a few tens of km.
func sequence(f *gofakeit.Faker, start, end time.Time) []event {
	lat := f.Float64Range(minLat+0.5, maxLat-0.5)
	lon := f.Float64Range(minLon+0.5, maxLon-0.5)
	at := f.DateRange(start.Add(30*24*time.Hour), end)
	fault := faultNames[f.IntRange(0, len(faultNames)-1)]
	town := f.City()

	ms := event{
		time: at, lat: lat, lon: lon,
		depth:     f.Float64Range(5, 15),
		mag:       round1(f.Float64Range(4.0, 6.5)),
		magType:   "mww",
		eventType: domain.EventTypeEarthquake,
		location:  town,
		fault:     fault,
	}
	out := []event{ms}

	for range f.IntRange(0, 8) {
		out = append(out, nearby(f, ms, -f.Float64Range(0.01, 28), f.Float64Range(0.5, ms.mag-0.5)))
	}
	for range f.IntRange(2, 20) {
		e := nearby(f, ms, f.Float64Range(0.001, 10), f.Float64Range(0.5, ms.mag-0.3))
		if e.time.Before(end) {
			out = append(out, e)
		}
	}
	return out
}

// nearby places an event offsetDays from ref within about 25 km.
func nearby(f *gofakeit.Faker, ref event, offsetDays, mag float64) event {
	dist := f.Float64Range(0, 25) / kmPerDegree
	bearing := f.Float64Range(0, 2*math.Pi)
	return event{
		time:      ref.time.Add(time.Duration(offsetDays * float64(24*time.Hour))),
		lat:       ref.lat + dist*math.Cos(bearing),
		lon:       ref.lon + dist*math.Sin(bearing)/math.Cos(ref.lat*math.Pi/180),
		depth:     f.Float64Range(2, 20),
		mag:       round1(mag),
		magType:   magTypes[f.IntRange(0, 2)],
		eventType: domain.EventTypeEarthquake,
		location:  ref.location,
		fault:     ref.fault,
	}
}

// backgroundEvent is an isolated event anywhere in the box. About one in
// twenty is a quarry blast.
func backgroundEvent(f *gofakeit.Faker, start, end time.Time) event {
	e := event{
		time:      f.DateRange(start, end),
		lat:       f.Float64Range(minLat, maxLat),
		lon:       f.Float64Range(minLon, maxLon),
		depth:     f.Float64Range(1, 40),
		mag:       round1(f.Float64Range(0.5, 3.5)),
		magType:   magTypes[f.IntRange(0, len(magTypes)-1)],
		eventType: domain.EventTypeEarthquake,
		location:  f.City(),
	}
	if f.IntRange(1, 20) == 1 {
		e.eventType = "quarry blast"
		e.depth = 0
	}
	return e
}

func round1(v float64) float64 { return domain.Round(v, 1) }

func formatCoord(v float64) string { return strconv.FormatFloat(domain.Round(v, 4), 'f', -1, 64) }

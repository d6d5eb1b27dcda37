// Package fault answers nearest-fault queries against a GeoJSON line
// dataset such as the ITHACA catalogue of capable faults.
package fault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/couchcryptid/seismic-swarm-etl/internal/swarm"
)

// DefaultNameProperty is the feature property holding the fault name.
const DefaultNameProperty = "name"

type point struct{ lon, lat float64 }

type segment struct{ a, b point }

// Fault is one named trace made of line segments.
type Fault struct {
	Name     string
	segments []segment
}

// Match is the result of a nearest-fault lookup.
type Match struct {
	Name       string
	DistanceKm float64
}

// Index holds the loaded faults. It is read-only after construction and
// safe for concurrent use.
type Index struct {
	faults []Fault
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Properties map[string]any `json:"properties"`
	Geometry   *geometry      `json:"geometry"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// LoadFile reads a GeoJSON FeatureCollection from path.
func LoadFile(path, nameProperty string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fault dataset: %w", err)
	}
	defer f.Close()
	return Load(f, nameProperty)
}

// Load parses a GeoJSON FeatureCollection. LineString, MultiLineString,
// Polygon and MultiPolygon geometries are accepted; polygon rings are used
// as traces. Features without a name or a usable geometry are skipped.
func Load(r io.Reader, nameProperty string) (*Index, error) {
	if nameProperty == "" {
		nameProperty = DefaultNameProperty
	}
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode fault dataset: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("decode fault dataset: expected FeatureCollection, got %q", fc.Type)
	}

	idx := &Index{}
	for i, ft := range fc.Features {
		name := featureName(ft.Properties, nameProperty)
		if name == "" || ft.Geometry == nil {
			continue
		}
		lines, err := decodeLines(ft.Geometry)
		if err != nil {
			return nil, fmt.Errorf("feature %d (%s): %w", i, name, err)
		}
		f := Fault{Name: name}
		for _, line := range lines {
			f.segments = append(f.segments, toSegments(line)...)
		}
		if len(f.segments) > 0 {
			idx.faults = append(idx.faults, f)
		}
	}
	if len(idx.faults) == 0 {
		return nil, errors.New("fault dataset has no named line features")
	}
	return idx, nil
}

func featureName(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func decodeLines(g *geometry) ([][][]float64, error) {
	switch g.Type {
	case "LineString":
		var line [][]float64
		if err := json.Unmarshal(g.Coordinates, &line); err != nil {
			return nil, err
		}
		return [][][]float64{line}, nil
	case "MultiLineString", "Polygon":
		var lines [][][]float64
		if err := json.Unmarshal(g.Coordinates, &lines); err != nil {
			return nil, err
		}
		return lines, nil
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return nil, err
		}
		var lines [][][]float64
		for _, p := range polys {
			lines = append(lines, p...)
		}
		return lines, nil
	default:
		return nil, nil
	}
}

func toSegments(line [][]float64) []segment {
	pts := make([]point, 0, len(line))
	for _, c := range line {
		if len(c) < 2 {
			continue
		}
		pts = append(pts, point{lon: c[0], lat: c[1]})
	}
	switch len(pts) {
	case 0:
		return nil
	case 1:
		return []segment{{pts[0], pts[0]}}
	}
	segs := make([]segment, 0, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		segs = append(segs, segment{pts[i-1], pts[i]})
	}
	return segs
}

// Len returns the number of faults.
func (idx *Index) Len() int {
	return len(idx.faults)
}

// Nearest returns the fault closest to (lat, lon). The closest point on each
// segment is found in a local equirectangular projection and the reported
// distance is the great-circle distance to that point. Ties keep the fault
// loaded first.
func (idx *Index) Nearest(lat, lon float64) Match {
	best := Match{DistanceKm: math.Inf(1)}
	scale := math.Cos(lat * math.Pi / 180)
	p := point{lon: lon, lat: lat}

	for _, f := range idx.faults {
		for _, s := range f.segments {
			c := closest(p, s, scale)
			d := swarm.GreatCircleKm(lat, lon, c.lat, c.lon)
			if d < best.DistanceKm {
				best = Match{Name: f.Name, DistanceKm: d}
			}
		}
	}
	return best
}

// closest projects p onto s with longitudes scaled by the cosine of the
// query latitude.
func closest(p point, s segment, scale float64) point {
	ax, ay := s.a.lon*scale, s.a.lat
	bx, by := s.b.lon*scale, s.b.lat
	px, py := p.lon*scale, p.lat

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return s.a
	}
	t := ((px-ax)*dx + (py-ay)*dy) / lenSq
	t = math.Max(0, math.Min(1, t))
	return point{
		lon: s.a.lon + t*(s.b.lon-s.a.lon),
		lat: s.a.lat + t*(s.b.lat-s.a.lat),
	}
}

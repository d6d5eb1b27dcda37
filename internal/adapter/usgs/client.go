// Package usgs downloads event catalogs from the USGS FDSN event web service.
package usgs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/seismic-swarm-etl/internal/catalog"
	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
	"github.com/couchcryptid/seismic-swarm-etl/internal/observability"
)

// DefaultBaseURL is the public USGS earthquake host.
const DefaultBaseURL = "https://earthquake.usgs.gov"

const (
	queryPath = "/fdsnws/event/1/query.csv"
	// timeLayout is what the service accepts for starttime/endtime.
	timeLayout = "2006-01-02 15:04:05"
	// DefaultWindowMonths keeps each request well under the service's
	// per-query event limit.
	DefaultWindowMonths = 4
)

// ErrNoData is returned when every window succeeded but none held events.
var ErrNoData = errors.New("usgs: no events in the requested range")

// Query selects events by time range, magnitude and bounding box.
type Query struct {
	Start        time.Time
	End          time.Time
	MinMagnitude float64
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

// ItalyQuery returns a query over the Italian bounding box
// (lat 34 to 48, lon 5 to 20) for all magnitudes.
func ItalyQuery(start, end time.Time) Query {
	return Query{
		Start:        start,
		End:          end,
		MinMagnitude: 0,
		MinLatitude:  34,
		MaxLatitude:  48,
		MinLongitude: 5,
		MaxLongitude: 20,
	}
}

func (q Query) values() url.Values {
	return url.Values{
		"starttime":    {q.Start.UTC().Format(timeLayout)},
		"endtime":      {q.End.UTC().Format(timeLayout)},
		"minmagnitude": {formatFloat(q.MinMagnitude)},
		"minlatitude":  {formatFloat(q.MinLatitude)},
		"maxlatitude":  {formatFloat(q.MaxLatitude)},
		"minlongitude": {formatFloat(q.MinLongitude)},
		"maxlongitude": {formatFloat(q.MaxLongitude)},
		"orderby":      {"time"},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Window is one [Start, End) slice of a fetch.
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows splits [start, end) into consecutive windows of the given number
// of calendar months. The last window is clipped to end.
func Windows(start, end time.Time, months int) []Window {
	if months < 1 {
		months = DefaultWindowMonths
	}
	var out []Window
	for cur := start; cur.Before(end); {
		next := cur.AddDate(0, months, 0)
		if next.After(end) {
			next = end
		}
		out = append(out, Window{Start: cur, End: next})
		cur = next
	}
	return out
}

// FetchStats summarises a windowed fetch.
type FetchStats struct {
	Windows    int
	Failed     int
	Rows       int
	Duplicates int // boundary events returned by two adjacent windows
}

// Client talks to the FDSN event service.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	windowMonths int
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates a client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		windowMonths: DefaultWindowMonths,
		metrics:      metrics,
		logger:       logger,
	}
}

// Fetch downloads q window by window and concatenates the results under a
// single header. A failing window is logged and skipped; the call fails only
// if every window fails, if ctx is cancelled, or if no events came back.
func (c *Client) Fetch(ctx context.Context, q Query) (*catalog.Table, FetchStats, error) {
	windows := Windows(q.Start, q.End, c.windowMonths)
	stats := FetchStats{Windows: len(windows)}
	if len(windows) == 0 {
		return nil, stats, fmt.Errorf("usgs: empty time range %s to %s", q.Start.Format(time.DateOnly), q.End.Format(time.DateOnly))
	}

	var out *catalog.Table
	seen := make(map[string]bool)
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		wq := q
		wq.Start, wq.End = w.Start, w.End

		t, err := c.FetchWindow(ctx, wq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, stats, ctx.Err()
			}
			stats.Failed++
			c.logger.Warn("usgs window failed",
				"start", w.Start.Format(timeLayout),
				"end", w.End.Format(timeLayout),
				"error", err,
			)
			continue
		}
		c.logger.Debug("usgs window fetched",
			"start", w.Start.Format(timeLayout),
			"end", w.End.Format(timeLayout),
			"rows", len(t.Rows),
		)
		if len(t.Header) == 0 {
			continue
		}
		if out == nil {
			out = catalog.NewTable(t.Header)
		}
		stats.Duplicates += appendRows(out, t, w.End, seen)
	}

	if stats.Failed == len(windows) {
		return nil, stats, fmt.Errorf("usgs: all %d windows failed", len(windows))
	}
	if out == nil || len(out.Rows) == 0 {
		return nil, stats, ErrNoData
	}
	stats.Rows = len(out.Rows)
	return out, stats, nil
}

// appendRows copies src rows into dst by column name and returns how many it
// skipped. Columns unknown to dst are dropped. The service treats endtime as
// inclusive, so an event on a window boundary comes back twice: rows are
// deduplicated on the upstream id, or, when the feed has no id column, rows
// stamped exactly at windowEnd are left for the next window.
func appendRows(dst, src *catalog.Table, windowEnd time.Time, seen map[string]bool) int {
	skipped := 0
	for i := range src.Rows {
		if id := strings.TrimSpace(src.Get(i, catalog.ColIDLower)); id != "" {
			if seen[id] {
				skipped++
				continue
			}
			seen[id] = true
		} else if t, err := domain.ParseTime(src.Get(i, catalog.ColTime)); err == nil && !t.Before(windowEnd) {
			skipped++
			continue
		}
		row := make([]string, len(dst.Header))
		for j, name := range dst.Header {
			row[j] = src.Get(i, name)
		}
		dst.Rows = append(dst.Rows, row)
	}
	return skipped
}

// FetchWindow performs a single request. A 204 or an empty body is an empty
// table with no header.
func (c *Client) FetchWindow(ctx context.Context, q Query) (*catalog.Table, error) {
	u := c.baseURL + queryPath + "?" + q.values().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.USGSRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("usgs request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		c.metrics.USGSRequests.WithLabelValues("success").Inc()
		return catalog.NewTable(nil), nil
	default:
		c.metrics.USGSRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("usgs API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.USGSRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("read usgs response: %w", err)
	}
	c.metrics.USGSRequests.WithLabelValues("success").Inc()
	if len(bytes.TrimSpace(body)) == 0 {
		return catalog.NewTable(nil), nil
	}

	t, err := catalog.ReadTable(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse usgs csv: %w", err)
	}
	return t, nil
}

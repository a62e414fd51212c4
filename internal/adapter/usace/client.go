// Package usace fetches reservoir time series from the USACE Access2Water
// reporting API. Locations are addressed as "provider/timeseries".
package usace

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/upstream"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// Client implements domain.SourceAdapter for USACE.
type Client struct {
	http       *upstream.Client
	baseURL    string
	chunkYears int
	logger     *slog.Logger
}

// NewClient creates a USACE adapter. Ranges longer than chunkYears are split
// into several requests.
func NewClient(baseURL string, chunkYears int, hc *upstream.Client, logger *slog.Logger) *Client {
	if chunkYears < 1 {
		chunkYears = 1
	}
	return &Client{
		http:       hc,
		baseURL:    strings.TrimRight(baseURL, "/"),
		chunkYears: chunkYears,
		logger:     logger,
	}
}

// Source reports domain.SourceUSACE.
func (c *Client) Source() domain.SourceType {
	return domain.SourceUSACE
}

// Fetch requests each chunk of r in order. Any failed chunk fails the whole
// fetch so a location is never stored with silent gaps.
func (c *Client) Fetch(ctx context.Context, loc domain.LocationRecord, r domain.DateRange) (domain.Series, error) {
	series := domain.Series{LocationID: loc.ID}

	provider, name, err := splitID(loc.ID)
	if err != nil {
		return series, err
	}

	var all []domain.Observation
	for _, chunk := range r.Chunks(c.chunkYears) {
		u := c.timeseriesURL(provider, name, chunk)
		series.Requests = append(series.Requests, u)

		body, err := c.http.Get(ctx, u)
		if err != nil {
			return series, fmt.Errorf("usace %s: %w", loc.ID, err)
		}
		obs, err := parseTimeseries(body, loc, u)
		if err != nil {
			return series, fmt.Errorf("usace %s: %w", loc.ID, err)
		}
		all = append(all, obs...)
	}

	series.Observations = upstream.LastPerDay(all, r)
	c.logger.Debug("usace fetch complete", "location_id", loc.ID, "chunks", len(series.Requests), "observations", len(series.Observations))
	return series, nil
}

func (c *Client) timeseriesURL(provider, name string, r domain.DateRange) string {
	q := url.Values{
		"name":  {name},
		"begin": {domain.DateKey(r.Start) + "T00:00:00"},
		"end":   {domain.DateKey(r.End) + "T23:59:59"},
	}
	return fmt.Sprintf("%s/%s/timeseries?%s", c.baseURL, url.PathEscape(provider), q.Encode())
}

func splitID(id string) (provider, name string, err error) {
	provider, name, ok := strings.Cut(id, "/")
	if !ok || provider == "" || name == "" {
		return "", "", fmt.Errorf("%w: usace location %q is not provider/timeseries", domain.ErrConfiguration, id)
	}
	return provider, name, nil
}

// parseTimeseries reads the text format: "#"-prefixed metadata lines such as
// "# unit: ac-ft", then one "datetime,value" pair per line.
func parseTimeseries(body []byte, loc domain.LocationRecord, sourceURL string) ([]domain.Observation, error) {
	var (
		rawUnit string
		rows    [][2]string
	)

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if meta, ok := strings.CutPrefix(line, "#"); ok {
			if key, value, ok := splitMeta(meta); ok && strings.EqualFold(key, "unit") {
				rawUnit = value
			}
			continue
		}
		ts, value, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("%w: data line %q", domain.ErrMalformedResponse, line)
		}
		rows = append(rows, [2]string{ts, value})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}

	unit, err := domain.NormalizeUnit(rawUnit, loc.DataType)
	if err != nil {
		return nil, err
	}

	obs := make([]domain.Observation, 0, len(rows))
	for _, row := range rows {
		value, ok := upstream.ParseValue(row[1])
		if !ok {
			continue
		}
		ts, err := upstream.ParseTimestamp(row[0])
		if err != nil {
			return nil, err
		}
		obs = append(obs, domain.Observation{
			LocationID: loc.ID,
			Date:       ts,
			Value:      value,
			Unit:       unit,
			SourceURL:  sourceURL,
		})
	}
	return obs, nil
}

func splitMeta(s string) (key, value string, ok bool) {
	i := strings.IndexAny(s, ":=")
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
}

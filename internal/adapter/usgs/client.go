// Package usgs fetches daily means from the USGS Water Data OGC API.
package usgs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/upstream"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

const (
	statisticMean = "00003"
	maxPages      = 500
)

// Config selects parameter codes and page size.
type Config struct {
	BaseURL              string
	StorageParameterCode string
	// ElevationParameterCodes are tried in order until one returns features.
	ElevationParameterCodes []string
	PageLimit               int
}

// Client implements domain.SourceAdapter for USGS.
type Client struct {
	http   *upstream.Client
	cfg    Config
	logger *slog.Logger
}

// NewClient creates a USGS daily-values adapter.
func NewClient(cfg Config, hc *upstream.Client, logger *slog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PageLimit < 1 {
		cfg.PageLimit = 10000
	}
	return &Client{http: hc, cfg: cfg, logger: logger}
}

// Source reports domain.SourceUSGS.
func (c *Client) Source() domain.SourceType {
	return domain.SourceUSGS
}

// Fetch pulls the daily mean for the location's parameter. Elevation
// locations fall back through the configured codes when a code has no data.
func (c *Client) Fetch(ctx context.Context, loc domain.LocationRecord, r domain.DateRange) (domain.Series, error) {
	series := domain.Series{LocationID: loc.ID}

	codes := []string{c.cfg.StorageParameterCode}
	if loc.DataType == domain.DataElevation {
		codes = c.cfg.ElevationParameterCodes
	}

	for _, code := range codes {
		obs, features, requests, err := c.fetchParameter(ctx, loc, code, r)
		series.Requests = append(series.Requests, requests...)
		if err != nil {
			return series, fmt.Errorf("usgs %s parameter %s: %w", loc.ID, code, err)
		}
		// A code with features serves this site even when every value is null.
		if features > 0 {
			series.Observations = upstream.FirstPerDay(obs, r)
			c.logger.Debug("usgs fetch complete", "location_id", loc.ID, "parameter_code", code, "observations", len(series.Observations))
			return series, nil
		}
		c.logger.Debug("usgs parameter empty", "location_id", loc.ID, "parameter_code", code)
	}
	return series, nil
}

// fetchParameter returns the valid observations of one parameter code and
// the number of features seen, null values included.
func (c *Client) fetchParameter(ctx context.Context, loc domain.LocationRecord, code string, r domain.DateRange) ([]domain.Observation, int, []string, error) {
	var (
		obs      []domain.Observation
		features int
		requests []string
	)
	next := c.itemsURL(loc.ID, code, r)
	for page := 0; next != "" && page < maxPages; page++ {
		requests = append(requests, next)

		body, err := c.http.Get(ctx, next)
		if err != nil {
			return nil, features, requests, err
		}
		fc, err := decode(body)
		if err != nil {
			return nil, features, requests, err
		}
		pageObs, err := fc.observations(loc, next)
		if err != nil {
			return nil, features, requests, err
		}
		features += len(fc.Features)
		obs = append(obs, pageObs...)
		next = fc.nextLink()
	}
	return obs, features, requests, nil
}

func (c *Client) itemsURL(site, code string, r domain.DateRange) string {
	q := url.Values{
		"monitoring_location_id": {"USGS-" + strings.TrimPrefix(site, "USGS-")},
		"parameter_code":         {code},
		"statistic_id":           {statisticMean},
		"datetime":               {r.String()},
		"f":                      {"json"},
		"limit":                  {strconv.Itoa(c.cfg.PageLimit)},
	}
	return c.cfg.BaseURL + "/collections/daily/items?" + q.Encode()
}

// GeoJSON response types.

type featureCollection struct {
	Features []feature `json:"features"`
	Links    []link    `json:"links"`
}

type feature struct {
	Properties properties `json:"properties"`
}

type properties struct {
	Time          string          `json:"time"`
	Value         json.RawMessage `json:"value"`
	UnitOfMeasure string          `json:"unit_of_measure"`
}

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

func decode(body []byte) (featureCollection, error) {
	var fc featureCollection
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&fc); err != nil {
		return featureCollection{}, fmt.Errorf("%w: decode geojson: %w", domain.ErrMalformedResponse, err)
	}
	return fc, nil
}

func (fc featureCollection) nextLink() string {
	for _, l := range fc.Links {
		if l.Rel == "next" && l.Href != "" {
			return l.Href
		}
	}
	return ""
}

func (fc featureCollection) observations(loc domain.LocationRecord, sourceURL string) ([]domain.Observation, error) {
	obs := make([]domain.Observation, 0, len(fc.Features))
	for _, f := range fc.Features {
		p := f.Properties
		value, ok := parseRawValue(p.Value)
		if !ok {
			continue
		}
		ts, err := upstream.ParseTimestamp(p.Time)
		if err != nil {
			return nil, err
		}
		unit, err := domain.NormalizeUnit(p.UnitOfMeasure, loc.DataType)
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

// parseRawValue accepts a JSON number, a numeric string, or null.
func parseRawValue(raw json.RawMessage) (float64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, false
		}
		s = str
	}
	return upstream.ParseValue(s)
}

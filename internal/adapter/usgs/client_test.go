package usgs

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/upstream"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
	"github.com/couchcryptid/reservoir-data-etl/internal/observability"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hc := upstream.NewClient(upstream.Options{
		Source:  domain.SourceUSGS,
		Timeout: 5 * time.Second,
		Policy:  upstream.Policy{MaxAttempts: 1},
	}, observability.NewMetricsForTesting(), logger)
	return NewClient(Config{
		BaseURL:                 baseURL,
		StorageParameterCode:    "00054",
		ElevationParameterCodes: []string{"62614", "62615", "00062"},
		PageLimit:               2,
	}, hc, logger)
}

func writeCollection(t *testing.T, w http.ResponseWriter, fc map[string]any) {
	t.Helper()
	w.Header().Set(headerContentType, contentTypeJSON)
	require.NoError(t, json.NewEncoder(w).Encode(fc))
}

func featureAt(day string, value any, unit string) map[string]any {
	return map[string]any{
		"type":       "Feature",
		"properties": map[string]any{"time": day, "value": value, "unit_of_measure": unit},
	}
}

var janRange = domain.DateRange{Start: domain.Date(2025, time.January, 1), End: domain.Date(2025, time.January, 31)}

func TestClient_Fetch_FollowsNextLinks(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/daily/items", r.URL.Path)
		if r.URL.Query().Get("page") == "2" {
			writeCollection(t, w, map[string]any{
				"features": []any{featureAt("2025-01-03", nil, "acre-ft")},
			})
			return
		}
		q := r.URL.Query()
		assert.Equal(t, "USGS-09380000", q.Get("monitoring_location_id"))
		assert.Equal(t, "00054", q.Get("parameter_code"))
		assert.Equal(t, "00003", q.Get("statistic_id"))
		assert.Equal(t, "2025-01-01/2025-01-31", q.Get("datetime"))
		writeCollection(t, w, map[string]any{
			"features": []any{
				featureAt("2025-01-02", "24000000", "acre-ft"),
				featureAt("2025-01-01", 23990000.5, "acre-ft"),
			},
			"links": []any{
				map[string]any{"rel": "self", "href": srvURL + "/collections/daily/items"},
				map[string]any{"rel": "next", "href": srvURL + "/collections/daily/items?page=2"},
			},
		})
	}))
	defer srv.Close()
	srvURL = srv.URL

	loc := domain.LocationRecord{ID: "09380000", Source: domain.SourceUSGS, DataType: domain.DataStorage}
	series, err := testClient(srv.URL).Fetch(context.Background(), loc, janRange)
	require.NoError(t, err)

	require.Len(t, series.Observations, 2)
	assert.Equal(t, domain.Date(2025, time.January, 1), series.Observations[0].Date)
	assert.InDelta(t, 23990000.5, series.Observations[0].Value, 1e-9)
	assert.InDelta(t, 24000000, series.Observations[1].Value, 0)
	assert.Len(t, series.Requests, 2)
}

func TestClient_Fetch_ElevationCodeFallback(t *testing.T) {
	var (
		mu    sync.Mutex
		codes []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("parameter_code")
		mu.Lock()
		codes = append(codes, code)
		mu.Unlock()
		if code == "62615" {
			writeCollection(t, w, map[string]any{"features": []any{featureAt("2025-01-10", 3550.2, "ft")}})
			return
		}
		writeCollection(t, w, map[string]any{"features": []any{}})
	}))
	defer srv.Close()

	loc := domain.LocationRecord{ID: "USGS-09379900", Source: domain.SourceUSGS, DataType: domain.DataElevation}
	series, err := testClient(srv.URL).Fetch(context.Background(), loc, janRange)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"62614", "62615"}, codes)
	require.Len(t, series.Observations, 1)
	assert.Equal(t, domain.UnitFeet, series.Observations[0].Unit)
}

func TestClient_Fetch_NullFeaturesStopFallback(t *testing.T) {
	var (
		mu    sync.Mutex
		codes []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		codes = append(codes, r.URL.Query().Get("parameter_code"))
		mu.Unlock()
		writeCollection(t, w, map[string]any{"features": []any{
			featureAt("2025-01-10", nil, "ft"),
			featureAt("2025-01-11", nil, "ft"),
		}})
	}))
	defer srv.Close()

	loc := domain.LocationRecord{ID: "09379900", Source: domain.SourceUSGS, DataType: domain.DataElevation}
	series, err := testClient(srv.URL).Fetch(context.Background(), loc, janRange)
	require.NoError(t, err)
	assert.Empty(t, series.Observations)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"62614"}, codes, "a code with features is used even when all values are null")
}

func TestClient_Fetch_NoDataForAnyCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeCollection(t, w, map[string]any{"features": []any{}})
	}))
	defer srv.Close()

	loc := domain.LocationRecord{ID: "09379900", Source: domain.SourceUSGS, DataType: domain.DataElevation}
	series, err := testClient(srv.URL).Fetch(context.Background(), loc, janRange)
	require.NoError(t, err)
	assert.Empty(t, series.Observations)
	assert.Len(t, series.Requests, 3)
}

func TestClient_Fetch_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "{not json")
	}))
	defer srv.Close()

	loc := domain.LocationRecord{ID: "09380000", Source: domain.SourceUSGS}
	_, err := testClient(srv.URL).Fetch(context.Background(), loc, janRange)
	require.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestParseRawValue(t *testing.T) {
	v, ok := parseRawValue(json.RawMessage(`"12.5"`))
	require.True(t, ok)
	assert.InDelta(t, 12.5, v, 1e-9)

	v, ok = parseRawValue(json.RawMessage(`7`))
	require.True(t, ok)
	assert.InDelta(t, 7, v, 0)

	_, ok = parseRawValue(json.RawMessage(`null`))
	assert.False(t, ok)
	_, ok = parseRawValue(nil)
	assert.False(t, ok)
}

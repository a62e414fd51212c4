package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockReports struct {
	report domain.Report
	ok     bool
	err    error
}

func (m *mockReports) LatestReport(_ context.Context) (domain.Report, bool, error) {
	return m.report, m.ok, m.err
}

type mockStats struct {
	stats     map[string][]domain.DailyStatistic
	runs      []domain.RunRecord
	lastLimit int
}

func (m *mockStats) LocationStatistics(_ context.Context, id string) ([]domain.DailyStatistic, error) {
	return m.stats[id], nil
}

func (m *mockStats) ListRuns(_ context.Context, limit int) ([]domain.RunRecord, error) {
	m.lastLimit = limit
	return m.runs, nil
}

func newTestServer(readyErr error, reports *mockReports, stats *mockStats) *httpadapter.Server {
	if reports == nil {
		reports = &mockReports{}
	}
	if stats == nil {
		stats = &mockStats{}
	}
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, reports, stats, slog.Default())
}

func serve(srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(nil, nil, nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(newTestServer(nil, nil, nil), "/readyz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(newTestServer(fmt.Errorf("no daily run yet"), nil, nil), "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(nil, nil, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestLatestReport(t *testing.T) {
	queried := domain.Date(2025, time.January, 15)
	reports := &mockReports{ok: true, report: domain.Report{
		DateQueried: queried,
		Rows:        []domain.OutputRow{{SiteID: "SHA", DateQueried: queried}},
	}}
	rec := serve(newTestServer(nil, reports, nil), "/api/v1/reports/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got domain.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "SHA", got.Rows[0].SiteID)
	assert.True(t, got.DateQueried.Equal(queried))
}

func TestLatestReport_NoneYet(t *testing.T) {
	rec := serve(newTestServer(nil, &mockReports{}, nil), "/api/v1/reports/latest")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestReport_Error(t *testing.T) {
	rec := serve(newTestServer(nil, &mockReports{err: errors.New("disk gone")}, nil), "/api/v1/reports/latest")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk gone")
}

func TestLocationStatistics(t *testing.T) {
	stats := &mockStats{stats: map[string][]domain.DailyStatistic{
		"SHA": {{LocationID: "SHA", Month: 1, Day: 15, P50: 3000000, Count: 30}},
	}}
	srv := newTestServer(nil, nil, stats)

	rec := serve(srv, "/api/v1/locations/SHA/statistics")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		LocationID string                  `json:"location_id"`
		Statistics []domain.DailyStatistic `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "SHA", body.LocationID)
	require.Len(t, body.Statistics, 1)
	assert.InDelta(t, 3000000, body.Statistics[0].P50, 0)

	assert.Equal(t, http.StatusNotFound, serve(srv, "/api/v1/locations/ORO/statistics").Code)
}

func TestLocationStatistics_SlashInID(t *testing.T) {
	const id = "NWDM/FTPK.Stor.Inst.1Day"
	stats := &mockStats{stats: map[string][]domain.DailyStatistic{
		id: {{LocationID: id, Month: 1, Day: 15, P50: 15000000, Count: 30}},
	}}
	srv := newTestServer(nil, nil, stats)

	for _, target := range []string{
		"/api/v1/locations/NWDM/FTPK.Stor.Inst.1Day/statistics",
		"/api/v1/locations/NWDM%2FFTPK.Stor.Inst.1Day/statistics",
	} {
		rec := serve(srv, target)
		require.Equal(t, http.StatusOK, rec.Code, target)
		var body struct {
			LocationID string `json:"location_id"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, id, body.LocationID, target)
	}
}

func TestRuns(t *testing.T) {
	stats := &mockStats{runs: []domain.RunRecord{{Kind: domain.RunDaily, Status: domain.RunSucceeded}}}
	srv := newTestServer(nil, nil, stats)

	rec := serve(srv, "/api/v1/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, stats.lastLimit)
	assert.Contains(t, rec.Body.String(), `"status":"succeeded"`)

	serve(srv, "/api/v1/runs")
	assert.Equal(t, 20, stats.lastLimit)

	assert.Equal(t, http.StatusBadRequest, serve(srv, "/api/v1/runs?limit=zero").Code)
}

func TestUnknownMethodRejected(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(nil, nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/reports/latest", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/source"
	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
	"github.com/couchcryptid/reservoir-data-etl/internal/observability"
	"github.com/couchcryptid/reservoir-data-etl/internal/pipeline"
)

var (
	baselineWindow = domain.DateRange{
		Start: domain.Date(1990, time.October, 1),
		End:   domain.Date(2020, time.September, 30),
	}
	queryDate = domain.Date(2025, time.January, 15)
)

// --- fakes ---

// fakeAdapter serves canned observations per location, filtered to the
// requested range.
type fakeAdapter struct {
	src  domain.SourceType
	data map[string][]domain.Observation
	errs map[string]error

	mu    sync.Mutex
	calls []string
}

func newFakeAdapter(src domain.SourceType) *fakeAdapter {
	return &fakeAdapter{src: src, data: map[string][]domain.Observation{}, errs: map[string]error{}}
}

func (f *fakeAdapter) Source() domain.SourceType { return f.src }

func (f *fakeAdapter) Fetch(_ context.Context, loc domain.LocationRecord, r domain.DateRange) (domain.Series, error) {
	f.mu.Lock()
	f.calls = append(f.calls, loc.ID+" "+r.String())
	f.mu.Unlock()

	if err := f.errs[loc.ID]; err != nil {
		return domain.Series{}, err
	}
	series := domain.Series{LocationID: loc.ID, Requests: []string{"fake://" + loc.ID + "?" + r.String()}}
	for _, o := range f.data[loc.ID] {
		if r.Contains(o.Date) {
			series.Observations = append(series.Observations, o)
		}
	}
	return series, nil
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// --- builders ---

func observation(id string, day time.Time, value float64, unit string) domain.Observation {
	return domain.Observation{LocationID: id, Date: day, Value: value, Unit: unit, SourceURL: "fake://" + id}
}

// januaryHistory returns one value for every January day of calendar years
// first..last. January of year Y is in water year Y.
func januaryHistory(id string, first, last int, value float64, unit string) []domain.Observation {
	var out []domain.Observation
	for y := first; y <= last; y++ {
		for d := 1; d <= 31; d++ {
			out = append(out, observation(id, domain.Date(y, time.January, d), value, unit))
		}
	}
	return out
}

func location(id string, src domain.SourceType, dt domain.DataType) domain.LocationRecord {
	capacity := 4000.0
	return domain.LocationRecord{ID: id, Name: "Reservoir " + id, Source: src, DataType: dt, Capacity: &capacity}
}

type harness struct {
	store    *sqlite.Store
	metrics  *observability.Metrics
	adapters map[domain.SourceType]*fakeAdapter
	opts     pipeline.Options
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{
		store:    store,
		metrics:  observability.NewMetricsForTesting(),
		adapters: map[domain.SourceType]*fakeAdapter{},
		opts: pipeline.Options{
			Window:               baselineWindow,
			LookbackDays:         7,
			MinWaterYears:        20,
			FailureRateThreshold: 0.2,
			OutputDir:            filepath.Join(t.TempDir(), "out"),
		},
	}
	for _, src := range []domain.SourceType{domain.SourceRISE, domain.SourceUSACE, domain.SourceUSGS, domain.SourceCDEC} {
		h.adapters[src] = newFakeAdapter(src)
	}
	return h
}

func (h *harness) serve(loc domain.LocationRecord, obs ...domain.Observation) {
	a := h.adapters[loc.Source]
	a.data[loc.ID] = append(a.data[loc.ID], obs...)
}

func (h *harness) fail(loc domain.LocationRecord, err error) {
	h.adapters[loc.Source].errs[loc.ID] = err
}

// seed stores history as the persisted baseline with its statistics.
func (h *harness) seed(t *testing.T, obs ...domain.Observation) {
	t.Helper()
	b := domain.NewBaseline(baselineWindow)
	b.Merge(obs)
	stats := make(domain.StatisticsTable)
	for _, id := range b.Locations() {
		stats.Replace(id, domain.ComputeDailyStatistics(id, b.Observations(id)))
	}
	require.NoError(t, h.store.SaveState(context.Background(), b, stats))
}

func (h *harness) pipeline(converter *domain.ElevationConverter, publisher pipeline.ReportPublisher) *pipeline.Pipeline {
	adapters := make([]domain.SourceAdapter, 0, len(h.adapters))
	for _, a := range h.adapters {
		adapters = append(adapters, a)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return pipeline.New(h.store, source.NewRegistry(adapters...), converter, publisher, h.opts, logger, h.metrics)
}

type fakePublisher struct {
	rows []domain.OutputRow
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, rows []domain.OutputRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

var errUpstreamDown = errors.Join(domain.ErrSourceUnavailable, errors.New("503 from upstream"))

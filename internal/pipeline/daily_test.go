package pipeline_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/table"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
	"github.com/couchcryptid/reservoir-data-etl/internal/pipeline"
)

func TestRunDaily_OneRowPerRosterLocation(t *testing.T) {
	h := newHarness(t)
	covered := location("A", domain.SourceRISE, domain.DataStorage)
	short := location("B", domain.SourceCDEC, domain.DataStorage)
	unknown := location("C", domain.SourceUnknown, domain.DataStorage)
	down := location("D", domain.SourceUSGS, domain.DataStorage)
	roster := []domain.LocationRecord{covered, short, unknown, down}

	h.seed(t, append(
		januaryHistory("A", 1991, 2020, 2000, domain.UnitAcreFeet),
		januaryHistory("B", 2006, 2020, 800, domain.UnitAcreFeet)...)...)
	h.serve(covered,
		observation("A", domain.Date(2025, time.January, 13), 900, domain.UnitAcreFeet),
		observation("A", domain.Date(2025, time.January, 14), 1000, domain.UnitAcreFeet))
	h.serve(short, observation("B", queryDate, 500, domain.UnitAcreFeet))
	h.fail(down, errUpstreamDown)

	p := h.pipeline(nil, nil)
	res, err := p.RunDaily(context.Background(), roster, queryDate)
	require.NoError(t, err)

	rows := res.Report.Rows
	require.Len(t, rows, 4)
	for i, loc := range roster {
		assert.Equal(t, loc.ID, rows[i].SiteID, "roster order")
		assert.True(t, rows[i].DateQueried.Equal(queryDate))
	}

	a := rows[0]
	require.NotNil(t, a.Value)
	assert.InDelta(t, 1000, *a.Value, 0)
	require.NotNil(t, a.DataDate)
	assert.Equal(t, "2025-01-14", domain.DateKey(*a.DataDate), "data date differs from query date")
	require.NotNil(t, a.P50)
	assert.InDelta(t, 2000, *a.P50, 0)
	require.NotNil(t, a.ValueToMedian)
	assert.InDelta(t, 0.5, *a.ValueToMedian, 1e-12)
	require.NotNil(t, a.FractionFull)
	assert.InDelta(t, 0.25, *a.FractionFull, 1e-12)
	assert.Equal(t, "WY1991-WY2020", a.StatsPeriod)
	assert.Equal(t, "fake://A", a.DataURL)

	// 15 water years: current value, no historical fields.
	b := rows[1]
	require.NotNil(t, b.Value)
	assert.InDelta(t, 500, *b.Value, 0)
	for _, f := range []*float64{b.Max, b.P90, b.P75, b.P50, b.P25, b.P10, b.Min, b.Mean, b.ValueToMedian, b.ValueToMean} {
		assert.Nil(t, f)
	}
	assert.Empty(t, b.StatsPeriod)
	assert.NotNil(t, b.FractionFull)

	assert.Nil(t, rows[2].Value)
	assert.Equal(t, domain.SourceUnknown, rows[2].Source)
	assert.Nil(t, rows[3].Value)

	s := res.Summary
	assert.Equal(t, 4, s.Locations)
	assert.Equal(t, 2, s.WithCurrent)
	assert.Equal(t, 2, s.WithoutCurrent)
	assert.Equal(t, 1, s.WithStatistics)
	assert.Equal(t, 3, s.WithoutStatistics)
	assert.Equal(t, []string{"C", "D"}, s.Failed)
	assert.InDelta(t, 0.5, s.FailureRate, 1e-12)
	assert.True(t, s.ThresholdExceeded)
	assert.InDelta(t, 0.5, testutil.ToFloat64(h.metrics.FailureRate), 1e-12)
	assert.InDelta(t, 2, testutil.ToFloat64(h.metrics.LocationsProcessed.WithLabelValues("failed")), 0)

	assert.Equal(t, domain.RunDegraded, res.Run.Status)
	assert.Empty(t, res.BackfillPath, "no new history, no backfill table")

	written, err := table.LoadReport(res.ReportPath)
	require.NoError(t, err)
	assert.Len(t, written, 4)
	assert.True(t, table.Validate(written, roster).Passed())

	logged, err := h.store.LoadDaily(context.Background(), domain.Lookback(queryDate, 7))
	require.NoError(t, err)
	assert.Len(t, logged, 2)

	runs, err := h.store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunDaily, runs[0].Kind)
	assert.Equal(t, domain.RunDegraded, runs[0].Status)
	assert.Equal(t, 2, runs[0].WithCurrent)
}

func TestRunDaily_HealthyRunAndReadiness(t *testing.T) {
	h := newHarness(t)
	loc := location("A", domain.SourceUSACE, domain.DataStorage)
	h.seed(t, januaryHistory("A", 1991, 2020, 2000, domain.UnitAcreFeet)...)
	h.serve(loc, observation("A", queryDate, 1500, domain.UnitAcreFeet))

	pub := &fakePublisher{}
	p := h.pipeline(nil, pub)
	require.Error(t, p.CheckReadiness(context.Background()))

	res, err := p.RunDaily(context.Background(), []domain.LocationRecord{loc}, queryDate)
	require.NoError(t, err)
	assert.Equal(t, domain.RunSucceeded, res.Run.Status)
	assert.False(t, res.Summary.ThresholdExceeded)
	assert.Len(t, pub.rows, 1)
	require.NoError(t, p.CheckReadiness(context.Background()))

	latest, ok, err := p.LatestReport(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.DateQueried.Equal(queryDate))

	// A fresh process finds the recorded run.
	require.NoError(t, h.pipeline(nil, nil).CheckReadiness(context.Background()))
}

func TestRunDaily_PublishFailureDegrades(t *testing.T) {
	h := newHarness(t)
	loc := location("A", domain.SourceUSACE, domain.DataStorage)
	h.seed(t, januaryHistory("A", 1991, 2020, 2000, domain.UnitAcreFeet)...)
	h.serve(loc, observation("A", queryDate, 1500, domain.UnitAcreFeet))

	p := h.pipeline(nil, &fakePublisher{err: assert.AnError})
	res, err := p.RunDaily(context.Background(), []domain.LocationRecord{loc}, queryDate)
	require.NoError(t, err)
	assert.Equal(t, domain.RunDegraded, res.Run.Status)
	_, statErr := os.Stat(res.ReportPath)
	assert.NoError(t, statErr, "report is still written")
}

func TestRunDaily_BackfillsNewLocation(t *testing.T) {
	h := newHarness(t)
	loc := location("N", domain.SourceRISE, domain.DataStorage)
	h.serve(loc, januaryHistory("N", 1991, 2020, 3000, domain.UnitAcreFeet)...)
	h.serve(loc, observation("N", queryDate, 1500, domain.UnitAcreFeet))
	roster := []domain.LocationRecord{loc}

	p := h.pipeline(nil, nil)
	res, err := p.RunDaily(context.Background(), roster, queryDate)
	require.NoError(t, err)

	assert.Equal(t, []string{"N"}, res.Backfill.Updated)
	assert.Equal(t, 30*31, res.Backfill.Added)
	require.Len(t, res.Backfill.Rows, 30*31)
	for _, r := range res.Backfill.Rows[:3] {
		assert.Equal(t, domain.BackfillComment, r.Comment)
		assert.NotNil(t, r.P50)
	}
	require.NotEmpty(t, res.BackfillPath)
	backfillRows, err := table.LoadReport(res.BackfillPath)
	require.NoError(t, err)
	assert.Len(t, backfillRows, 30*31)

	row := res.Report.Rows[0]
	require.NotNil(t, row.ValueToMedian)
	assert.InDelta(t, 0.5, *row.ValueToMedian, 1e-12)

	stats, err := h.store.LoadStatistics(context.Background())
	require.NoError(t, err)
	assert.Len(t, stats["N"], 31)

	// Second run: nothing new to backfill, baseline untouched.
	res2, err := p.RunDaily(context.Background(), roster, queryDate)
	require.NoError(t, err)
	assert.False(t, res2.Backfill.Changed())
	b, err := h.store.LoadBaseline(context.Background(), baselineWindow)
	require.NoError(t, err)
	assert.Equal(t, 30*31, b.Len())
}

func TestRunDaily_ElevationLocationWithoutCurve(t *testing.T) {
	h := newHarness(t)
	loc := location("E", domain.SourceUSGS, domain.DataElevation)
	h.serve(loc, observation("E", queryDate, 150, domain.UnitFeet))

	p := h.pipeline(nil, nil)
	res, err := p.RunDaily(context.Background(), []domain.LocationRecord{loc}, queryDate)
	require.NoError(t, err)

	assert.Nil(t, res.Report.Rows[0].Value, "values dropped, never guessed")
	assert.Equal(t, []string{"E"}, res.Summary.Failed)
	assert.Equal(t, []string{"E"}, res.Backfill.Skipped)
	assert.Zero(t, h.adapters[domain.SourceUSGS].callCount(), "no upstream call without a curve")
}

func TestRunDaily_ConvertsElevation(t *testing.T) {
	h := newHarness(t)
	loc := location("E", domain.SourceUSGS, domain.DataElevation)
	h.seed(t, januaryHistory("E", 1991, 2020, 2000, domain.UnitAcreFeet)...)
	h.serve(loc, observation("E", queryDate, 200, domain.UnitFeet))

	converter, err := domain.NewElevationConverter([]domain.ElevationCurve{{
		LocationID: "E",
		Points:     []domain.CurvePoint{{Elevation: 100, Storage: 1000}, {Elevation: 200, Storage: 3000}},
	}})
	require.NoError(t, err)

	res, err := h.pipeline(converter, nil).RunDaily(context.Background(), []domain.LocationRecord{loc}, queryDate)
	require.NoError(t, err)

	row := res.Report.Rows[0]
	require.NotNil(t, row.Value)
	assert.InDelta(t, 3000, *row.Value, 0, "curve maximum converts exactly")
	assert.Equal(t, domain.UnitAcreFeet, row.Unit)
}

func TestRunDaily_Cancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.pipeline(nil, nil).RunDaily(ctx, []domain.LocationRecord{location("A", domain.SourceRISE, domain.DataStorage)}, queryDate)
	require.ErrorIs(t, err, context.Canceled)

	runs, err := h.store.ListRuns(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunFailed, runs[0].Status)
}

func TestLatestReport_FallsBackToNewestFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, day time.Time) {
		rows := []domain.OutputRow{{SiteID: name, DateQueried: day}}
		require.NoError(t, table.WriteReportFile(dir+"/"+name, rows))
	}
	write("reservoirs_2025-01-10.csv", domain.Date(2025, time.January, 10))
	write("reservoirs_2025-01-12.csv", domain.Date(2025, time.January, 12))
	write("reservoirs_backfill_2025-01-13.csv", domain.Date(2025, time.January, 13))
	write("reservoirs_archive_2025-01-14.csv", domain.Date(2025, time.January, 14))

	r, ok, err := pipeline.NewLatestReport(dir).LatestReport(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2025-01-12", domain.DateKey(r.DateQueried))
	assert.Equal(t, "reservoirs_2025-01-12.csv", r.Rows[0].SiteID)

	_, ok, err = pipeline.NewLatestReport(dir + "/missing").LatestReport(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

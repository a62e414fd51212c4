package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/table"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// Summary counts the outcome of a daily run.
type Summary struct {
	Locations         int
	WithCurrent       int
	WithoutCurrent    int
	WithStatistics    int
	WithoutStatistics int
	// Failed counts locations whose fetch returned an error; they are also
	// counted in WithoutCurrent.
	Failed []string

	// FailureRate is WithoutCurrent / Locations.
	FailureRate       float64
	ThresholdExceeded bool
}

// DailyResult is the output of one daily run.
type DailyResult struct {
	Report       domain.Report
	ReportPath   string
	Backfill     BackfillResult
	BackfillPath string
	Summary      Summary
	Run          domain.RunRecord
}

// RunDaily produces the report for target: it backfills any new roster
// locations, resolves each location's current value within the lookback
// window, joins statistics for covered locations, and writes the report.
// Per-location failures never abort the run; store and file errors do.
func (p *Pipeline) RunDaily(ctx context.Context, roster []domain.LocationRecord, target time.Time) (res DailyResult, err error) {
	target = domain.CivilDate(target)
	rec := domain.NewRunRecord(domain.RunDaily, target)
	finish := p.beginRun(domain.RunDaily, &rec)
	status := domain.RunSucceeded
	defer func() {
		finish(ctx, status, err)
		res.Run = rec
		if err == nil {
			p.ready.Store(true)
		}
	}()

	b, stats, err := p.loadState(ctx)
	if err != nil {
		return res, err
	}

	res.Backfill, err = p.backfill.Run(ctx, roster, b, stats)
	if err != nil {
		return res, err
	}
	rec.Backfilled = len(res.Backfill.Updated)

	rows, current, summary, err := p.resolveCurrent(ctx, roster, b, stats, target)
	if err != nil {
		return res, err
	}
	res.Summary = summary
	res.Report = domain.Report{DateQueried: target, Rows: rows}
	rec.Locations = summary.Locations
	rec.WithCurrent = summary.WithCurrent
	rec.WithStatistics = summary.WithStatistics

	if res.Backfill.Changed() {
		if err = p.store.SaveState(ctx, b, stats); err != nil {
			return res, err
		}
	}
	logged, err := p.store.AppendDaily(ctx, current)
	if err != nil {
		return res, err
	}

	res.ReportPath = filepath.Join(p.opts.OutputDir, table.ReportFileName(ReportPrefix, target))
	if err = table.WriteReportFile(res.ReportPath, rows); err != nil {
		return res, err
	}
	if len(res.Backfill.Rows) > 0 {
		res.BackfillPath = filepath.Join(p.opts.OutputDir, table.ReportFileName(BackfillPrefix, target))
		if err = table.WriteReportFile(res.BackfillPath, res.Backfill.Rows); err != nil {
			return res, err
		}
	}
	p.latest.Set(res.Report)

	if p.publisher != nil {
		if pubErr := p.publisher.Publish(ctx, rows); pubErr != nil {
			p.logger.Error("publish report failed", "error", pubErr)
			status = domain.RunDegraded
		}
	}

	p.metrics.FailureRate.Set(summary.FailureRate)
	if summary.ThresholdExceeded {
		status = domain.RunDegraded
		p.logger.Error("failure rate above threshold",
			"failure_rate", summary.FailureRate,
			"threshold", p.opts.FailureRateThreshold,
			"without_current", summary.WithoutCurrent,
			"locations", summary.Locations)
	}
	p.logger.Info("daily report written",
		"path", res.ReportPath,
		"locations", summary.Locations,
		"with_current", summary.WithCurrent,
		"without_current", summary.WithoutCurrent,
		"with_statistics", summary.WithStatistics,
		"without_statistics", summary.WithoutStatistics,
		"daily_log_added", logged,
		"backfilled", len(res.Backfill.Updated))
	return res, nil
}

// resolveCurrent builds one row per roster location, in roster order, and
// returns the current observations for the daily log.
func (p *Pipeline) resolveCurrent(ctx context.Context, roster []domain.LocationRecord, b *domain.Baseline, stats domain.StatisticsTable, target time.Time) ([]domain.OutputRow, []domain.Observation, Summary, error) {
	var (
		rows     = make([]domain.OutputRow, 0, len(roster))
		current  []domain.Observation
		summary  = Summary{Locations: len(roster)}
		coverage = p.coverage()
		assemble = p.assembler()
		window   = domain.Lookback(target, p.opts.LookbackDays)
	)

	for _, loc := range roster {
		if err := ctx.Err(); err != nil {
			return nil, nil, summary, err
		}

		var cur *domain.Observation
		series, err := p.fetch.fetch(ctx, loc, window)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, nil, summary, ctx.Err()
		case err != nil:
			logFailure(p.logger, "current value unavailable", loc, err)
			summary.Failed = append(summary.Failed, loc.ID)
			p.metrics.LocationsProcessed.WithLabelValues("failed").Inc()
		default:
			if o, ok := domain.ResolveCurrent(series.Observations, target, p.opts.LookbackDays); ok {
				cur = &o
				current = append(current, o)
				p.metrics.LocationsProcessed.WithLabelValues("reported").Inc()
			} else {
				p.logger.Warn("no value within lookback window", "location_id", loc.ID, "source", loc.Source,
					"lookback_days", p.opts.LookbackDays)
				p.metrics.LocationsProcessed.WithLabelValues("no_current").Inc()
			}
		}

		var stat *domain.DailyStatistic
		if coverage.Admit(b, loc.ID) {
			if st, ok := stats.Lookup(loc.ID, domain.StatisticDate(cur, target)); ok {
				stat = &st
			}
		} else if b.Has(loc.ID) {
			p.logger.Info("statistics withheld: insufficient coverage", "location_id", loc.ID,
				"water_years", domain.CountWaterYears(b.Observations(loc.ID)), "min_water_years", p.opts.MinWaterYears)
		}

		row := assemble.Assemble(loc, cur, stat, target)
		rows = append(rows, row)

		if row.Value != nil {
			summary.WithCurrent++
		} else {
			summary.WithoutCurrent++
		}
		if row.HasStatistics() {
			summary.WithStatistics++
		} else {
			summary.WithoutStatistics++
		}
	}

	if summary.Locations > 0 {
		summary.FailureRate = float64(summary.WithoutCurrent) / float64(summary.Locations)
	}
	summary.ThresholdExceeded = summary.FailureRate > p.opts.FailureRateThreshold
	return rows, current, summary, nil
}

package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/table"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

// ArchiveResult is a reconstructed past report.
type ArchiveResult struct {
	Report domain.Report
	Path   string
}

// Archive rebuilds the report for a past date from stored data only: the
// baseline unioned with the daily log, each location resolved to its latest
// value within the lookback window ending at target. No upstream is called.
func (p *Pipeline) Archive(ctx context.Context, roster []domain.LocationRecord, target time.Time) (res ArchiveResult, err error) {
	target = domain.CivilDate(target)
	rec := domain.NewRunRecord(domain.RunArchive, target)
	finish := p.beginRun(domain.RunArchive, &rec)
	defer func() { finish(ctx, domain.RunSucceeded, err) }()

	b, stats, err := p.loadState(ctx)
	if err != nil {
		return res, err
	}
	window := domain.Lookback(target, p.opts.LookbackDays)
	logged, err := p.store.LoadDaily(ctx, window)
	if err != nil {
		return res, err
	}

	// Baseline first so it wins over a logged value for the same day.
	merged := make([]domain.Observation, 0, len(logged))
	for _, id := range b.Locations() {
		for _, o := range b.Observations(id) {
			if window.Contains(o.Date) {
				merged = append(merged, o)
			}
		}
	}
	merged = domain.DedupeObservations(append(merged, logged...))
	latest := domain.ResolveLatestAll(merged, target, p.opts.LookbackDays)

	coverage := p.coverage()
	assemble := p.assembler()
	rows := make([]domain.OutputRow, 0, len(roster))
	for _, loc := range roster {
		var cur *domain.Observation
		if o, ok := latest[loc.ID]; ok {
			cur = &o
			rec.WithCurrent++
		}
		var stat *domain.DailyStatistic
		if coverage.Admit(b, loc.ID) {
			if st, ok := stats.Lookup(loc.ID, domain.StatisticDate(cur, target)); ok {
				stat = &st
				rec.WithStatistics++
			}
		}
		rows = append(rows, assemble.Assemble(loc, cur, stat, target))
	}
	rec.Locations = len(roster)

	res.Report = domain.Report{DateQueried: target, Rows: rows}
	res.Path = filepath.Join(p.opts.OutputDir, table.ReportFileName(ArchivePrefix, target))
	if err = table.WriteReportFile(res.Path, rows); err != nil {
		return res, err
	}
	p.logger.Info("archive report written", "path", res.Path, "locations", rec.Locations,
		"with_current", rec.WithCurrent, "from_daily_log", len(logged))
	return res, nil
}

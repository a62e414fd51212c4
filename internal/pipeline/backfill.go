package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/partial"
	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/table"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
	"github.com/couchcryptid/reservoir-data-etl/internal/observability"
)

// BackfillCoordinator populates the baseline for roster locations it has
// never seen. Fetching and applying are separate steps so fetches can run
// in independent worker processes whose partials one coordinator applies.
type BackfillCoordinator struct {
	fetch   *fetcher
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewBackfillCoordinator creates a coordinator over the given fetcher.
func NewBackfillCoordinator(f *fetcher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *BackfillCoordinator {
	return &BackfillCoordinator{
		fetch:   f,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// BackfillResult summarizes one application of fetched history.
type BackfillResult struct {
	Fetched []string
	Failed  []string
	Skipped []string

	// Added is the number of observations new to the baseline.
	Added int
	// Updated lists locations whose baseline slice grew.
	Updated []string
	// Rows is the backfill record set, one row per historical observation of
	// each updated location.
	Rows []domain.OutputRow
}

// Changed reports whether the baseline was modified.
func (r BackfillResult) Changed() bool {
	return r.Added > 0
}

// NewLocations returns roster locations absent from the baseline, in roster
// order.
func NewLocations(roster []domain.LocationRecord, b *domain.Baseline) []domain.LocationRecord {
	var out []domain.LocationRecord
	for _, loc := range roster {
		if !b.Has(loc.ID) {
			out = append(out, loc)
		}
	}
	return out
}

// FetchPartial fetches the full baseline window for each location. It never
// writes to the baseline. Only context cancellation is returned as an error;
// per-location failures are recorded in the partial.
func (c *BackfillCoordinator) FetchPartial(ctx context.Context, locs []domain.LocationRecord) (partial.Partial, error) {
	p := partial.Partial{
		CreatedAt: c.now(),
		Window:    c.opts.Window,
	}
	for _, loc := range locs {
		if err := ctx.Err(); err != nil {
			return p, err
		}
		if loc.Source == domain.SourceUnknown {
			c.logger.Info("backfill skipped: no adapter for source", "location_id", loc.ID, "source", loc.Source)
			p.Skipped = append(p.Skipped, loc.ID)
			continue
		}

		series, err := c.fetch.fetch(ctx, loc, c.opts.Window)
		if err != nil {
			if ctx.Err() != nil {
				return p, ctx.Err()
			}
			logFailure(c.logger, "backfill fetch failed", loc, err)
			if errors.Is(err, domain.ErrConfiguration) {
				p.Skipped = append(p.Skipped, loc.ID)
				continue
			}
			c.metrics.BackfillLocations.WithLabelValues("failed").Inc()
			p.Failed = append(p.Failed, loc.ID)
			continue
		}
		if len(series.Observations) == 0 {
			c.logger.Warn("backfill returned no observations", "location_id", loc.ID, "source", loc.Source)
		}
		c.logger.Info("backfill fetched", "location_id", loc.ID, "source", loc.Source,
			"observations", len(series.Observations), "requests", len(series.Requests))
		c.metrics.BackfillLocations.WithLabelValues("fetched").Inc()
		p.Fetched = append(p.Fetched, loc.ID)
		p.Observations = append(p.Observations, series.Observations...)
	}
	return p, nil
}

// ApplyPartials merges fetched history into b (first seen wins), recomputes
// statistics for every location that gained observations, and builds the
// backfill record set. Applying the same partial twice changes nothing.
func (c *BackfillCoordinator) ApplyPartials(b *domain.Baseline, stats domain.StatisticsTable, roster []domain.LocationRecord, parts []partial.Partial) BackfillResult {
	var res BackfillResult
	grew := make(map[string]bool)
	for _, p := range parts {
		res.Fetched = append(res.Fetched, p.Fetched...)
		res.Failed = append(res.Failed, p.Failed...)
		res.Skipped = append(res.Skipped, p.Skipped...)

		for _, o := range p.Observations {
			if b.Merge([]domain.Observation{o}) > 0 {
				res.Added++
				grew[o.LocationID] = true
			}
		}
	}
	c.metrics.BackfillObservations.Add(float64(res.Added))

	index := locationIndex(roster)
	coverage := domain.CoverageFilter{MinWaterYears: c.opts.MinWaterYears}
	assembler := domain.Assembler{StatsPeriod: domain.StatsPeriodLabel(c.opts.Window)}
	for _, id := range b.Locations() {
		if !grew[id] {
			continue
		}
		res.Updated = append(res.Updated, id)
		history := b.Observations(id)
		stats.Replace(id, domain.ComputeDailyStatistics(id, history))

		loc, ok := index[id]
		if !ok {
			loc = domain.LocationRecord{ID: id, Source: domain.SourceUnknown, DataType: domain.DataStorage}
		}
		admitted := coverage.AdmitObservations(history)
		for i := range history {
			o := history[i]
			var stat *domain.DailyStatistic
			if admitted {
				if st, ok := stats.Lookup(id, o.Date); ok {
					stat = &st
				}
			}
			row := assembler.Assemble(loc, &o, stat, o.Date)
			row.Comment = domain.BackfillComment
			res.Rows = append(res.Rows, row)
		}
		c.logger.Info("baseline backfilled", "location_id", id, "observations", len(history),
			"water_years", domain.CountWaterYears(history), "statistics_admitted", admitted)
	}
	return res
}

// Run fetches and applies history for every new roster location.
func (c *BackfillCoordinator) Run(ctx context.Context, roster []domain.LocationRecord, b *domain.Baseline, stats domain.StatisticsTable) (BackfillResult, error) {
	locs := NewLocations(roster, b)
	if len(locs) == 0 {
		return BackfillResult{}, nil
	}
	c.logger.Info("new locations detected", "count", len(locs))
	p, err := c.FetchPartial(ctx, locs)
	if err != nil {
		return BackfillResult{}, err
	}
	return c.ApplyPartials(b, stats, roster, []partial.Partial{p}), nil
}

// RunBackfill backfills new roster locations (optionally restricted to ids),
// persists the result, and writes the backfill table for queried.
func (p *Pipeline) RunBackfill(ctx context.Context, roster []domain.LocationRecord, ids []string, queried time.Time) (res BackfillResult, err error) {
	rec := domain.NewRunRecord(domain.RunBackfill, queried)
	finish := p.beginRun(domain.RunBackfill, &rec)
	defer func() { finish(ctx, domain.RunSucceeded, err) }()

	b, stats, err := p.loadState(ctx)
	if err != nil {
		return res, err
	}
	selected := selectLocations(roster, ids)
	rec.Locations = len(selected)

	res, err = p.backfill.Run(ctx, selected, b, stats)
	if err != nil {
		return res, err
	}
	rec.Backfilled = len(res.Updated)
	return res, p.persistBackfill(ctx, b, stats, res, queried)
}

// WritePartial fetches history for new roster locations (optionally
// restricted to ids) into a partial file without touching the store.
func (p *Pipeline) WritePartial(ctx context.Context, roster []domain.LocationRecord, ids []string, path string) (partial.Partial, error) {
	b, err := p.store.LoadBaseline(ctx, p.opts.Window)
	if err != nil {
		return partial.Partial{}, err
	}
	part, err := p.backfill.FetchPartial(ctx, NewLocations(selectLocations(roster, ids), b))
	if err != nil {
		return part, err
	}
	if err := partial.WriteFile(path, part); err != nil {
		return part, err
	}
	p.logger.Info("partial written", "path", path, "fetched", len(part.Fetched),
		"failed", len(part.Failed), "observations", len(part.Observations))
	return part, nil
}

// MergePartials applies partial files in order and persists the result.
func (p *Pipeline) MergePartials(ctx context.Context, roster []domain.LocationRecord, paths []string, queried time.Time) (res BackfillResult, err error) {
	rec := domain.NewRunRecord(domain.RunMerge, queried)
	finish := p.beginRun(domain.RunMerge, &rec)
	defer func() { finish(ctx, domain.RunSucceeded, err) }()

	parts, err := partial.ReadFiles(paths...)
	if err != nil {
		return res, err
	}
	for i, part := range parts {
		if !part.Window.Start.Equal(p.opts.Window.Start) || !part.Window.End.Equal(p.opts.Window.End) {
			return res, fmt.Errorf("%w: partial %s covers %s, baseline is %s",
				domain.ErrConfiguration, paths[i], part.Window, p.opts.Window)
		}
	}

	b, stats, err := p.loadState(ctx)
	if err != nil {
		return res, err
	}
	res = p.backfill.ApplyPartials(b, stats, roster, parts)
	rec.Locations = len(res.Fetched)
	rec.Backfilled = len(res.Updated)
	return res, p.persistBackfill(ctx, b, stats, res, queried)
}

// persistBackfill rewrites state and writes the backfill table, both only
// when the baseline changed.
func (p *Pipeline) persistBackfill(ctx context.Context, b *domain.Baseline, stats domain.StatisticsTable, res BackfillResult, queried time.Time) error {
	if !res.Changed() {
		p.logger.Info("backfill made no changes")
		return nil
	}
	if err := p.store.SaveState(ctx, b, stats); err != nil {
		return err
	}
	path := filepath.Join(p.opts.OutputDir, table.ReportFileName(BackfillPrefix, queried))
	if err := table.WriteReportFile(path, res.Rows); err != nil {
		return err
	}
	p.logger.Info("backfill table written", "path", path, "rows", len(res.Rows))
	return nil
}

// selectLocations filters roster to ids, keeping roster order. No ids means
// the whole roster.
func selectLocations(roster []domain.LocationRecord, ids []string) []domain.LocationRecord {
	if len(ids) == 0 {
		return roster
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.LocationRecord
	for _, loc := range roster {
		if want[loc.ID] {
			out = append(out, loc)
		}
	}
	return out
}

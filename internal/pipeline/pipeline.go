// Package pipeline orchestrates the daily report run, historical backfill,
// archival reconstruction, and manual ingest over a persisted baseline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/reservoir-data-etl/internal/config"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
	"github.com/couchcryptid/reservoir-data-etl/internal/observability"
)

// Report file prefixes inside Options.OutputDir.
const (
	ReportPrefix   = "reservoirs"
	BackfillPrefix = "reservoirs_backfill"
	ArchivePrefix  = "reservoirs_archive"
)

// Store is the persisted baseline, statistics, daily log and run history.
type Store interface {
	LoadBaseline(ctx context.Context, window domain.DateRange) (*domain.Baseline, error)
	LoadStatistics(ctx context.Context) (domain.StatisticsTable, error)
	SaveState(ctx context.Context, b *domain.Baseline, stats domain.StatisticsTable) error
	AppendDaily(ctx context.Context, obs []domain.Observation) (int, error)
	LoadDaily(ctx context.Context, r domain.DateRange) ([]domain.Observation, error)
	RecordRun(ctx context.Context, r domain.RunRecord) error
	LastSuccessfulRun(ctx context.Context, kind domain.RunKind) (domain.RunRecord, bool, error)
	CheckReadiness(ctx context.Context) error
}

// SourceResolver returns the adapter serving a location.
type SourceResolver interface {
	For(loc domain.LocationRecord) (domain.SourceAdapter, error)
}

// ReportPublisher receives each finished daily report. Optional.
type ReportPublisher interface {
	Publish(ctx context.Context, rows []domain.OutputRow) error
}

// Options are the run parameters taken from configuration.
type Options struct {
	Window               domain.DateRange
	LookbackDays         int
	MinWaterYears        int
	FailureRateThreshold float64
	OutputDir            string
}

// OptionsFromConfig copies the run parameters out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Window:               cfg.BaselineWindow(),
		LookbackDays:         cfg.LookbackDays,
		MinWaterYears:        cfg.MinWaterYears,
		FailureRateThreshold: cfg.FailureRateThreshold,
		OutputDir:            cfg.OutputDir,
	}
}

// Pipeline runs every store-backed operation. Runs against one Pipeline must
// not overlap; the scheduler and CLI invoke one at a time.
type Pipeline struct {
	store     Store
	fetch     *fetcher
	publisher ReportPublisher
	opts      Options
	logger    *slog.Logger
	metrics   *observability.Metrics

	backfill *BackfillCoordinator
	latest   *LatestReport
	ready    atomic.Bool
}

// New creates a Pipeline. converter may be nil when no location reports
// elevation; publisher may be nil to disable publishing.
func New(store Store, sources SourceResolver, converter *domain.ElevationConverter, publisher ReportPublisher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	f := &fetcher{sources: sources, converter: converter, logger: logger}
	return &Pipeline{
		store:     store,
		fetch:     f,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		metrics:   metrics,
		backfill:  NewBackfillCoordinator(f, opts, logger, metrics),
		latest:    NewLatestReport(opts.OutputDir),
	}
}

// CheckReadiness returns nil once a daily run has succeeded, either in this
// process or in an earlier one recorded in the store.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	if err := p.store.CheckReadiness(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if p.ready.Load() {
		return nil
	}
	_, ok, err := p.store.LastSuccessfulRun(ctx, domain.RunDaily)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("no daily run has completed yet")
	}
	p.ready.Store(true)
	return nil
}

// LatestReport returns the most recent daily report.
func (p *Pipeline) LatestReport(ctx context.Context) (domain.Report, bool, error) {
	return p.latest.LatestReport(ctx)
}

// Backfill exposes the coordinator for partial-file workers.
func (p *Pipeline) Backfill() *BackfillCoordinator {
	return p.backfill
}

func (p *Pipeline) coverage() domain.CoverageFilter {
	return domain.CoverageFilter{MinWaterYears: p.opts.MinWaterYears}
}

func (p *Pipeline) assembler() domain.Assembler {
	return domain.Assembler{StatsPeriod: domain.StatsPeriodLabel(p.opts.Window)}
}

// loadState reads the baseline and statistics at run start.
func (p *Pipeline) loadState(ctx context.Context) (*domain.Baseline, domain.StatisticsTable, error) {
	b, err := p.store.LoadBaseline(ctx, p.opts.Window)
	if err != nil {
		return nil, nil, err
	}
	stats, err := p.store.LoadStatistics(ctx)
	if err != nil {
		return nil, nil, err
	}
	return b, stats, nil
}

// beginRun marks a run active. The returned func records the outcome in the
// store and metrics; a store error there is logged, not returned, so it never
// masks the run's own error.
func (p *Pipeline) beginRun(kind domain.RunKind, rec *domain.RunRecord) func(ctx context.Context, status domain.RunStatus, err error) {
	p.metrics.RunActive.Set(1)
	p.logger.Info("run started", "kind", kind, "run_id", rec.ID, "target_date", domain.DateKey(rec.TargetDate))

	return func(ctx context.Context, status domain.RunStatus, err error) {
		p.metrics.RunActive.Set(0)
		rec.Finish(status, err)
		p.metrics.Runs.WithLabelValues(string(kind), string(rec.Status)).Inc()
		p.metrics.RunDuration.WithLabelValues(string(kind)).Observe(rec.Duration().Seconds())

		// Record even when the run's context was cancelled.
		if recErr := p.store.RecordRun(context.WithoutCancel(ctx), *rec); recErr != nil {
			p.logger.Error("record run failed", "run_id", rec.ID, "error", recErr)
		}

		attrs := []any{"kind", kind, "run_id", rec.ID, "status", rec.Status, "duration", rec.Duration()}
		if err != nil {
			p.logger.Error("run failed", append(attrs, "error", err)...)
			return
		}
		p.logger.Info("run finished", attrs...)
	}
}

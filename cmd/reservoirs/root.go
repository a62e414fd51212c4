package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/reservoir-data-etl/internal/config"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
	"github.com/couchcryptid/reservoir-data-etl/internal/observability"
)

var (
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "reservoirs",
	Short: "Daily reservoir conditions against a 30-year baseline",
	Long: `Reservoirs fetches current storage for every location in the roster from
RISE, USACE, USGS and CDEC, compares it with day-of-year statistics over the
historical baseline, and writes one report row per location.

COMMANDS:

  run        produce today's report (backfills new locations first)
  backfill   fetch full history for roster locations missing from the baseline
  merge      apply partial files written by parallel backfill workers
  archive    rebuild a past report from stored data
  ingest     replace baseline slices from a manual CSV
  validate   check a written report against the roster
  serve      run daily on a schedule and serve the HTTP API

All settings come from the environment (DB_PATH, ROSTER_PATH, CURVES_PATH,
OUTPUT_DIR, KAFKA_BROKERS, ...).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger = observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(logger)
		metrics = observability.NewMetrics()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd, backfillCmd, mergeCmd, archiveCmd, ingestCmd, validateCmd, serveCmd)
}

// parseDateFlag parses a YYYY-MM-DD flag value; empty means today.
func parseDateFlag(value string) (time.Time, error) {
	if value == "" {
		return domain.Today(), nil
	}
	d, err := domain.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--date: %w", err)
	}
	return d, nil
}

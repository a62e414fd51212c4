package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/reservoir-data-etl/internal/pipeline"
)

var errThresholdExceeded = errors.New("failure rate above threshold")

var (
	runDate            string
	runFailOnThreshold bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Produce the daily report",
	Long: `Produce the report for one query date.

New roster locations are backfilled first. Each location's current value is
the most recent observation within LOOKBACK_DAYS of the query date. When the
share of locations without a current value exceeds FAILURE_RATE_THRESHOLD a
warning is printed; with --fail-on-threshold the command also exits non-zero.

EXAMPLES:

  reservoirs run
  reservoirs run --date 2025-01-15 --fail-on-threshold`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseDateFlag(runDate)
		if err != nil {
			return err
		}
		roster, err := loadRoster()
		if err != nil {
			return err
		}
		svc, err := openService(true)
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.pipeline.RunDaily(cmd.Context(), roster, target)
		if err != nil {
			return fmt.Errorf("daily run: %w", err)
		}
		printDailySummary(res)
		if res.Summary.ThresholdExceeded && runFailOnThreshold {
			return errThresholdExceeded
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "query date YYYY-MM-DD (default today, UTC)")
	runCmd.Flags().BoolVar(&runFailOnThreshold, "fail-on-threshold", false, "exit non-zero when the failure rate exceeds the threshold")
}

func printDailySummary(res pipeline.DailyResult) {
	s := res.Summary
	color.Green("✓ Report written to %s", res.ReportPath)
	fmt.Printf("  locations        %d\n", s.Locations)
	fmt.Printf("  with current     %d\n", s.WithCurrent)
	fmt.Printf("  without current  %d\n", s.WithoutCurrent)
	fmt.Printf("  with statistics  %d\n", s.WithStatistics)
	fmt.Printf("  without stats    %d\n", s.WithoutStatistics)
	if len(res.Backfill.Updated) > 0 {
		color.Green("✓ Backfilled %d locations (%d observations) to %s",
			len(res.Backfill.Updated), res.Backfill.Added, res.BackfillPath)
	}
	if len(s.Failed) > 0 {
		faint := color.New(color.Faint)
		fmt.Println(faint.Sprintf("  failed: %v", s.Failed))
	}
	if s.ThresholdExceeded {
		color.Red("⚠ %.0f%% of locations have no current value (threshold %.0f%%)",
			s.FailureRate*100, cfg.FailureRateThreshold*100)
	}
}

package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
	"github.com/couchcryptid/reservoir-data-etl/internal/pipeline"
)

var (
	backfillLocations []string
	backfillPartial   string
	mergeDate         string
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Fetch full history for locations missing from the baseline",
	Long: `Fetch the whole baseline window for roster locations that have no
baseline observations, recompute their statistics, and write the backfill
table.

With --partial the fetched history is written to FILE instead and the store
is left untouched; run several workers with disjoint --locations, then apply
their files with 'reservoirs merge'.

EXAMPLES:

  reservoirs backfill
  reservoirs backfill --locations SHA,ORO --partial work/a.partial`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		roster, err := loadRoster()
		if err != nil {
			return err
		}
		svc, err := openService(false)
		if err != nil {
			return err
		}
		defer svc.Close()

		if backfillPartial != "" {
			part, err := svc.pipeline.WritePartial(cmd.Context(), roster, backfillLocations, backfillPartial)
			if err != nil {
				return fmt.Errorf("backfill partial: %w", err)
			}
			color.Green("✓ Partial written to %s", backfillPartial)
			fmt.Printf("  fetched %d, failed %d, skipped %d, observations %d\n",
				len(part.Fetched), len(part.Failed), len(part.Skipped), len(part.Observations))
			return nil
		}

		res, err := svc.pipeline.RunBackfill(cmd.Context(), roster, backfillLocations, domain.Today())
		if err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
		printBackfillSummary(res)
		return nil
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge FILE...",
	Short: "Apply backfill partial files to the baseline",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queried, err := parseDateFlag(mergeDate)
		if err != nil {
			return err
		}
		roster, err := loadRoster()
		if err != nil {
			return err
		}
		svc, err := openService(false)
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.pipeline.MergePartials(cmd.Context(), roster, args, queried)
		if err != nil {
			return fmt.Errorf("merge: %w", err)
		}
		printBackfillSummary(res)
		return nil
	},
}

func init() {
	backfillCmd.Flags().StringSliceVar(&backfillLocations, "locations", nil, "restrict to these location ids (comma separated)")
	backfillCmd.Flags().StringVar(&backfillPartial, "partial", "", "write fetched history to this file instead of the store")
	mergeCmd.Flags().StringVar(&mergeDate, "date", "", "date used to name the backfill table (default today)")
}

func printBackfillSummary(res pipeline.BackfillResult) {
	if !res.Changed() {
		color.Yellow("No new baseline observations")
	} else {
		color.Green("✓ Backfilled %s (%d observations, %d rows)",
			strings.Join(res.Updated, ", "), res.Added, len(res.Rows))
	}
	faint := color.New(color.Faint)
	if len(res.Failed) > 0 {
		fmt.Println(faint.Sprintf("  failed (retried next run): %s", strings.Join(res.Failed, ", ")))
	}
	if len(res.Skipped) > 0 {
		fmt.Println(faint.Sprintf("  skipped: %s", strings.Join(res.Skipped, ", ")))
	}
}

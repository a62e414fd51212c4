package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var archiveDate string

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Rebuild the report for a past date from stored data",
	Long: `Rebuild the report for --date using only the stored baseline and the log
of values resolved by earlier daily runs. No upstream API is called.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if archiveDate == "" {
			return errors.New("--date is required")
		}
		target, err := parseDateFlag(archiveDate)
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

		res, err := svc.pipeline.Archive(cmd.Context(), roster, target)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		withValue := 0
		for _, r := range res.Report.Rows {
			if r.Value != nil {
				withValue++
			}
		}
		color.Green("✓ Archive report written to %s", res.Path)
		fmt.Printf("  %d of %d locations have a value\n", withValue, len(res.Report.Rows))
		return nil
	},
}

func init() {
	archiveCmd.Flags().StringVar(&archiveDate, "date", "", "report date YYYY-MM-DD")
}

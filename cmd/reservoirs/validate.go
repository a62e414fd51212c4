package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/table"
)

var validateCmd = &cobra.Command{
	Use:   "validate REPORT",
	Short: "Check a written report against the roster",
	Long: `Check REPORT for one row per roster location, consistent statistics and
ratios, units from the normalized vocabulary, and no data date after the
query date. Exits non-zero when any problem is found.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roster, err := loadRoster()
		if err != nil {
			return err
		}
		rows, err := table.LoadReport(args[0])
		if err != nil {
			return err
		}

		v := table.Validate(rows, roster)
		if v.Passed() {
			color.Green("✓ %s: %d rows, no problems", args[0], v.Rows)
			return nil
		}
		color.Red("✗ %s: %d problems in %d rows", args[0], len(v.Problems), v.Rows)
		for _, p := range v.Problems {
			fmt.Println("  " + p)
		}
		return fmt.Errorf("report %s failed validation", args[0])
	},
}

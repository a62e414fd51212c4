package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/reservoir-data-etl/internal/adapter/table"
	"github.com/couchcryptid/reservoir-data-etl/internal/domain"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE",
	Short: "Replace baseline slices from a manual observation CSV",
	Long: `Replace the baseline of every location mentioned in FILE with the file's
rows and recompute those locations' statistics.

FILE columns: location_id, date, value, unit. A blank unit means af for
storage locations and ft for elevation locations; elevation readings are
converted through the location's curve.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roster, err := loadRoster()
		if err != nil {
			return err
		}
		dataTypes := make(map[string]domain.DataType, len(roster))
		for _, loc := range roster {
			dataTypes[loc.ID] = loc.DataType
		}
		obs, err := table.LoadObservations(args[0], dataTypes)
		if err != nil {
			return err
		}

		svc, err := openService(false)
		if err != nil {
			return err
		}
		defer svc.Close()

		res, err := svc.pipeline.Ingest(cmd.Context(), roster, obs)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		color.Green("✓ Replaced %s (%d observations kept)", strings.Join(res.Locations, ", "), res.Kept)
		return nil
	},
}

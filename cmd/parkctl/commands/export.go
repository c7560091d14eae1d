package commands

import (
	"fmt"

	"github.com/parksense/parksense-api/internal/models"
	"github.com/parksense/parksense-api/internal/repository"
	"github.com/parksense/parksense-api/internal/services"
	"github.com/spf13/cobra"
)

func (c *cli) exportCmd() *cobra.Command {
	var (
		from  string
		to    string
		carID uint
		out   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export parking history for a period as CSV",
		Long: `Export the parking sessions that entered between two days, both inclusive.

Examples:
  parkctl export --from 2026-03-01 --to 2026-03-31
  parkctl export --from 2026-03-01 --to 2026-03-31 --car 12 --out march.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := services.ParsePeriod(from, to)
			if err != nil {
				return err
			}

			db, err := c.connect()
			if err != nil {
				return err
			}
			history := repository.NewHistoryRepository(db, c.cfg.ParkingCapacity)

			var rows []models.History
			if carID != 0 {
				rows, err = history.ListByPeriodForCar(cmd.Context(), start, end, carID)
			} else {
				rows, err = history.ListByPeriod(cmd.Context(), start, end)
			}
			if err != nil {
				return err
			}

			path := out
			if path == "" {
				path, err = services.ExportHistoryToDir(rows, c.cfg.ExportDir)
			} else {
				err = services.ExportHistoryCSV(rows, path)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d sessions to %s\n", len(rows), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last day, inclusive (YYYY-MM-DD)")
	cmd.Flags().UintVar(&carID, "car", 0, "Only export this car id")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: a new file under EXPORT_DIR)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

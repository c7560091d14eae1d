package commands

import (
	"fmt"

	"github.com/parksense/parksense-api/internal/database"
	"github.com/spf13/cobra"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Create or update the tables for users, cars, rates and parking history,
then make sure a default hourly rate exists (DEFAULT_HOURLY_RATE).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := c.connect()
			if err != nil {
				return err
			}
			if err := database.AutoMigrate(db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			rate, err := database.EnsureDefaultRate(db, c.cfg.DefaultHourlyRate)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date, current rate %s per hour\n", rate.PricePerHour.String())
			return nil
		},
	}
}

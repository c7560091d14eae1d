package commands

import (
	"fmt"

	"github.com/parksense/parksense-api/internal/models"
	"github.com/parksense/parksense-api/internal/repository"
	"github.com/spf13/cobra"
)

func (c *cli) createUserCmd() *cobra.Command {
	var (
		email    string
		username string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Register a user",
		Long: `Register a local user. The e-mail must match the user's Authorizer account
so their session resolves to this record.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := c.connect()
			if err != nil {
				return err
			}

			u := &models.User{Email: email, Username: username, Role: models.Role(role)}
			if err := repository.NewUserRepository(db).Create(cmd.Context(), u); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s user %d (%s)\n", u.Role, u.ID, u.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "E-mail address")
	cmd.Flags().StringVar(&username, "username", "", "Display name")
	cmd.Flags().StringVar(&role, "role", string(models.RoleUser), "Role: user or admin")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func (c *cli) banCarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ban-car PLATE",
		Short: "Ban a car from entering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := c.connect()
			if err != nil {
				return err
			}

			found, err := repository.NewCarRepository(db).Ban(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("no car with plate %q", args[0])
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Banned %s\n", args[0])
			return nil
		},
	}
}

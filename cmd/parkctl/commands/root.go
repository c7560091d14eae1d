// root.go
//
// A parking management data service for plate-recognition car parks
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of parksense-api.
// parksense-api is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// parksense-api is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with parksense-api.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package commands implements the parkctl maintenance CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/parksense/parksense-api/internal/config"
	"github.com/parksense/parksense-api/internal/database"
	"github.com/parksense/parksense-api/internal/logging"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// OpenFunc opens the database described by the configuration
type OpenFunc func(cfg *config.Config) (*gorm.DB, error)

type cli struct {
	open    OpenFunc
	envFile string
	verbose bool

	cfg *config.Config
	db  *gorm.DB
}

// NewRootCmd builds the parkctl command tree. Commands open the database
// through open.
func NewRootCmd(open OpenFunc) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:   "parkctl",
		Short: "ParkSense maintenance commands",
		Long: `parkctl runs maintenance jobs against the ParkSense database.

It reads the same environment variables as the server, optionally from an
env file given with --env-file.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&c.envFile, "env-file", "f", "", "Path to a .env file")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Verbose output")

	root.AddCommand(
		c.migrateCmd(),
		c.exportCmd(),
		c.createUserCmd(),
		c.banCarCmd(),
	)

	return root
}

// Execute runs parkctl against the configured database
func Execute() {
	var db *gorm.DB
	open := func(cfg *config.Config) (*gorm.DB, error) {
		var err error
		db, err = database.Connect(cfg)
		return db, err
	}

	err := NewRootCmd(open).Execute()
	if db != nil {
		_ = database.Close(db)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect loads configuration and opens the database once per invocation
func (c *cli) connect() (*gorm.DB, error) {
	if c.db != nil {
		return c.db, nil
	}

	if c.envFile != "" {
		if err := godotenv.Load(c.envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", c.envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := "warn"
	if c.verbose {
		level = "debug"
	}
	logging.Setup(level, false)

	db, err := c.open(cfg)
	if err != nil {
		return nil, err
	}

	c.cfg = cfg
	c.db = db
	return db, nil
}

// devdb.go
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

// Package devdb runs throwaway database containers for integration tests and
// local development.
package devdb

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/parksense/parksense-api/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Options describes the database container to start
type Options struct {
	Type     string // postgres, mysql or mariadb
	Image    string
	User     string
	Password string
	Database string

	// Ephemeral keeps the data directory in memory
	Ephemeral bool
	Startup   time.Duration
}

// Database is a started database container
type Database struct {
	Options
	Container testcontainers.Container
	Host      string
	Port      string
}

// Start creates and starts a database container and waits until it accepts connections
func Start(ctx context.Context, opts Options) (*Database, error) {
	if opts.Startup == 0 {
		opts.Startup = 60 * time.Second
	}

	internalPort, dataDir, readyLog, err := engine(opts.Type)
	if err != nil {
		return nil, err
	}
	tcpPort, err := nat.NewPort("tcp", internalPort)
	if err != nil {
		return nil, fmt.Errorf("failed to create DB port: %w", err)
	}

	hostConfigModifier := func(hostConfig *container.HostConfig) {
		if opts.Ephemeral {
			hostConfig.Tmpfs = map[string]string{dataDir: "rw"}
		}
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:              opts.Image,
			ExposedPorts:       []string{string(tcpPort)},
			Env:                initEnv(opts),
			HostConfigModifier: hostConfigModifier,
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(tcpPort),
				readyLog,
			).WithDeadline(opts.Startup),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", opts.Type, err)
	}

	db := &Database{Options: opts, Container: c}
	if db.Host, err = c.Host(ctx); err != nil {
		_ = c.Terminate(ctx)
		return nil, err
	}
	mapped, err := c.MappedPort(ctx, tcpPort)
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, err
	}
	db.Port = mapped.Port()

	return db, nil
}

// Config returns a copy of base pointing at the container
func (d *Database) Config(base config.Config) *config.Config {
	base.DBType = d.Type
	base.DBHost = d.Host
	base.DBPort = d.Port
	base.DBUser = d.User
	base.DBPassword = d.Password
	base.DBDatabase = d.Database
	return &base
}

// Terminate stops and removes the container
func (d *Database) Terminate(ctx context.Context) error {
	return d.Container.Terminate(ctx)
}

func engine(dbType string) (port, dataDir string, ready wait.Strategy, err error) {
	switch dbType {
	case "postgres":
		// The init script restarts the server once, so wait for the second message
		return "5432", "/var/lib/postgresql/data",
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2), nil
	case "mysql", "mariadb":
		return "3306", "/var/lib/mysql", wait.ForLog("ready for connections"), nil
	}
	return "", "", nil, fmt.Errorf("unsupported database type for containers: %s", dbType)
}

func initEnv(opts Options) map[string]string {
	switch opts.Type {
	case "postgres":
		return map[string]string{
			"POSTGRES_PASSWORD": opts.Password,
			"POSTGRES_USER":     opts.User,
			"POSTGRES_DB":       opts.Database,
		}
	case "mariadb", "mysql":
		return map[string]string{
			"MYSQL_ROOT_PASSWORD": opts.Password,
			"MYSQL_DATABASE":      opts.Database,
			"MYSQL_USER":          opts.User,
			"MYSQL_PASSWORD":      opts.Password,
		}
	}
	return nil
}

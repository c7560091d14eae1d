// connection.go
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

package database

import (
	"errors"
	"fmt"
	"net"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/parksense/parksense-api/internal/config"
	"github.com/parksense/parksense-api/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector builds the GORM dialector for the configured DB_TYPE
func Dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBType {
	case "mysql", "mariadb":
		dsnConfig := gomysql.NewConfig()
		dsnConfig.User = cfg.DBUser
		dsnConfig.Passwd = cfg.DBPassword
		dsnConfig.Net = "tcp"
		dsnConfig.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
		dsnConfig.DBName = cfg.DBDatabase
		dsnConfig.ParseTime = true
		dsnConfig.Loc = time.UTC
		dsnConfig.Params = map[string]string{"charset": "utf8mb4"}
		return mysql.Open(dsnConfig.FormatDSN()), nil

	case "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBDatabase,
			cfg.DBPort,
		)
		return postgres.Open(dsn), nil

	case "sqlite":
		// For SQLite, DBDatabase is the file path
		return sqlite.Open(cfg.DBDatabase), nil

	case "sqlserver", "mssql":
		dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=%s",
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBHost,
			cfg.DBPort,
			cfg.DBDatabase,
		)
		return sqlserver.Open(dsn), nil
	}

	return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
}

// Connect establishes a database connection based on the configured DB_TYPE
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := Open(dialector, cfg.DBLogLevel, cfg.DBConnectionLimit)
	if err != nil {
		return nil, err
	}

	log.Info().Str("type", cfg.DBType).Str("database", cfg.DBDatabase).Msg("connected to database")
	return db, nil
}

// Open opens a GORM handle over the dialector and configures the connection pool.
// Driver uniqueness violations are translated to gorm.ErrDuplicatedKey.
func Open(dialector gorm.Dialector, logLevel string, connectionLimit int) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(parseLogLevel(logLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	if connectionLimit > 0 {
		sqlDB.SetMaxOpenConns(connectionLimit)
		sqlDB.SetMaxIdleConns(max(connectionLimit/2, 1))
	}

	return db, nil
}

func parseLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	}
	return logger.Warn
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&models.Car{}, "Users", &models.CarUser{}); err != nil {
		return fmt.Errorf("failed to set up car_user join table: %w", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Car{},
		&models.CarUser{},
		&models.Rate{},
		&models.History{},
	); err != nil {
		return err
	}
	return ensureOpenSessionIndex(db)
}

// OpenSessionIndex allows one session without an exit per plate
const OpenSessionIndex = "idx_history_open_plate"

// ensureOpenSessionIndex creates the partial unique index on open sessions.
// MySQL and MariaDB have no partial indexes and rely on the entry check alone.
func ensureOpenSessionIndex(db *gorm.DB) error {
	switch db.Dialector.Name() {
	case "postgres", "sqlite", "sqlserver":
	default:
		return nil
	}
	if db.Migrator().HasIndex(&models.History{}, OpenSessionIndex) {
		return nil
	}
	err := db.Exec("CREATE UNIQUE INDEX " + OpenSessionIndex + " ON history (plate) WHERE exit_time IS NULL").Error
	if err != nil {
		return fmt.Errorf("failed to create open session index: %w", err)
	}
	return nil
}

// EnsureDefaultRate creates the standard tariff when no rate exists yet
func EnsureDefaultRate(db *gorm.DB, pricePerHour decimal.Decimal) (*models.Rate, error) {
	var rate models.Rate
	err := db.Order("id DESC").First(&rate).Error
	if err == nil {
		return &rate, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	rate = models.Rate{Name: "standard", PricePerHour: models.NewMoney(pricePerHour)}
	if err := db.Create(&rate).Error; err != nil {
		return nil, fmt.Errorf("failed to create default rate: %w", err)
	}
	log.Info().Str("price_per_hour", rate.PricePerHour.String()).Msg("created default rate")
	return &rate, nil
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

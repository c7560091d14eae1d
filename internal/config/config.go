package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port     string
	AppEnv   string // development, production
	LogLevel string

	// Database configuration
	DBType            string // mysql, postgres, sqlite, sqlserver, etc.
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUser            string
	DBPassword        string
	DBConnectionLimit int
	DBLogLevel        string // silent, error, warn, info

	// Authorizer configuration
	AuthzURL      string
	AuthzClientID string

	// Car park configuration
	ParkingCapacity   int
	DefaultHourlyRate decimal.Decimal
	ExportDir         string
}

// Load loads configuration from an optional .env file and environment variables
func Load() (*Config, error) {
	// A missing .env file is fine, real environment variables still apply
	_ = godotenv.Load()

	rate, err := decimal.NewFromString(getEnv("DEFAULT_HOURLY_RATE", "2.50"))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_HOURLY_RATE is not a decimal: %w", err)
	}

	cfg := &Config{
		Port:              getEnv("PORT", "3000"),
		AppEnv:            getEnv("APP_ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DBType:            getEnv("DB_TYPE", "postgres"),
		DBHost:            getEnv("DB_HOST", "localhost"),
		DBPort:            getEnv("DB_PORT", "5432"),
		DBDatabase:        getEnv("DB_DATABASE", ""),
		DBUser:            getEnv("DB_USER", ""),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBConnectionLimit: getEnvAsInt("DB_CONNECTION_LIMIT", 10),
		DBLogLevel:        getEnv("DB_LOG_LEVEL", "warn"),
		AuthzURL:          getEnv("AUTHZ_URL", ""),
		AuthzClientID:     getEnv("AUTHZ_CLIENT_ID", ""),
		ParkingCapacity:   getEnvAsInt("PARKING_CAPACITY", 100),
		DefaultHourlyRate: rate,
		ExportDir:         getEnv("EXPORT_DIR", os.TempDir()),
	}

	// Validate required fields
	if cfg.DBDatabase == "" {
		return nil, fmt.Errorf("DB_DATABASE is required")
	}
	if cfg.DBType != "sqlite" && cfg.DBUser == "" {
		return nil, fmt.Errorf("DB_USER is required")
	}
	if cfg.ParkingCapacity < 0 {
		return nil, fmt.Errorf("PARKING_CAPACITY must not be negative")
	}

	return cfg, nil
}

// RequireAuthorizer validates the settings only the HTTP server needs
func (cfg *Config) RequireAuthorizer() error {
	if cfg.AuthzURL == "" {
		return fmt.Errorf("AUTHZ_URL is required")
	}
	if cfg.AuthzClientID == "" {
		return fmt.Errorf("AUTHZ_CLIENT_ID is required")
	}
	return nil
}

// IsProduction reports whether the service runs with APP_ENV=production
func (cfg *Config) IsProduction() bool {
	return cfg.AppEnv == "production"
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

package services

import (
	"fmt"

	"github.com/parksense/parksense-api/internal/config"
	"github.com/parksense/parksense-api/internal/utils"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Authorizer   string            `json:"authorizer"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// Healthy reports whether every dependency answered
func (r HealthCheckResult) Healthy() bool {
	return r.Status == "healthy"
}

// HealthCheck checks the database and, when configured, the Authorizer service
func HealthCheck(cfg *config.Config, db *gorm.DB) HealthCheckResult {
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	sqlDB, err := db.DB()
	if err != nil {
		result.fail("database", "error", fmt.Sprintf("Database connection error: %v", err))
	} else if err := sqlDB.Ping(); err != nil {
		result.fail("database", "unreachable", fmt.Sprintf("Database ping failed: %v", err))
	} else {
		result.Database = "ok"
		result.Details["database_type"] = cfg.DBType
		result.Details["database_name"] = cfg.DBDatabase
	}

	switch {
	case cfg.AuthzURL == "":
		result.Authorizer = "not configured"
	default:
		if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
			result.fail("authorizer", "unreachable", fmt.Sprintf("Authorizer ping failed: %v", err))
		} else {
			result.Authorizer = "ok"
			result.Details["authorizer_url"] = cfg.AuthzURL
		}
	}

	if result.Healthy() {
		log.Debug().Msg("health check passed")
	}

	return result
}

func (r *HealthCheckResult) fail(component, state, message string) {
	r.Status = "unhealthy"
	switch component {
	case "database":
		r.Database = state
	case "authorizer":
		r.Authorizer = state
	}
	r.Details[component+"_error"] = message
	if r.ErrorMessage == "" {
		r.ErrorMessage = message
	} else {
		r.ErrorMessage += "; " + message
	}
	log.Warn().Str("component", component).Msg("health check failed: " + message)
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/parksense/parksense-api/internal/config"
	"github.com/parksense/parksense-api/internal/database"
	"github.com/parksense/parksense-api/internal/handlers"
	"github.com/parksense/parksense-api/internal/logging"
	"github.com/parksense/parksense-api/internal/middleware"
	"github.com/parksense/parksense-api/internal/repository"
	"github.com/parksense/parksense-api/internal/services"
	"github.com/rs/zerolog/log"

	_ "github.com/parksense/parksense-api/docs/api" // Swagger docs
)

// @title ParkSense API
// @version 1.0.0
// @description Parking management data service for plate-recognition car parks
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/parksense/parksense-api
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.IsProduction())

	if err := cfg.RequireAuthorizer(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	if _, err := database.EnsureDefaultRate(db, cfg.DefaultHourlyRate); err != nil {
		log.Fatal().Err(err).Msg("failed to ensure default rate")
	}

	// Create Fiber app
	appConfig := handlers.AppConfig()
	appConfig.DisableStartupMessage = cfg.IsProduction()
	app := fiber.New(appConfig)

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("parksense")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API routes under /api
	api := app.Group("/api", middleware.VersionMiddleware())

	// The Authorizer client is created on the first authenticated request
	redirectURL := fmt.Sprintf("http://localhost:%s", cfg.Port)
	handlers.Routes{
		Cars:      repository.NewCarRepository(db),
		History:   repository.NewHistoryRepository(db, cfg.ParkingCapacity),
		Users:     repository.NewUserRepository(db),
		Sessions:  services.NewAuthorizer(cfg, redirectURL),
		ExportDir: cfg.ExportDir,
		Health: func() services.HealthCheckResult {
			return services.HealthCheck(cfg, db)
		},
	}.Register(api)

	// 404 handler
	app.Use(handlers.NotFoundHandler)

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Info().Msg("gracefully shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	// Start server
	log.Info().Str("port", cfg.Port).Int("capacity", cfg.ParkingCapacity).Msg("starting server")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}

	log.Info().Msg("server stopped")
}

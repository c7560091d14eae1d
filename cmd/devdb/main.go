package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/parksense/parksense-api/internal/devdb"
	"github.com/parksense/parksense-api/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	flag.Parse()

	usage := `
Run a development database container with the settings from the .env file.

Usage:

devdb [-h] [-f ENV_FILE_PATH]

ENV_FILE_PATH: path to the .env file

Reads DB_TYPE, DB_IMAGE, DB_USER, DB_PASSWORD and DB_DATABASE and prints the
DB_HOST and DB_PORT to use with the server and parkctl.

example
  devdb -f /path/to/something/.env
`
	// if -h flag print usage and return
	if showHelp {
		fmt.Println(usage)
		return
	}

	logging.Setup("info", false)

	if envFilename != "" {
		log.Info().Str("file", envFilename).Msg("loading environment variables")
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatal().Err(err).Msg("failed to load environment variables")
		}
	} else {
		log.Info().Msg("no environment file specified, using current environment variables")
	}

	opts := devdb.Options{
		Type:     getEnv("DB_TYPE", "postgres"),
		Image:    getEnv("DB_IMAGE", "postgres:17-alpine"),
		User:     getEnv("DB_USER", "parksense"),
		Password: getEnv("DB_PASSWORD", "parksense"),
		Database: getEnv("DB_DATABASE", "parksense"),
	}

	ctx := context.Background()
	db, err := devdb.Start(ctx, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start database container")
	}

	fmt.Printf("DB_TYPE=%s\nDB_HOST=%s\nDB_PORT=%s\n", db.Type, db.Host, db.Port)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigs
	log.Info().Str("signal", sig.String()).Msg("terminating database container")
	if err := db.Terminate(ctx); err != nil {
		log.Error().Err(err).Msg("failed to terminate database container")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

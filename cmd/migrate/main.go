package main

import (
	"context"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"accountforge/internal/database"
	"accountforge/migrations"
)

func main() {
	_ = godotenv.Load()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}

	var source fs.FS = migrations.FS
	origin := "embedded"
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		source, origin = os.DirFS(dir), dir
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, databaseURL, database.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := database.ApplyMigrations(ctx, db, source, logger); err != nil {
		logger.Error().Err(err).Msg("migration failed")
		db.Close()
		os.Exit(1)
	}
	logger.Info().Str("source", origin).Msg("migrations applied")
}

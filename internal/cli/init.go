// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/bucks and cmd/bucks-worker.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"bucks/internal/config"
	"bucks/internal/mirror"
	gsheet "bucks/internal/mirror/google"
	"bucks/internal/storage"
	"bucks/internal/watch"
)

// SetupLogger initializes structured logging with default settings.
// Returns the configured logger and sets it as the default logger.
func SetupLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitRepository opens the SQLite repository wired to the given hub.
// Returns the repository or exits the process on failure.
func InitRepository(logger *slog.Logger, dbPath string, hub *watch.Hub) *storage.Repository {
	repo, err := storage.NewRepository(dbPath, hub)
	if err != nil {
		logger.Error("Failed to initialize repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// InitMirror builds the Google Sheets mirror when configured, or
// returns nil when the spreadsheet ID is absent. Exits the process on
// a configured-but-broken mirror.
func InitMirror(logger *slog.Logger, cfg *config.Config) mirror.Writer {
	if !cfg.MirrorEnabled() {
		logger.Info("Google Sheets mirror disabled - no BACKUP_SPREADSHEET_ID provided")
		return nil
	}
	sheetsClient, err := gsheet.NewFromEnv(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets mirror", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets mirror enabled", "spreadsheet_id", cfg.BackupSpreadsheetID)
	return sheetsClient
}

// Command migrate_data copies the assistant tables from the SQLite file at
// DB_PATH into the PostgreSQL database described by the DB_* settings.
package main

import (
	"context"
	"os"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/logging"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	cfg := config.LoadConfig()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	// 1. Connect to SQLite (Source)
	sqliteDB, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		logger.Error("failed to connect to SQLite", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	logger.Info("connected to SQLite", "path", cfg.DBPath)

	// 2. Connect to PostgreSQL (Destination)
	pgCfg := *cfg
	pgCfg.DBDriver = "postgres"
	pgDB, err := database.Open(&pgCfg)
	if err != nil {
		logger.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}

	logger.Info("starting data migration")
	if err := database.CopyAll(ctx, sqliteDB, pgDB, logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
	if err := database.SyncSequences(ctx, pgDB, logger); err != nil {
		logger.Error("sequence sync failed", "error", err)
		os.Exit(1)
	}
	logger.Info("migration completed")
}

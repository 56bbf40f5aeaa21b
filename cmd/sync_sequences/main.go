package main

import (
	"context"
	"os"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/logging"
)

func main() {
	cfg := config.LoadConfig()
	logger := logging.New(cfg.LogLevel)

	db, err := database.Open(cfg)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	logger.Info("syncing PostgreSQL sequences")
	if err := database.SyncSequences(context.Background(), db, logger); err != nil {
		logger.Error("sync failed", "error", err)
		os.Exit(1)
	}
	logger.Info("done")
}

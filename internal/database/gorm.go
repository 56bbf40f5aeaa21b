package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the database selected by cfg.DBDriver and runs the
// schema migration.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(PostgresDSN(cfg))
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.DBDriver, err)
	}

	if cfg.DBDriver != "postgres" {
		// SQLite allows a single writer.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// PostgresDSN builds the connection string from the DB_* settings.
func PostgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
}

// AllModels lists every table of the schema in dependency order.
func AllModels() []any {
	return []any{
		&models.Contact{},
		&models.Message{},
		&models.MenuOption{},
		&models.Setting{},
		&models.ConversationPosition{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// SyncConfig reconciles WhatsApp credentials between the environment and the
// settings table. A non-empty stored value wins; otherwise the configured
// value is written so operators can see it.
func SyncConfig(ctx context.Context, store *Store, cfg *config.Config) error {
	pairs := []struct {
		Key   string
		Value *string
	}{
		{"verify_token", &cfg.VerifyToken},
		{"whatsapp_token", &cfg.WhatsAppToken},
		{"whatsapp_phone_number_id", &cfg.PhoneNumberID},
		{"whatsapp_business_account_id", &cfg.WhatsAppBusinessAccountID},
	}

	for _, p := range pairs {
		setting, err := store.GetSetting(ctx, p.Key)
		switch {
		case err == nil:
			if setting.Value != "" {
				*p.Value = setting.Value
			}
		case errors.Is(err, ErrNotFound):
			if *p.Value == "" {
				continue
			}
			if _, err := store.UpsertSetting(ctx, p.Key, *p.Value, ""); err != nil {
				return err
			}
		default:
			return err
		}
	}
	slog.Info("credentials synchronized with settings table")
	return nil
}

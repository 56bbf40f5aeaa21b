package database

import (
	"context"
	"fmt"
	"log/slog"

	"whatsapp-assistant/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TableNames lists the tables with serial ids, in copy order.
var TableNames = []string{
	"contacts",
	"messages",
	"menu_options",
	"settings",
}

const copyBatchSize = 500

// CopyAll copies every row of the schema from src to dst. Rows already in
// dst, matched by primary key, are left alone so the copy can be re-run.
func CopyAll(ctx context.Context, src, dst *gorm.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if err := copyTable[models.Contact](ctx, src, dst, logger, "contacts"); err != nil {
		return err
	}
	if err := copyTable[models.Message](ctx, src, dst, logger, "messages"); err != nil {
		return err
	}
	// Parents before children.
	if err := copyMenu(ctx, src, dst, logger); err != nil {
		return err
	}
	if err := copyTable[models.Setting](ctx, src, dst, logger, "settings"); err != nil {
		return err
	}
	return copyTable[models.ConversationPosition](ctx, src, dst, logger, "conversation_positions")
}

func copyTable[T any](ctx context.Context, src, dst *gorm.DB, logger *slog.Logger, table string) error {
	var rows []T
	if err := src.WithContext(ctx).Find(&rows).Error; err != nil {
		return fmt.Errorf("read %s: %w", table, err)
	}
	if err := insertRows(ctx, dst, rows); err != nil {
		return fmt.Errorf("write %s: %w", table, err)
	}
	logger.Info("table copied", "table", table, "rows", len(rows))
	return nil
}

func copyMenu(ctx context.Context, src, dst *gorm.DB, logger *slog.Logger) error {
	var top, children []models.MenuOption
	if err := src.WithContext(ctx).Where("parent_id IS NULL").Find(&top).Error; err != nil {
		return fmt.Errorf("read menu_options: %w", err)
	}
	if err := src.WithContext(ctx).Where("parent_id IS NOT NULL").Find(&children).Error; err != nil {
		return fmt.Errorf("read menu_options: %w", err)
	}
	if err := insertRows(ctx, dst, top); err != nil {
		return fmt.Errorf("write menu_options: %w", err)
	}
	if err := insertRows(ctx, dst, children); err != nil {
		return fmt.Errorf("write menu_options: %w", err)
	}
	logger.Info("table copied", "table", "menu_options", "rows", len(top)+len(children))
	return nil
}

func insertRows[T any](ctx context.Context, dst *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return dst.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, copyBatchSize).Error
	})
}

// SyncSequences moves every PostgreSQL id sequence past the highest copied
// id. It is a no-op on other dialects.
func SyncSequences(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if db.Dialector.Name() != "postgres" {
		logger.Info("sequence sync skipped", "dialect", db.Dialector.Name())
		return nil
	}
	for _, table := range TableNames {
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.WithContext(ctx).Exec(query).Error; err != nil {
			return fmt.Errorf("sync sequence for %s: %w", table, err)
		}
		logger.Info("sequence synced", "table", table)
	}
	return nil
}

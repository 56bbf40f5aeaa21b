package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"whatsapp-assistant/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed defaults.yaml
var defaultSeed []byte

// SeedFile describes the default settings and menu tree.
type SeedFile struct {
	Settings []SeedSetting `yaml:"settings"`
	Menu     []SeedOption  `yaml:"menu"`
}

type SeedSetting struct {
	Key         string `yaml:"key"`
	Value       string `yaml:"value"`
	Description string `yaml:"description"`
}

type SeedOption struct {
	Title        string       `yaml:"title"`
	Description  string       `yaml:"description"`
	Response     string       `yaml:"response"`
	Order        int          `yaml:"order"`
	RequiresForm bool         `yaml:"requires_form"`
	Children     []SeedOption `yaml:"children"`
}

// LoadSeed parses the seed at path, or the embedded defaults when path is
// empty.
func LoadSeed(path string) (*SeedFile, error) {
	data := defaultSeed
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}

// Seed writes missing settings and, when the menu table is empty, the menu
// tree. Existing data is never overwritten.
func Seed(ctx context.Context, store *Store, seed *SeedFile) error {
	for _, s := range seed.Settings {
		created, err := store.CreateSettingIfAbsent(ctx, models.Setting{
			Key:         s.Key,
			Value:       s.Value,
			Description: s.Description,
		})
		if err != nil {
			return fmt.Errorf("seed setting %s: %w", s.Key, err)
		}
		if created {
			slog.Debug("seeded setting", "key", s.Key)
		}
	}

	count, err := store.CountMenuOptions(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return SeedMenu(ctx, store, seed.Menu)
}

// SeedMenu inserts options and their children.
func SeedMenu(ctx context.Context, store *Store, options []SeedOption) error {
	return seedOptions(ctx, store, options, nil)
}

func seedOptions(ctx context.Context, store *Store, options []SeedOption, parentID *uint) error {
	for _, o := range options {
		option := models.MenuOption{
			Title:        o.Title,
			Description:  o.Description,
			ParentID:     parentID,
			ResponseText: o.Response,
			Order:        o.Order,
			RequiresForm: o.RequiresForm,
		}
		if err := store.CreateMenuOption(ctx, &option); err != nil {
			return fmt.Errorf("seed menu option %q: %w", o.Title, err)
		}
		if len(o.Children) > 0 {
			id := option.ID
			if err := seedOptions(ctx, store, o.Children, &id); err != nil {
				return err
			}
		}
	}
	if parentID == nil {
		slog.Info("seeded menu options", "top_level", len(options))
	}
	return nil
}

// ReplaceMenu drops the current menu tree and every stored position, then
// inserts options, all in one transaction.
func ReplaceMenu(ctx context.Context, store *Store, options []SeedOption) error {
	return store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&models.ConversationPosition{}).Error; err != nil {
			return fmt.Errorf("clear positions: %w", err)
		}
		if err := tx.Where("parent_id IS NOT NULL").Delete(&models.MenuOption{}).Error; err != nil {
			return fmt.Errorf("clear submenus: %w", err)
		}
		if err := tx.Where("1 = 1").Delete(&models.MenuOption{}).Error; err != nil {
			return fmt.Errorf("clear menu: %w", err)
		}
		return SeedMenu(ctx, NewStore(tx), options)
	})
}

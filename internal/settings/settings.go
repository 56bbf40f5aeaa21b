// Package settings reads and writes the flat key/value configuration that
// operators edit at runtime.
package settings

import (
	"context"
	"errors"
	"strconv"

	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/models"
)

const (
	KeyAIAssistantActive        = "ai_assistant_active"
	KeyEncryptionEnabled        = "encryption_enabled"
	KeyStoreConversationHistory = "store_conversation_history"
	KeyAssistantName            = "assistant_name"
	KeyFormLink                 = "form_link"
	KeyLLMFallbackEnabled       = "llm_fallback_enabled"
)

const DefaultAssistantName = "Maximus"

type Store interface {
	GetSetting(ctx context.Context, key string) (*models.Setting, error)
	ListSettings(ctx context.Context) ([]models.Setting, error)
	UpsertSetting(ctx context.Context, key, value, description string) (*models.Setting, error)
}

type Settings struct {
	store Store
}

func New(store Store) *Settings {
	return &Settings{store: store}
}

// Get returns the raw value and whether the key exists.
func (s *Settings) Get(ctx context.Context, key string) (string, bool, error) {
	setting, err := s.store.GetSetting(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return setting.Value, true, nil
}

// Bool is true only when the stored value is the literal "true".
func (s *Settings) Bool(ctx context.Context, key string) (bool, error) {
	v, _, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// String returns the stored value, or fallback when the key is missing or
// empty.
func (s *Settings) String(ctx context.Context, key, fallback string) (string, error) {
	v, ok, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return fallback, nil
	}
	return v, nil
}

// Lookup returns the full setting row, or database.ErrNotFound.
func (s *Settings) Lookup(ctx context.Context, key string) (*models.Setting, error) {
	return s.store.GetSetting(ctx, key)
}

func (s *Settings) Set(ctx context.Context, key, value string) (*models.Setting, error) {
	return s.store.UpsertSetting(ctx, key, value, "")
}

func (s *Settings) SetBool(ctx context.Context, key string, value bool) (*models.Setting, error) {
	return s.Set(ctx, key, strconv.FormatBool(value))
}

func (s *Settings) All(ctx context.Context) ([]models.Setting, error) {
	return s.store.ListSettings(ctx)
}

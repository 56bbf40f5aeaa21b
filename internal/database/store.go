package database

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"whatsapp-assistant/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store is the GORM-backed persistence layer. It satisfies the store
// interfaces declared by the directory, settings, menu and automation
// packages.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") {
		return ErrDuplicate
	}
	return err
}

// --- Contacts ---

func (s *Store) GetContactByPhone(ctx context.Context, phone string) (*models.Contact, error) {
	var contact models.Contact
	if err := s.db.WithContext(ctx).Where("phone_number = ?", phone).First(&contact).Error; err != nil {
		return nil, translate(err)
	}
	return &contact, nil
}

func (s *Store) GetContact(ctx context.Context, id uint) (*models.Contact, error) {
	var contact models.Contact
	if err := s.db.WithContext(ctx).First(&contact, id).Error; err != nil {
		return nil, translate(err)
	}
	return &contact, nil
}

func (s *Store) CreateContact(ctx context.Context, contact *models.Contact) error {
	if contact.Category == "" {
		contact.Category = models.CategoryUncategorized
	}
	return translate(s.db.WithContext(ctx).Create(contact).Error)
}

func (s *Store) ListContacts(ctx context.Context) ([]models.Contact, error) {
	contacts := []models.Contact{}
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&contacts).Error
	return contacts, translate(err)
}

func (s *Store) ListExemptedContacts(ctx context.Context) ([]models.Contact, error) {
	contacts := []models.Contact{}
	err := s.db.WithContext(ctx).Where("is_exempted = ?", true).Order("name").Find(&contacts).Error
	return contacts, translate(err)
}

// UpdateContact applies column updates to an existing contact and returns
// the stored result.
func (s *Store) UpdateContact(ctx context.Context, id uint, updates map[string]any) (*models.Contact, error) {
	contact, err := s.GetContact(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(contact).Updates(updates).Error; err != nil {
			return nil, translate(err)
		}
	}
	return s.GetContact(ctx, id)
}

// DeleteContact removes the contact together with its messages and menu
// position.
func (s *Store) DeleteContact(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("contact_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("contact_id = ?", id).Delete(&models.ConversationPosition{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Contact{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// --- Messages ---

func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	return translate(s.db.WithContext(ctx).Create(msg).Error)
}

func (s *Store) MessagesByContact(ctx context.Context, contactID uint) ([]models.Message, error) {
	messages := []models.Message{}
	err := s.db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("timestamp ASC, id ASC").
		Find(&messages).Error
	return messages, translate(err)
}

// RecentMessages returns the last limit messages of a contact, oldest first.
func (s *Store) RecentMessages(ctx context.Context, contactID uint, limit int) ([]models.Message, error) {
	messages := []models.Message{}
	err := s.db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, translate(err)
	}
	slices.Reverse(messages)
	return messages, nil
}

// --- Settings ---

func (s *Store) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	var setting models.Setting
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error; err != nil {
		return nil, translate(err)
	}
	return &setting, nil
}

func (s *Store) ListSettings(ctx context.Context) ([]models.Setting, error) {
	settings := []models.Setting{}
	err := s.db.WithContext(ctx).Order("key").Find(&settings).Error
	return settings, translate(err)
}

// UpsertSetting creates the key if absent, otherwise overwrites its value.
// The description is only replaced when a new one is given.
func (s *Store) UpsertSetting(ctx context.Context, key, value, description string) (*models.Setting, error) {
	columns := []string{"value"}
	if description != "" {
		columns = append(columns, "description")
	}
	setting := models.Setting{Key: key, Value: value, Description: description}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&setting).Error
	if err != nil {
		return nil, translate(err)
	}
	return s.GetSetting(ctx, key)
}

// CreateSettingIfAbsent inserts the setting unless the key already exists.
// It reports whether a row was written.
func (s *Store) CreateSettingIfAbsent(ctx context.Context, setting models.Setting) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&setting)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// --- Menu options ---

func (s *Store) ListMenuOptions(ctx context.Context) ([]models.MenuOption, error) {
	options := []models.MenuOption{}
	err := s.db.WithContext(ctx).Order("sort_order ASC, id ASC").Find(&options).Error
	return options, translate(err)
}

func (s *Store) GetTopLevelMenuOptions(ctx context.Context) ([]models.MenuOption, error) {
	options := []models.MenuOption{}
	err := s.db.WithContext(ctx).
		Where("parent_id IS NULL").
		Order("sort_order ASC, id ASC").
		Find(&options).Error
	return options, translate(err)
}

func (s *Store) GetSubmenuOptions(ctx context.Context, parentID uint) ([]models.MenuOption, error) {
	options := []models.MenuOption{}
	err := s.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("sort_order ASC, id ASC").
		Find(&options).Error
	return options, translate(err)
}

func (s *Store) GetMenuOption(ctx context.Context, id uint) (*models.MenuOption, error) {
	var option models.MenuOption
	if err := s.db.WithContext(ctx).First(&option, id).Error; err != nil {
		return nil, translate(err)
	}
	return &option, nil
}

func (s *Store) CountMenuOptions(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.MenuOption{}).Count(&n).Error
	return n, translate(err)
}

func (s *Store) CreateMenuOption(ctx context.Context, option *models.MenuOption) error {
	return translate(s.db.WithContext(ctx).Create(option).Error)
}

func (s *Store) UpdateMenuOption(ctx context.Context, id uint, updates map[string]any) (*models.MenuOption, error) {
	option, err := s.GetMenuOption(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(option).Updates(updates).Error; err != nil {
			return nil, translate(err)
		}
	}
	return s.GetMenuOption(ctx, id)
}

// DeleteMenuOption removes an option and its direct children. Positions that
// still point at them are healed by the navigator.
func (s *Store) DeleteMenuOption(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("parent_id = ?", id).Delete(&models.MenuOption{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.MenuOption{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// --- Conversation positions ---

// GetPosition returns the menu option last presented to the contact and
// false when the contact is at the root menu.
func (s *Store) GetPosition(ctx context.Context, contactID uint) (uint, bool, error) {
	var pos models.ConversationPosition
	err := s.db.WithContext(ctx).Where("contact_id = ?", contactID).First(&pos).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, translate(err)
	}
	return pos.MenuOptionID, true, nil
}

func (s *Store) SavePosition(ctx context.Context, contactID, menuOptionID uint) error {
	pos := models.ConversationPosition{ContactID: contactID, MenuOptionID: menuOptionID}
	return translate(s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contact_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"menu_option_id", "updated_at"}),
	}).Create(&pos).Error)
}

func (s *Store) ClearPosition(ctx context.Context, contactID uint) error {
	return translate(s.db.WithContext(ctx).
		Where("contact_id = ?", contactID).
		Delete(&models.ConversationPosition{}).Error)
}

// PruneStalePositions deletes positions not touched since before.
func (s *Store) PruneStalePositions(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("updated_at < ?", before).
		Delete(&models.ConversationPosition{})
	return res.RowsAffected, translate(res.Error)
}

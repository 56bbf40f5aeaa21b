package models

import (
	"time"
)

// Contact categories. Contacts start as CategoryUncategorized until an
// operator files them.
const (
	CategoryBusiness      = "business"
	CategoryWork          = "work"
	CategoryPersonal      = "personal"
	CategoryStranger      = "stranger"
	CategoryInactive      = "inactive"
	CategoryOther         = "other"
	CategoryUncategorized = "uncategorized"
)

// ValidCategory reports whether c is one of the known contact categories.
func ValidCategory(c string) bool {
	switch c {
	case CategoryBusiness, CategoryWork, CategoryPersonal, CategoryStranger,
		CategoryInactive, CategoryOther, CategoryUncategorized:
		return true
	}
	return false
}

// Contact represents a WhatsApp contact
type Contact struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	PhoneNumber string    `gorm:"type:varchar(50);not null;uniqueIndex" json:"phoneNumber"`
	Category    string    `gorm:"type:varchar(50);not null;default:'uncategorized'" json:"category"`
	IsExempted  bool      `gorm:"not null" json:"isExempted"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Contact) TableName() string {
	return "contacts"
}

// Message is one leg of a conversation. Content holds ciphertext when
// IsEncrypted is set.
type Message struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ContactID     uint      `gorm:"index;not null" json:"contactId"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	IsFromContact bool      `gorm:"not null" json:"isFromContact"`
	Timestamp     time.Time `gorm:"autoCreateTime" json:"timestamp"`
	IsEncrypted   bool      `gorm:"not null" json:"isEncrypted"`
}

func (Message) TableName() string {
	return "messages"
}

// MenuOption is a node of the selection menu. ParentID nil means top-level.
type MenuOption struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Title        string `gorm:"type:varchar(255);not null" json:"title"`
	Description  string `gorm:"type:text" json:"description"`
	ParentID     *uint  `gorm:"index" json:"parentId"`
	ResponseText string `gorm:"type:text" json:"responseText"`
	Order        int    `gorm:"column:sort_order;not null;default:0" json:"order"`
	RequiresForm bool   `gorm:"not null" json:"requiresForm"`
}

func (MenuOption) TableName() string {
	return "menu_options"
}

// Setting is a flat key/value pair. Booleans are stored as "true"/"false".
type Setting struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Key         string `gorm:"type:varchar(100);not null;uniqueIndex" json:"key"`
	Value       string `gorm:"type:text;not null" json:"value"`
	Description string `gorm:"type:text" json:"description"`
}

func (Setting) TableName() string {
	return "settings"
}

// ConversationPosition records the menu node last presented to a contact.
// No row means the contact is at the root menu.
type ConversationPosition struct {
	ContactID    uint      `gorm:"primaryKey;autoIncrement:false" json:"contactId"`
	MenuOptionID uint      `gorm:"not null" json:"menuOptionId"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime;index" json:"updatedAt"`
}

func (ConversationPosition) TableName() string {
	return "conversation_positions"
}

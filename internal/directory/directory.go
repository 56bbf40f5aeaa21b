// Package directory resolves phone numbers to contacts and applies operator
// edits to them.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/models"

	"golang.org/x/sync/singleflight"
)

var ErrInvalidCategory = errors.New("invalid contact category")

type Store interface {
	GetContactByPhone(ctx context.Context, phone string) (*models.Contact, error)
	GetContact(ctx context.Context, id uint) (*models.Contact, error)
	CreateContact(ctx context.Context, contact *models.Contact) error
	ListContacts(ctx context.Context) ([]models.Contact, error)
	ListExemptedContacts(ctx context.Context) ([]models.Contact, error)
	UpdateContact(ctx context.Context, id uint, updates map[string]any) (*models.Contact, error)
	DeleteContact(ctx context.Context, id uint) error
}

type Directory struct {
	store  Store
	group  singleflight.Group
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{store: store, logger: logger}
}

type resolved struct {
	contact *models.Contact
	created bool
}

// Resolve fetches the contact for phone, creating it on first contact.
// Concurrent calls for the same number share one lookup; a uniqueness
// violation means another writer won the race and the row is re-read.
func (d *Directory) Resolve(ctx context.Context, phone string) (*models.Contact, bool, error) {
	v, err, _ := d.group.Do(phone, func() (any, error) {
		contact, err := d.store.GetContactByPhone(ctx, phone)
		if err == nil {
			return resolved{contact: contact}, nil
		}
		if !errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("lookup contact %s: %w", phone, err)
		}

		contact = &models.Contact{
			Name:        phone,
			PhoneNumber: phone,
			Category:    models.CategoryUncategorized,
		}
		err = d.store.CreateContact(ctx, contact)
		if errors.Is(err, database.ErrDuplicate) {
			contact, err = d.store.GetContactByPhone(ctx, phone)
			if err != nil {
				return nil, fmt.Errorf("re-read contact %s: %w", phone, err)
			}
			return resolved{contact: contact}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("create contact %s: %w", phone, err)
		}
		d.logger.Info("contact created", "contact_id", contact.ID, "phone", phone)
		return resolved{contact: contact, created: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r := v.(resolved)
	// Callers sharing a flight must not alias the same struct.
	c := *r.contact
	return &c, r.created, nil
}

func (d *Directory) Get(ctx context.Context, id uint) (*models.Contact, error) {
	return d.store.GetContact(ctx, id)
}

func (d *Directory) List(ctx context.Context) ([]models.Contact, error) {
	return d.store.ListContacts(ctx)
}

func (d *Directory) ListExempted(ctx context.Context) ([]models.Contact, error) {
	return d.store.ListExemptedContacts(ctx)
}

// Create registers a contact entered by an operator.
func (d *Directory) Create(ctx context.Context, contact *models.Contact) error {
	if contact.Category == "" {
		contact.Category = models.CategoryUncategorized
	}
	if !models.ValidCategory(contact.Category) {
		return fmt.Errorf("%w: %q", ErrInvalidCategory, contact.Category)
	}
	if contact.Name == "" {
		contact.Name = contact.PhoneNumber
	}
	return d.store.CreateContact(ctx, contact)
}

func (d *Directory) Update(ctx context.Context, id uint, updates map[string]any) (*models.Contact, error) {
	if c, ok := updates["category"].(string); ok && !models.ValidCategory(c) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, c)
	}
	return d.store.UpdateContact(ctx, id, updates)
}

func (d *Directory) SetExempted(ctx context.Context, id uint, exempted bool) (*models.Contact, error) {
	contact, err := d.store.UpdateContact(ctx, id, map[string]any{"is_exempted": exempted})
	if err != nil {
		return nil, err
	}
	d.logger.Info("contact exemption changed", "contact_id", id, "exempted", exempted)
	return contact, nil
}

func (d *Directory) SetCategory(ctx context.Context, id uint, category string) (*models.Contact, error) {
	if !models.ValidCategory(category) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	return d.store.UpdateContact(ctx, id, map[string]any{"category": category})
}

func (d *Directory) Delete(ctx context.Context, id uint) error {
	return d.store.DeleteContact(ctx, id)
}

// Package menu exposes the selectable option tree shown to contacts.
package menu

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"whatsapp-assistant/internal/models"
)

var (
	ErrInvalidParent = errors.New("parent must be an existing top-level option")
	ErrHasChildren   = errors.New("an option with a submenu cannot be nested")
	ErrSubmenuFull   = errors.New("submenu is full")
)

// MaxChildren is the number of submenu entries that can carry a letter
// label: a to z without h, which always means "speak to a human".
const MaxChildren = 25

type Store interface {
	ListMenuOptions(ctx context.Context) ([]models.MenuOption, error)
	GetTopLevelMenuOptions(ctx context.Context) ([]models.MenuOption, error)
	GetSubmenuOptions(ctx context.Context, parentID uint) ([]models.MenuOption, error)
	GetMenuOption(ctx context.Context, id uint) (*models.MenuOption, error)
	CreateMenuOption(ctx context.Context, option *models.MenuOption) error
	UpdateMenuOption(ctx context.Context, id uint, updates map[string]any) (*models.MenuOption, error)
	DeleteMenuOption(ctx context.Context, id uint) error
}

type Catalog struct {
	store Store
}

func NewCatalog(store Store) *Catalog {
	return &Catalog{store: store}
}

// TopLevel returns root options ordered for display.
func (c *Catalog) TopLevel(ctx context.Context) ([]models.MenuOption, error) {
	options, err := c.store.GetTopLevelMenuOptions(ctx)
	if err != nil {
		return nil, err
	}
	SortOptions(options)
	return options, nil
}

// Children returns the submenu of parentID ordered for display.
func (c *Catalog) Children(ctx context.Context, parentID uint) ([]models.MenuOption, error) {
	options, err := c.store.GetSubmenuOptions(ctx, parentID)
	if err != nil {
		return nil, err
	}
	SortOptions(options)
	return options, nil
}

func (c *Catalog) Option(ctx context.Context, id uint) (*models.MenuOption, error) {
	return c.store.GetMenuOption(ctx, id)
}

func (c *Catalog) All(ctx context.Context) ([]models.MenuOption, error) {
	return c.store.ListMenuOptions(ctx)
}

// Create validates the two-level shape before inserting.
func (c *Catalog) Create(ctx context.Context, option *models.MenuOption) error {
	if option.ParentID != nil {
		if err := c.checkParent(ctx, 0, *option.ParentID); err != nil {
			return err
		}
	}
	return c.store.CreateMenuOption(ctx, option)
}

// Update moves an option under a new parent only when the option has no
// submenu of its own, so the tree never grows a third level.
func (c *Catalog) Update(ctx context.Context, id uint, updates map[string]any) (*models.MenuOption, error) {
	if p, ok := updates["parent_id"].(*uint); ok && p != nil {
		current, err := c.store.GetMenuOption(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.ParentID == nil || *current.ParentID != *p {
			if err := c.checkParent(ctx, id, *p); err != nil {
				return nil, err
			}
			children, err := c.store.GetSubmenuOptions(ctx, id)
			if err != nil {
				return nil, err
			}
			if len(children) > 0 {
				return nil, fmt.Errorf("%w: %w", ErrInvalidParent, ErrHasChildren)
			}
		}
	}
	return c.store.UpdateMenuOption(ctx, id, updates)
}

func (c *Catalog) Delete(ctx context.Context, id uint) error {
	return c.store.DeleteMenuOption(ctx, id)
}

func (c *Catalog) checkParent(ctx context.Context, self, parentID uint) error {
	if parentID == self {
		return ErrInvalidParent
	}
	parent, err := c.store.GetMenuOption(ctx, parentID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParent, err)
	}
	if parent.ParentID != nil {
		return ErrInvalidParent
	}
	siblings, err := c.store.GetSubmenuOptions(ctx, parentID)
	if err != nil {
		return err
	}
	if len(siblings) >= MaxChildren {
		return fmt.Errorf("%w: %q already has %d options", ErrSubmenuFull, parent.Title, len(siblings))
	}
	return nil
}

// SortOptions orders siblings by Order, then ID.
func SortOptions(options []models.MenuOption) {
	sort.SliceStable(options, func(i, j int) bool {
		if options[i].Order != options[j].Order {
			return options[i].Order < options[j].Order
		}
		return options[i].ID < options[j].ID
	})
}

package api

import (
	"context"
	"net/http"

	"whatsapp-assistant/internal/models"

	"github.com/gin-gonic/gin"
)

type MenuCatalog interface {
	TopLevel(ctx context.Context) ([]models.MenuOption, error)
	Children(ctx context.Context, parentID uint) ([]models.MenuOption, error)
	All(ctx context.Context) ([]models.MenuOption, error)
	Create(ctx context.Context, option *models.MenuOption) error
	Update(ctx context.Context, id uint, updates map[string]any) (*models.MenuOption, error)
	Delete(ctx context.Context, id uint) error
}

type MenuHandler struct {
	Catalog MenuCatalog
}

func NewMenuHandler(catalog MenuCatalog) *MenuHandler {
	return &MenuHandler{Catalog: catalog}
}

func (h *MenuHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/menu-options", h.GetOptions)
	rg.GET("/menu-options/top-level", h.GetTopLevel)
	rg.GET("/menu-options/submenu/:parentId", h.GetSubmenu)
	rg.POST("/menu-options", h.CreateOption)
	rg.PUT("/menu-options/:id", h.UpdateOption)
	rg.DELETE("/menu-options/:id", h.DeleteOption)
}

func (h *MenuHandler) GetOptions(c *gin.Context) {
	h.list(c, h.Catalog.All)
}

func (h *MenuHandler) GetTopLevel(c *gin.Context) {
	h.list(c, h.Catalog.TopLevel)
}

func (h *MenuHandler) GetSubmenu(c *gin.Context) {
	parentID, err := idParam(c, "parentId")
	if err != nil {
		respondError(c, err)
		return
	}
	h.list(c, func(ctx context.Context) ([]models.MenuOption, error) {
		return h.Catalog.Children(ctx, parentID)
	})
}

func (h *MenuHandler) list(c *gin.Context, fetch func(context.Context) ([]models.MenuOption, error)) {
	options, err := fetch(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if options == nil {
		options = []models.MenuOption{}
	}
	c.JSON(http.StatusOK, options)
}

type MenuOptionRequest struct {
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description"`
	ParentID     *uint  `json:"parentId"`
	ResponseText string `json:"responseText"`
	Order        int    `json:"order"`
	RequiresForm bool   `json:"requiresForm"`
}

func (h *MenuHandler) CreateOption(c *gin.Context) {
	var req MenuOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	option := &models.MenuOption{
		Title:        req.Title,
		Description:  req.Description,
		ParentID:     req.ParentID,
		ResponseText: req.ResponseText,
		Order:        req.Order,
		RequiresForm: req.RequiresForm,
	}
	if err := h.Catalog.Create(c.Request.Context(), option); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, option)
}

// UpdateMenuOptionRequest carries the editable fields; nil leaves a field
// as is. Moving an option to the top level is done with "detach": true.
type UpdateMenuOptionRequest struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	ParentID     *uint   `json:"parentId"`
	Detach       bool    `json:"detach"`
	ResponseText *string `json:"responseText"`
	Order        *int    `json:"order"`
	RequiresForm *bool   `json:"requiresForm"`
}

func (h *MenuHandler) UpdateOption(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req UpdateMenuOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]any{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Detach {
		updates["parent_id"] = nil
	} else if req.ParentID != nil {
		updates["parent_id"] = req.ParentID
	}
	if req.ResponseText != nil {
		updates["response_text"] = *req.ResponseText
	}
	if req.Order != nil {
		updates["sort_order"] = *req.Order
	}
	if req.RequiresForm != nil {
		updates["requires_form"] = *req.RequiresForm
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	option, err := h.Catalog.Update(c.Request.Context(), id, updates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, option)
}

func (h *MenuHandler) DeleteOption(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Catalog.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Menu option deleted"})
}

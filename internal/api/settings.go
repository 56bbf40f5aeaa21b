package api

import (
	"context"
	"errors"
	"net/http"

	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/models"

	"github.com/gin-gonic/gin"
)

type SettingsService interface {
	All(ctx context.Context) ([]models.Setting, error)
	Lookup(ctx context.Context, key string) (*models.Setting, error)
	Set(ctx context.Context, key, value string) (*models.Setting, error)
}

type SettingsHandler struct {
	Settings SettingsService
}

func NewSettingsHandler(s SettingsService) *SettingsHandler {
	return &SettingsHandler{Settings: s}
}

func (h *SettingsHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/settings", h.GetSettings)
	rg.GET("/settings/:key", h.GetSetting)
	rg.PUT("/settings/:key", h.UpdateSetting)
}

func (h *SettingsHandler) GetSettings(c *gin.Context) {
	all, err := h.Settings.All(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if all == nil {
		all = []models.Setting{}
	}
	c.JSON(http.StatusOK, all)
}

func (h *SettingsHandler) GetSetting(c *gin.Context) {
	setting, err := h.Settings.Lookup(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

// UpdateSetting writes the value, creating the key when it does not exist yet.
func (h *SettingsHandler) UpdateSetting(c *gin.Context) {
	var req struct {
		Value *string `json:"value" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value must be a string"})
		return
	}

	key := c.Param("key")
	status := http.StatusOK
	if _, err := h.Settings.Lookup(c.Request.Context(), key); err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			respondError(c, err)
			return
		}
		status = http.StatusCreated
	}
	setting, err := h.Settings.Set(c.Request.Context(), key, *req.Value)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(status, setting)
}

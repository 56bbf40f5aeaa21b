package api

import (
	"context"
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"whatsapp-assistant/internal/models"

	"github.com/gin-gonic/gin"
)

type ContactDirectory interface {
	Get(ctx context.Context, id uint) (*models.Contact, error)
	List(ctx context.Context) ([]models.Contact, error)
	ListExempted(ctx context.Context) ([]models.Contact, error)
	Create(ctx context.Context, contact *models.Contact) error
	Update(ctx context.Context, id uint, updates map[string]any) (*models.Contact, error)
	SetExempted(ctx context.Context, id uint, exempted bool) (*models.Contact, error)
	SetCategory(ctx context.Context, id uint, category string) (*models.Contact, error)
	Delete(ctx context.Context, id uint) error
}

type ContactHandler struct {
	Directory ContactDirectory
}

func NewContactHandler(dir ContactDirectory) *ContactHandler {
	return &ContactHandler{Directory: dir}
}

func (h *ContactHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/contacts", h.GetContacts)
	rg.GET("/contacts/exempted", h.GetExemptedContacts)
	rg.GET("/contacts/export", h.ExportContacts)
	rg.GET("/contacts/:id", h.GetContact)
	rg.POST("/contacts", h.CreateContact)
	rg.PUT("/contacts/:id", h.UpdateContact)
	rg.PUT("/contacts/:id/exemption", h.SetExemption)
	rg.PUT("/contacts/:id/category", h.SetCategory)
	rg.DELETE("/contacts/:id", h.DeleteContact)
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	contacts, err := h.Directory.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	// Return empty array instead of null
	if contacts == nil {
		contacts = []models.Contact{}
	}
	c.JSON(http.StatusOK, contacts)
}

func (h *ContactHandler) GetExemptedContacts(c *gin.Context) {
	contacts, err := h.Directory.ListExempted(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if contacts == nil {
		contacts = []models.Contact{}
	}
	c.JSON(http.StatusOK, contacts)
}

func (h *ContactHandler) GetContact(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	contact, err := h.Directory.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

// CreateContactRequest for adding new contacts
type CreateContactRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	IsExempted  bool   `json:"isExempted"`
}

func (h *ContactHandler) CreateContact(c *gin.Context) {
	var req CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact := &models.Contact{
		PhoneNumber: req.PhoneNumber,
		Name:        req.Name,
		Category:    req.Category,
		IsExempted:  req.IsExempted,
	}
	if err := h.Directory.Create(c.Request.Context(), contact); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, contact)
}

// UpdateContactRequest carries the editable fields; nil leaves a field as is.
type UpdateContactRequest struct {
	Name        *string `json:"name"`
	PhoneNumber *string `json:"phoneNumber"`
	Category    *string `json:"category"`
	IsExempted  *bool   `json:"isExempted"`
}

func (h *ContactHandler) UpdateContact(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.PhoneNumber != nil {
		updates["phone_number"] = *req.PhoneNumber
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.IsExempted != nil {
		updates["is_exempted"] = *req.IsExempted
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	contact, err := h.Directory.Update(c.Request.Context(), id, updates)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) SetExemption(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req struct {
		IsExempted *bool `json:"isExempted" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contact, err := h.Directory.SetExempted(c.Request.Context(), id, *req.IsExempted)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) SetCategory(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req struct {
		Category string `json:"category" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contact, err := h.Directory.SetCategory(c.Request.Context(), id, req.Category)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

func (h *ContactHandler) DeleteContact(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Directory.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Contact deleted"})
}

func (h *ContactHandler) ExportContacts(c *gin.Context) {
	contacts, err := h.Directory.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=contacts.csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"ID", "Phone Number", "Name", "Category", "Exempted", "Created At"})
	for _, contact := range contacts {
		_ = w.Write([]string{
			strconv.FormatUint(uint64(contact.ID), 10),
			contact.PhoneNumber,
			contact.Name,
			contact.Category,
			strconv.FormatBool(contact.IsExempted),
			contact.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
}

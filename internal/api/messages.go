package api

import (
	"context"
	"net/http"

	"whatsapp-assistant/internal/models"

	"github.com/gin-gonic/gin"
)

type MessageStore interface {
	GetContact(ctx context.Context, id uint) (*models.Contact, error)
	MessagesByContact(ctx context.Context, contactID uint) ([]models.Message, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
}

type Decrypter interface {
	DecryptOrPlaceholder(encoded string) string
}

type OperatorSender interface {
	SendOperatorReply(ctx context.Context, phone, text string) (*models.Contact, error)
}

// MessageHandler serves conversation history and operator replies.
type MessageHandler struct {
	Store  MessageStore
	Cipher Decrypter
	Sender OperatorSender
}

func NewMessageHandler(store MessageStore, cipher Decrypter, sender OperatorSender) *MessageHandler {
	return &MessageHandler{Store: store, Cipher: cipher, Sender: sender}
}

func (h *MessageHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/messages/:contactId", h.GetMessages)
	rg.POST("/messages", h.CreateMessage)
	rg.POST("/send", h.SendMessage)
}

// GetMessages returns a contact's history oldest first with encrypted
// content replaced by its plaintext.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	id, err := idParam(c, "contactId")
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.Store.GetContact(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	messages, err := h.Store.MessagesByContact(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	for i := range messages {
		if messages[i].IsEncrypted && h.Cipher != nil {
			messages[i].Content = h.Cipher.DecryptOrPlaceholder(messages[i].Content)
			messages[i].IsEncrypted = false
		}
	}
	c.JSON(http.StatusOK, messages)
}

type CreateMessageRequest struct {
	ContactID     uint   `json:"contactId" binding:"required"`
	Content       string `json:"content" binding:"required"`
	IsFromContact bool   `json:"isFromContact"`
}

// CreateMessage records a message without sending it anywhere.
func (h *MessageHandler) CreateMessage(c *gin.Context) {
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := h.Store.GetContact(c.Request.Context(), req.ContactID); err != nil {
		respondError(c, err)
		return
	}
	msg := &models.Message{
		ContactID:     req.ContactID,
		Content:       req.Content,
		IsFromContact: req.IsFromContact,
	}
	if err := h.Store.CreateMessage(c.Request.Context(), msg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

type SendRequest struct {
	To      string `json:"to" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contact, err := h.Sender.SendOperatorReply(c.Request.Context(), req.To, req.Content)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send message: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Message sent", "contact": contact})
}

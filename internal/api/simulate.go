package api

import (
	"context"
	"net/http"
	"strings"

	"whatsapp-assistant/internal/automation"

	"github.com/gin-gonic/gin"
)

type MessageProcessor interface {
	ProcessIncomingMessage(ctx context.Context, in automation.Inbound) (*automation.Result, error)
}

// SimulateHandler runs a message through the router as if it had arrived
// from WhatsApp, without sending the reply to the contact.
type SimulateHandler struct {
	Processor MessageProcessor
}

func NewSimulateHandler(p MessageProcessor) *SimulateHandler {
	return &SimulateHandler{Processor: p}
}

func (h *SimulateHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/simulate/whatsapp", h.SimulateWhatsApp)
}

type SimulateRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Content     string `json:"content"`
}

func (h *SimulateHandler) SimulateWhatsApp(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.PhoneNumber) == "" || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone number and content are required"})
		return
	}

	result, err := h.Processor.ProcessIncomingMessage(c.Request.Context(), automation.Inbound{
		PhoneNumber: req.PhoneNumber,
		Content:     req.Content,
		Simulated:   true,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

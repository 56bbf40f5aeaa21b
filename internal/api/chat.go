package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"whatsapp-assistant/internal/llm"

	"github.com/gin-gonic/gin"
)

type Completer interface {
	Complete(ctx context.Context, history []llm.Turn) (string, error)
}

// ChatHandler lets an operator talk to the configured model directly,
// outside any contact conversation.
type ChatHandler struct {
	LLM Completer
	Now func() time.Time
}

func NewChatHandler(c Completer) *ChatHandler {
	return &ChatHandler{LLM: c, Now: time.Now}
}

func (h *ChatHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/chat", h.Chat)
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required and must be a string"})
		return
	}

	reply, err := h.LLM.Complete(c.Request.Context(), []llm.Turn{{Role: llm.RoleContact, Text: req.Message}})
	if err != nil {
		slog.Error("Operator chat completion failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to process chat message", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ChatResponse{Message: reply, Timestamp: h.Now().UTC()})
}

package webhook

import (
	"context"
	"log/slog"
	"net/http"

	"whatsapp-assistant/internal/automation"
	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/pkg/models"

	"github.com/gin-gonic/gin"
)

// MessageProcessor runs one inbound message through the assistant.
type MessageProcessor interface {
	ProcessIncomingMessage(ctx context.Context, in automation.Inbound) (*automation.Result, error)
}

type Handler struct {
	Config    *config.Config
	Processor MessageProcessor
	logger    *slog.Logger

	// dispatch runs fn off the request goroutine. Tests replace it to run
	// synchronously.
	dispatch func(fn func())
}

func NewHandler(cfg *config.Config, processor MessageProcessor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Config:    cfg,
		Processor: processor,
		logger:    logger.With("component", "webhook"),
		dispatch:  func(fn func()) { go fn() },
	}
}

func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "" || token == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	if mode == "subscribe" && h.Config.VerifyToken != "" && token == h.Config.VerifyToken {
		h.logger.Info("webhook verified")
		c.String(http.StatusOK, challenge)
		return
	}
	h.logger.Warn("webhook verification rejected", "mode", mode)
	c.Status(http.StatusForbidden)
}

// HandleMessage acknowledges the delivery immediately and processes every
// routable message in the background; WhatsApp redelivers on slow replies.
func (h *Handler) HandleMessage(c *gin.Context) {
	var payload models.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("invalid webhook payload", "error", err)
		c.Status(http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, message := range change.Value.Messages {
				body := message.Body()
				if body == "" {
					h.logger.Info("ignoring message", "type", message.Type, "from", message.From)
					continue
				}
				in := automation.Inbound{PhoneNumber: message.From, Content: body}
				h.dispatch(func() { h.process(in) })
			}
		}
	}

	c.Status(http.StatusOK)
}

func (h *Handler) process(in automation.Inbound) {
	if h.Processor == nil {
		return
	}
	// The request context ends with the HTTP response.
	if _, err := h.Processor.ProcessIncomingMessage(context.Background(), in); err != nil {
		h.logger.Error("processing webhook message", "from", in.PhoneNumber, "error", err)
	}
}

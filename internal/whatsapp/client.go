package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/metrics"

	"golang.org/x/time/rate"
)

var ErrNotConfigured = errors.New("whatsapp credentials not configured")

// Client sends replies through the WhatsApp Cloud API.
type Client struct {
	Config     *config.Config
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	burst := 1
	if cfg.SendRatePerSecond > 0 {
		limit = rate.Limit(cfg.SendRatePerSecond)
		burst = int(cfg.SendRatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Client{
		Config:     cfg,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger.With("component", "whatsapp"),
	}
}

// Configured reports whether outbound sends are possible.
func (c *Client) Configured() bool {
	return c.Config.WhatsAppToken != "" && c.Config.PhoneNumberID != ""
}

// --- Message Structures ---

type GenericMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	RecipientType    string   `json:"recipient_type,omitempty"`
	Text             *TextObj `json:"text,omitempty"`
}

type TextObj struct {
	Body       string `json:"body"`
	PreviewUrl bool   `json:"preview_url,omitempty"`
}

// SendResponse is the Graph API acknowledgement of a sent message.
type SendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// --- Helper Functions ---

func (c *Client) sendRequest(ctx context.Context, method, url string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.Config.WhatsAppToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return respBody, fmt.Errorf("API error: %s - %s", resp.Status, string(respBody))
	}

	return respBody, nil
}

// --- Messaging Methods ---

func (c *Client) SendRawMessage(ctx context.Context, msg GenericMessage) (*SendResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("send throttled: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", strings.TrimRight(c.Config.GraphAPIURL, "/"), c.Config.PhoneNumberID)
	raw, err := c.sendRequest(ctx, http.MethodPost, url, msg)
	if err != nil {
		metrics.OutboundSends.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.OutboundSends.WithLabelValues("sent").Inc()

	var out SendResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Warn("unexpected send response", "to", msg.To, "error", err)
	}
	return &out, nil
}

func (c *Client) SendMessage(ctx context.Context, to, body string) (*SendResponse, error) {
	msg := GenericMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text: &TextObj{
			Body: body,
		},
	}
	return c.SendRawMessage(ctx, msg)
}

// Send bounds the call with the configured send timeout.
func (c *Client) Send(ctx context.Context, to, body string) error {
	if c.Config.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Config.SendTimeout)
		defer cancel()
	}
	resp, err := c.SendMessage(ctx, to, body)
	if err != nil {
		return err
	}
	if len(resp.Messages) > 0 {
		c.logger.Debug("message sent", "to", to, "wamid", resp.Messages[0].ID)
	}
	return nil
}

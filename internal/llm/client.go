// Package llm talks to an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"whatsapp-assistant/internal/config"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var ErrNotConfigured = errors.New("llm client not configured")

// Roles of a conversation turn.
const (
	RoleContact   = "contact"
	RoleAssistant = "assistant"
)

type Turn struct {
	Role string
	Text string
}

type Client struct {
	client       openai.Client
	model        string
	timeout      time.Duration
	systemPrompt string
	enabled      bool
}

func NewClient(cfg *config.Config) *Client {
	c := &Client{
		model:   cfg.LLMModel,
		timeout: cfg.LLMTimeout,
		enabled: cfg.LLMAPIKey != "",
	}
	if !c.enabled {
		slog.Warn("LLM API key not set, free-form fallback disabled")
		return c
	}
	c.client = openai.NewClient(
		option.WithAPIKey(cfg.LLMAPIKey),
		option.WithBaseURL(cfg.LLMBaseURL),
		option.WithMaxRetries(0),
	)
	return c
}

// WithSystemPrompt sets the instruction prepended to every completion.
func (c *Client) WithSystemPrompt(prompt string) *Client {
	c.systemPrompt = prompt
	return c
}

func (c *Client) Enabled() bool {
	return c != nil && c.enabled
}

// Complete sends history, oldest first, and returns the assistant reply.
func (c *Client) Complete(ctx context.Context, history []Turn) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if c.systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(c.systemPrompt))
	}
	for _, turn := range history {
		switch turn.Role {
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.Text))
		default:
			messages = append(messages, openai.UserMessage(turn.Text))
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(0.7),
		MaxTokens:   openai.Int(1000),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", errors.New("chat completion returned empty content")
	}
	return reply, nil
}

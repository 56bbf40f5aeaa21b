package automation

import (
	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/ws"
)

// Position is the menu node last presented to a contact. The zero value is
// the root menu.
type Position uint

const Root Position = 0

func (p Position) IsRoot() bool { return p == Root }

type OutcomeKind string

const (
	OutcomeFallback OutcomeKind = "fallback"
	OutcomeSubmenu  OutcomeKind = "submenu"
	OutcomeLeaf     OutcomeKind = "leaf"
	OutcomeInvalid  OutcomeKind = "invalid"
	OutcomeHandoff  OutcomeKind = "handoff"
)

// NavRequest is one contact message as the navigator sees it.
type NavRequest struct {
	Text          string
	AssistantName string
	ContactName   string
	FormLink      string
}

// Outcome is the result of one navigator transition.
type Outcome struct {
	Kind                  OutcomeKind
	Text                  string
	Next                  Position
	Intent                Intent
	EstimatedResponseTime string
	FormLink              string
	// Healed is set when the stored position no longer pointed at a menu
	// node with children and was treated as Root.
	Healed bool
}

// Inbound is a message entering the router.
type Inbound struct {
	PhoneNumber string
	Content     string
	// Origin is the operator connection that simulated the message, if any.
	Origin *ws.Client
	// Simulated messages are never sent through the WhatsApp transport.
	Simulated bool
}

// Result summarises what the router did with one inbound message.
type Result struct {
	Contact               *models.Contact `json:"contact"`
	ContactCreated        bool            `json:"contactCreated"`
	Exempted              bool            `json:"exempted"`
	AssistantInactive     bool            `json:"assistantInactive"`
	Outcome               OutcomeKind     `json:"outcome,omitempty"`
	Reply                 string          `json:"reply,omitempty"`
	EstimatedResponseTime string          `json:"estimatedResponseTime,omitempty"`
	FormLink              string          `json:"formLink,omitempty"`
	Position              Position        `json:"position"`
}

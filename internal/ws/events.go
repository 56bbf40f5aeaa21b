package ws

import "whatsapp-assistant/internal/models"

// Event types carried over the operator socket.
const (
	TypeAIResponse      = "ai_response"
	TypeExemptedMessage = "exempted_message"
	TypeMessageUpdate   = "message_update"
	TypeError           = "error"

	// TypeWhatsAppMessage is the only frame operators send to the server.
	TypeWhatsAppMessage = "whatsapp_message"
)

// AIResponseEvent is sent to the operator that simulated the inbound message.
type AIResponseEvent struct {
	Type                  string `json:"type"`
	PhoneNumber           string `json:"phoneNumber"`
	Content               string `json:"content"`
	EstimatedResponseTime string `json:"estimatedResponseTime,omitempty"`
	FormLink              string `json:"formLink,omitempty"`
	IsAutomatedMessage    bool   `json:"isAutomatedMessage"`
}

type ExemptedMessageEvent struct {
	Type        string `json:"type"`
	ContactID   uint   `json:"contactId"`
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

// MessageUpdateEvent carries a full exchange to every other operator.
type MessageUpdateEvent struct {
	Type                  string         `json:"type"`
	Contact               models.Contact `json:"contact"`
	IncomingMessage       string         `json:"incomingMessage"`
	AIResponse            string         `json:"aiResponse"`
	EstimatedResponseTime string         `json:"estimatedResponseTime,omitempty"`
	FormLink              string         `json:"formLink,omitempty"`
	IsAutomatedMessage    bool           `json:"isAutomatedMessage"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: message}
}

// InboundFrame is what an operator client sends to simulate a contact.
type InboundFrame struct {
	Type        string `json:"type"`
	PhoneNumber string `json:"phoneNumber"`
	Content     string `json:"content"`
}

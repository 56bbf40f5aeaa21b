package operator

import (
	"encoding/json"
	"fmt"
	"strings"

	"whatsapp-assistant/internal/ws"
)

// Describe decodes a hub frame and renders it as a short human-readable
// block. It returns the event type alongside.
func Describe(data []byte) (string, string) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", fmt.Sprintf("unreadable frame: %s", data)
	}

	var b strings.Builder
	switch head.Type {
	case ws.TypeAIResponse:
		var ev ws.AIResponseEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			break
		}
		fmt.Fprintf(&b, "[reply to %s]\n%s", ev.PhoneNumber, ev.Content)
		writeExtras(&b, ev.EstimatedResponseTime, ev.FormLink)
		return head.Type, b.String()
	case ws.TypeMessageUpdate:
		var ev ws.MessageUpdateEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			break
		}
		who := ev.Contact.PhoneNumber
		if ev.Contact.Name != "" && ev.Contact.Name != who {
			who = fmt.Sprintf("%s (%s)", ev.Contact.Name, who)
		}
		if ev.IncomingMessage != "" {
			fmt.Fprintf(&b, "[%s] %s\n", who, ev.IncomingMessage)
		}
		sender := "operator"
		if ev.IsAutomatedMessage {
			sender = "assistant"
		}
		fmt.Fprintf(&b, "[%s -> %s] %s", sender, who, ev.AIResponse)
		writeExtras(&b, ev.EstimatedResponseTime, ev.FormLink)
		return head.Type, b.String()
	case ws.TypeExemptedMessage:
		var ev ws.ExemptedMessageEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			break
		}
		return head.Type, fmt.Sprintf("[exempted %s] %s", ev.PhoneNumber, ev.Message)
	case ws.TypeError:
		var ev ws.ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			break
		}
		return head.Type, "[error] " + ev.Message
	}
	return head.Type, string(data)
}

func writeExtras(b *strings.Builder, eta, form string) {
	if eta != "" {
		fmt.Fprintf(b, "\n  eta: %s", eta)
	}
	if form != "" {
		fmt.Fprintf(b, "\n  form: %s", form)
	}
}

package automation

import (
	"context"
	"encoding/json"

	"whatsapp-assistant/internal/ws"
)

// HandleSocketFrame is installed on the hub. A whatsapp_message frame is
// routed as a simulated message with the sending connection as origin; other
// frames are ignored.
func (e *Engine) HandleSocketFrame(c *ws.Client, data []byte) {
	var frame ws.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		e.logger.Warn("unreadable socket frame", "error", err)
		if c != nil {
			e.hub.Send(c, ws.NewErrorEvent("Invalid message format"))
		}
		return
	}
	if frame.Type != ws.TypeWhatsAppMessage {
		e.logger.Debug("ignoring socket frame", "type", frame.Type)
		return
	}

	// Errors are already reported to operators by the router.
	_, _ = e.ProcessIncomingMessage(context.Background(), Inbound{
		PhoneNumber: frame.PhoneNumber,
		Content:     frame.Content,
		Origin:      c,
		Simulated:   true,
	})
}

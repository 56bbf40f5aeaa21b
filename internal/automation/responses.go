package automation

import "fmt"

// HandoffResponseTime is quoted when a contact asks for a human.
const HandoffResponseTime = "Within 2 business hours"

// Preamble is the intent-specific greeting shown above the root menu.
type Preamble struct {
	Text                  string
	EstimatedResponseTime string
	WantsForm             bool
}

// Respond builds the greeting for intent. contactName is omitted from the
// greeting when empty.
func Respond(intent Intent, assistantName, contactName string) Preamble {
	greeting := ""
	if contactName != "" {
		greeting = fmt.Sprintf("Hi %s! ", contactName)
	}
	disclosure := fmt.Sprintf("[This is an automated response from %s. A team member will respond as soon as available.]", assistantName)

	switch intent {
	case IntentBusiness:
		return Preamble{
			Text:                  greeting + disclosure + "\n\nI'd be happy to help with your business inquiry. How can I assist you today?",
			EstimatedResponseTime: "A team member will respond within 2 business hours.",
		}
	case IntentWork:
		return Preamble{
			Text:                  greeting + disclosure + "\n\nThank you for your work-related inquiry. What specific information are you looking for?",
			EstimatedResponseTime: "Our team reviews all work inquiries within 24 hours.",
		}
	case IntentPersonal:
		return Preamble{
			Text:      greeting + disclosure + "\n\nThank you for your personal inquiry! To better assist you, could you please fill out this quick form about your request?",
			WantsForm: true,
		}
	case IntentStranger:
		return Preamble{
			Text: "Hello! " + disclosure + fmt.Sprintf("\n\nThanks for reaching out. I'm %s, the AI assistant for this business. To help you better, could you please let me know what brings you here today?", assistantName),
		}
	case IntentInactive:
		return Preamble{
			Text: greeting + "Great to hear from you again! " + disclosure + "\n\nIt's been a while since we last connected. How can we assist you today?",
		}
	default:
		return Preamble{
			Text: fmt.Sprintf("👋 %s%s\n\nI'm %s, your AI assistant. How can I help you today?", greeting, disclosure, assistantName),
		}
	}
}

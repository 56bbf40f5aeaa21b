package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"whatsapp-assistant/internal/llm"
	"whatsapp-assistant/internal/logging"
	"whatsapp-assistant/internal/metrics"
	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/settings"
	"whatsapp-assistant/internal/ws"
)

// historyLimit bounds the stored messages handed to the LLM.
const historyLimit = 10

var ErrEmptyPhoneNumber = errors.New("phone number is required")

type ContactResolver interface {
	Resolve(ctx context.Context, phone string) (*models.Contact, bool, error)
}

type SettingsReader interface {
	Bool(ctx context.Context, key string) (bool, error)
	String(ctx context.Context, key, fallback string) (string, error)
}

type PositionStore interface {
	GetPosition(ctx context.Context, contactID uint) (uint, bool, error)
	SavePosition(ctx context.Context, contactID, menuOptionID uint) error
	ClearPosition(ctx context.Context, contactID uint) error
}

type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	RecentMessages(ctx context.Context, contactID uint, limit int) ([]models.Message, error)
}

// Transport delivers a reply to a contact.
type Transport interface {
	Send(ctx context.Context, phone, text string) error
}

type Completer interface {
	Enabled() bool
	Complete(ctx context.Context, history []llm.Turn) (string, error)
}

type Broadcaster interface {
	Broadcast(event any, exclude *ws.Client)
	Send(c *ws.Client, event any)
}

type Cipher interface {
	Encrypt(plaintext string) (string, error)
	DecryptOrPlaceholder(encoded string) string
}

// Deps are the collaborators of an Engine. LLM may be nil.
type Deps struct {
	Contacts  ContactResolver
	Settings  SettingsReader
	Positions PositionStore
	Messages  MessageStore
	Menu      MenuSource
	Transport Transport
	LLM       Completer
	Hub       Broadcaster
	Cipher    Cipher
	Logger    *slog.Logger
}

// Engine is the conversation router: it turns one inbound message into
// persisted records, a reply and operator events.
type Engine struct {
	contacts  ContactResolver
	settings  SettingsReader
	positions PositionStore
	messages  MessageStore
	navigator *Navigator
	transport Transport
	llm       Completer
	hub       Broadcaster
	cipher    Cipher
	locks     *keyedMutex
	logger    *slog.Logger
}

func NewEngine(d Deps) *Engine {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		contacts:  d.Contacts,
		settings:  d.Settings,
		positions: d.Positions,
		messages:  d.Messages,
		navigator: NewNavigator(d.Menu, NewKeywordClassifier()),
		transport: d.Transport,
		llm:       d.LLM,
		hub:       d.Hub,
		cipher:    d.Cipher,
		locks:     newKeyedMutex(),
		logger:    logger.With("component", "router"),
	}
}

// ProcessIncomingMessage routes one inbound message. Messages from the same
// phone number are processed one at a time. On failure the error is logged,
// an error event goes to every operator and nothing is sent to the contact.
func (e *Engine) ProcessIncomingMessage(ctx context.Context, in Inbound) (*Result, error) {
	phone := strings.TrimSpace(in.PhoneNumber)
	if phone == "" {
		return nil, ErrEmptyPhoneNumber
	}
	unlock := e.locks.Lock(phone)
	defer unlock()

	log := logging.FromContext(ctx, e.logger).With("phone", phone, "simulated", in.Simulated)
	res, err := e.process(ctx, log, phone, in)
	if err != nil {
		metrics.MessagesProcessed.WithLabelValues(metrics.OutcomeError).Inc()
		log.Error("process inbound message", "error", err)
		e.hub.Broadcast(ws.NewErrorEvent(fmt.Sprintf("Error processing message from %s: %v", phone, err)), nil)
		return res, err
	}
	return res, nil
}

func (e *Engine) process(ctx context.Context, log *slog.Logger, phone string, in Inbound) (*Result, error) {
	contact, created, err := e.contacts.Resolve(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("resolve contact: %w", err)
	}
	res := &Result{Contact: contact, ContactCreated: created}
	log = log.With("contact_id", contact.ID)

	storeHistory, err := e.settings.Bool(ctx, settings.KeyStoreConversationHistory)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", settings.KeyStoreConversationHistory, err)
	}
	if storeHistory {
		inbound := &models.Message{ContactID: contact.ID, Content: in.Content, IsFromContact: true}
		if err := e.messages.CreateMessage(ctx, inbound); err != nil {
			return res, fmt.Errorf("store inbound message: %w", err)
		}
	}

	if contact.IsExempted {
		res.Exempted = true
		metrics.MessagesProcessed.WithLabelValues(metrics.OutcomeExempted).Inc()
		log.Info("message from exempted contact")
		e.hub.Broadcast(ws.ExemptedMessageEvent{
			Type:        ws.TypeExemptedMessage,
			ContactID:   contact.ID,
			PhoneNumber: contact.PhoneNumber,
			Message:     in.Content,
		}, nil)
		return res, nil
	}

	active, err := e.settings.Bool(ctx, settings.KeyAIAssistantActive)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", settings.KeyAIAssistantActive, err)
	}
	if !active {
		res.AssistantInactive = true
		metrics.MessagesProcessed.WithLabelValues(metrics.OutcomeInactive).Inc()
		return res, nil
	}

	outcome, err := e.navigate(ctx, contact, in.Content)
	if err != nil {
		return res, err
	}
	if err := e.savePosition(ctx, contact.ID, outcome.Next); err != nil {
		return res, err
	}
	res.Outcome = outcome.Kind
	res.Position = outcome.Next
	res.EstimatedResponseTime = outcome.EstimatedResponseTime
	res.FormLink = outcome.FormLink

	reply := outcome.Text
	label := outcomeLabel(outcome.Kind)
	if outcome.Kind == OutcomeFallback {
		useLLM, err := e.llmFallbackEnabled(ctx)
		if err != nil {
			return res, err
		}
		if useLLM {
			reply, err = e.complete(ctx, contact.ID, in.Content, storeHistory)
			if err != nil {
				return res, err
			}
			label = metrics.OutcomeLLM
			res.EstimatedResponseTime = ""
			res.FormLink = ""
		}
	}
	res.Reply = reply

	if storeHistory {
		if err := e.storeReply(ctx, contact.ID, reply); err != nil {
			return res, err
		}
	}

	if !in.Simulated && e.transport != nil {
		if err := e.transport.Send(ctx, phone, reply); err != nil {
			return res, fmt.Errorf("send reply: %w", err)
		}
	}

	metrics.MessagesProcessed.WithLabelValues(label).Inc()
	log.Info("message routed", "outcome", outcome.Kind, "position", outcome.Next, "healed", outcome.Healed)

	if in.Origin != nil {
		e.hub.Send(in.Origin, ws.AIResponseEvent{
			Type:                  ws.TypeAIResponse,
			PhoneNumber:           phone,
			Content:               reply,
			EstimatedResponseTime: res.EstimatedResponseTime,
			FormLink:              res.FormLink,
			IsAutomatedMessage:    true,
		})
	}
	e.hub.Broadcast(ws.MessageUpdateEvent{
		Type:                  ws.TypeMessageUpdate,
		Contact:               *contact,
		IncomingMessage:       in.Content,
		AIResponse:            reply,
		EstimatedResponseTime: res.EstimatedResponseTime,
		FormLink:              res.FormLink,
		IsAutomatedMessage:    true,
	}, in.Origin)

	return res, nil
}

func (e *Engine) navigate(ctx context.Context, contact *models.Contact, content string) (Outcome, error) {
	stored, ok, err := e.positions.GetPosition(ctx, contact.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load position: %w", err)
	}
	pos := Root
	if ok {
		pos = Position(stored)
	}

	assistantName, err := e.settings.String(ctx, settings.KeyAssistantName, settings.DefaultAssistantName)
	if err != nil {
		return Outcome{}, fmt.Errorf("read %s: %w", settings.KeyAssistantName, err)
	}
	formLink, err := e.settings.String(ctx, settings.KeyFormLink, "")
	if err != nil {
		return Outcome{}, fmt.Errorf("read %s: %w", settings.KeyFormLink, err)
	}

	contactName := contact.Name
	if contactName == contact.PhoneNumber {
		contactName = ""
	}
	return e.navigator.Step(ctx, pos, NavRequest{
		Text:          content,
		AssistantName: assistantName,
		ContactName:   contactName,
		FormLink:      formLink,
	})
}

func (e *Engine) savePosition(ctx context.Context, contactID uint, next Position) error {
	var err error
	if next.IsRoot() {
		err = e.positions.ClearPosition(ctx, contactID)
	} else {
		err = e.positions.SavePosition(ctx, contactID, uint(next))
	}
	if err != nil {
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}

func (e *Engine) llmFallbackEnabled(ctx context.Context) (bool, error) {
	if e.llm == nil || !e.llm.Enabled() {
		return false, nil
	}
	on, err := e.settings.Bool(ctx, settings.KeyLLMFallbackEnabled)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", settings.KeyLLMFallbackEnabled, err)
	}
	return on, nil
}

// complete asks the LLM for a reply. When history is stored the inbound
// message is already the newest stored turn.
func (e *Engine) complete(ctx context.Context, contactID uint, content string, stored bool) (string, error) {
	var turns []llm.Turn
	if stored {
		recent, err := e.messages.RecentMessages(ctx, contactID, historyLimit)
		if err != nil {
			return "", fmt.Errorf("load history: %w", err)
		}
		for _, m := range recent {
			text := m.Content
			if m.IsEncrypted {
				text = e.cipher.DecryptOrPlaceholder(text)
			}
			role := llm.RoleAssistant
			if m.IsFromContact {
				role = llm.RoleContact
			}
			turns = append(turns, llm.Turn{Role: role, Text: text})
		}
	}
	if !stored || len(turns) == 0 {
		turns = append(turns, llm.Turn{Role: llm.RoleContact, Text: content})
	}

	reply, err := e.llm.Complete(ctx, turns)
	if err != nil {
		metrics.LLMRequests.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("llm completion: %w", err)
	}
	metrics.LLMRequests.WithLabelValues("ok").Inc()
	return reply, nil
}

// storeReply persists an outgoing message, sealed when encryption is on.
func (e *Engine) storeReply(ctx context.Context, contactID uint, reply string) error {
	encrypt, err := e.settings.Bool(ctx, settings.KeyEncryptionEnabled)
	if err != nil {
		return fmt.Errorf("read %s: %w", settings.KeyEncryptionEnabled, err)
	}
	msg := &models.Message{ContactID: contactID, Content: reply}
	if encrypt {
		sealed, err := e.cipher.Encrypt(reply)
		if err != nil {
			return fmt.Errorf("encrypt reply: %w", err)
		}
		msg.Content = sealed
		msg.IsEncrypted = true
	}
	if err := e.messages.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("store reply: %w", err)
	}
	return nil
}

// SendOperatorReply delivers a message typed by a human operator and records
// it as an outgoing message.
func (e *Engine) SendOperatorReply(ctx context.Context, phone, text string) (*models.Contact, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, ErrEmptyPhoneNumber
	}
	unlock := e.locks.Lock(phone)
	defer unlock()

	contact, _, err := e.contacts.Resolve(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("resolve contact: %w", err)
	}
	if e.transport != nil {
		if err := e.transport.Send(ctx, phone, text); err != nil {
			return contact, fmt.Errorf("send reply: %w", err)
		}
	}

	storeHistory, err := e.settings.Bool(ctx, settings.KeyStoreConversationHistory)
	if err != nil {
		return contact, fmt.Errorf("read %s: %w", settings.KeyStoreConversationHistory, err)
	}
	if storeHistory {
		if err := e.storeReply(ctx, contact.ID, text); err != nil {
			return contact, err
		}
	}

	e.hub.Broadcast(ws.MessageUpdateEvent{
		Type:       ws.TypeMessageUpdate,
		Contact:    *contact,
		AIResponse: text,
	}, nil)
	return contact, nil
}

func outcomeLabel(kind OutcomeKind) string {
	switch kind {
	case OutcomeFallback:
		return metrics.OutcomeFallback
	case OutcomeHandoff:
		return metrics.OutcomeHandoff
	default:
		return metrics.OutcomeMenu
	}
}

package automation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/directory"
	"whatsapp-assistant/internal/encryption"
	"whatsapp-assistant/internal/llm"
	"whatsapp-assistant/internal/menu"
	"whatsapp-assistant/internal/models"
	"whatsapp-assistant/internal/settings"
	"whatsapp-assistant/internal/ws"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentEvent struct {
	event  any
	client *ws.Client
}

type fakeHub struct {
	mu         sync.Mutex
	broadcasts []sentEvent
	direct     []sentEvent
}

func (h *fakeHub) Broadcast(event any, exclude *ws.Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts = append(h.broadcasts, sentEvent{event: event, client: exclude})
}

func (h *fakeHub) Send(c *ws.Client, event any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.direct = append(h.direct, sentEvent{event: event, client: c})
}

func (h *fakeHub) broadcastsOf(typ string) []sentEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []sentEvent
	for _, b := range h.broadcasts {
		var t string
		switch ev := b.event.(type) {
		case ws.MessageUpdateEvent:
			t = ev.Type
		case ws.ExemptedMessageEvent:
			t = ev.Type
		case ws.ErrorEvent:
			t = ev.Type
		}
		if t == typ {
			out = append(out, b)
		}
	}
	return out
}

type sentMessage struct {
	phone string
	text  string
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeTransport) Send(ctx context.Context, phone, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{phone, text})
	return nil
}

type fakeLLM struct {
	enabled bool
	reply   string
	err     error
	got     []llm.Turn
}

func (f *fakeLLM) Enabled() bool { return f.enabled }

func (f *fakeLLM) Complete(ctx context.Context, history []llm.Turn) (string, error) {
	f.got = history
	return f.reply, f.err
}

type testEnv struct {
	engine    *Engine
	store     *database.Store
	settings  *settings.Settings
	transport *fakeTransport
	hub       *fakeHub
	llm       *fakeLLM
	cipher    *encryption.Cipher
	business  *models.MenuOption
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(&config.Config{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "router.db")})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	store := database.NewStore(db)

	business := &models.MenuOption{Title: "Business Inquiries", Order: 1, ResponseText: "What would you like to know?"}
	require.NoError(t, store.CreateMenuOption(ctx, business))
	for _, o := range []*models.MenuOption{
		{Title: "Services", Order: 1, ResponseText: "We build software.", ParentID: &business.ID},
		{Title: "Pricing", Order: 2, ResponseText: "Pricing depends on scope.", ParentID: &business.ID},
		{Title: "Work-Related", Order: 2, ResponseText: "We will get back to you."},
		{Title: "Personal Contact", Order: 3, ResponseText: "Thanks!", RequiresForm: true},
	} {
		require.NoError(t, store.CreateMenuOption(ctx, o))
	}

	s := settings.New(store)
	_, err = s.SetBool(ctx, settings.KeyAIAssistantActive, true)
	require.NoError(t, err)
	_, err = s.SetBool(ctx, settings.KeyStoreConversationHistory, true)
	require.NoError(t, err)
	_, err = s.SetBool(ctx, settings.KeyEncryptionEnabled, false)
	require.NoError(t, err)

	cipher, err := encryption.New("test-secret")
	require.NoError(t, err)

	env := &testEnv{
		store:     store,
		settings:  s,
		transport: &fakeTransport{},
		hub:       &fakeHub{},
		llm:       &fakeLLM{},
		cipher:    cipher,
		business:  business,
	}
	env.engine = NewEngine(Deps{
		Contacts:  directory.New(store, nil),
		Settings:  s,
		Positions: store,
		Messages:  store,
		Menu:      menu.NewCatalog(store),
		Transport: env.transport,
		LLM:       env.llm,
		Hub:       env.hub,
		Cipher:    cipher,
	})
	return env
}

func (env *testEnv) messages(t *testing.T, contactID uint) []models.Message {
	t.Helper()
	msgs, err := env.store.MessagesByContact(context.Background(), contactID)
	require.NoError(t, err)
	return msgs
}

func (env *testEnv) position(t *testing.T, contactID uint) (uint, bool) {
	t.Helper()
	id, ok, err := env.store.GetPosition(context.Background(), contactID)
	require.NoError(t, err)
	return id, ok
}

func TestUnknownContactGetsRootMenu(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.engine.ProcessIncomingMessage(context.Background(), Inbound{PhoneNumber: "+1000", Content: "hello"})
	require.NoError(t, err)

	assert.True(t, res.ContactCreated)
	assert.Equal(t, models.CategoryUncategorized, res.Contact.Category)
	assert.Equal(t, "+1000", res.Contact.Name)
	assert.Contains(t, res.Reply, "1. Business Inquiries\n2. Work-Related\n3. Personal Contact")

	msgs := env.messages(t, res.Contact.ID)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsFromContact)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.False(t, msgs[1].IsFromContact)
	assert.Equal(t, res.Reply, msgs[1].Content)

	require.Len(t, env.transport.sent, 1)
	assert.Equal(t, sentMessage{"+1000", res.Reply}, env.transport.sent[0])

	updates := env.hub.broadcastsOf(ws.TypeMessageUpdate)
	require.Len(t, updates, 1)
	assert.Nil(t, updates[0].client)
	ev := updates[0].event.(ws.MessageUpdateEvent)
	assert.Equal(t, "hello", ev.IncomingMessage)
	assert.Equal(t, res.Reply, ev.AIResponse)
	assert.True(t, ev.IsAutomatedMessage)
}

func TestExemptedContactGetsNoReply(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contact := &models.Contact{Name: "Boss", PhoneNumber: "+2000", Category: models.CategoryWork, IsExempted: true}
	require.NoError(t, env.store.CreateContact(ctx, contact))

	res, err := env.engine.ProcessIncomingMessage(ctx, Inbound{PhoneNumber: "+2000", Content: "help"})
	require.NoError(t, err)
	assert.True(t, res.Exempted)
	assert.Empty(t, res.Reply)

	msgs := env.messages(t, contact.ID)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsFromContact)
	assert.Empty(t, env.transport.sent)

	exempted := env.hub.broadcastsOf(ws.TypeExemptedMessage)
	require.Len(t, exempted, 1)
	ev := exempted[0].event.(ws.ExemptedMessageEvent)
	assert.Equal(t, "help", ev.Message)
	assert.Equal(t, contact.ID, ev.ContactID)
	assert.Empty(t, env.hub.broadcastsOf(ws.TypeMessageUpdate))
}

func TestInactiveAssistantStaysSilent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.settings.SetBool(ctx, settings.KeyAIAssistantActive, false)
	require.NoError(t, err)

	res, err := env.engine.ProcessIncomingMessage(ctx, Inbound{PhoneNumber: "+3000", Content: "hello"})
	require.NoError(t, err)
	assert.True(t, res.AssistantInactive)

	assert.Len(t, env.messages(t, res.Contact.ID), 1)
	assert.Empty(t, env.transport.sent)
	assert.Empty(t, env.hub.broadcasts)
}

func TestHistoryDisabledStoresNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.settings.SetBool(ctx, settings.KeyStoreConversationHistory, false)
	require.NoError(t, err)

	res, err := env.engine.ProcessIncomingMessage(ctx, Inbound{PhoneNumber: "+3100", Content: "hello"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Reply)
	assert.Empty(t, env.messages(t, res.Contact.ID))
	assert.Len(t, env.transport.sent, 1)
}

func TestMenuTraversalPersistsPosition(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	send := func(text string) *Result {
		res, err := env.engine.ProcessIncomingMessage(ctx, Inbound{PhoneNumber: "+4000", Content: text})
		require.NoError(t, err)
		return res
	}

	res := send("1")
	assert.Contains(t, res.Reply, "a. Services\nb. Pricing")
	pos, ok := env.position(t, res.Contact.ID)
	require.True(t, ok)
	assert.Equal(t, env.business.ID, pos)

	res = send("c")
	assert.Contains(t, res.Reply, invalidSelectionText)
	pos, ok = env.position(t, res.Contact.ID)
	require.True(t, ok)
	assert.Equal(t, env.business.ID, pos)

	res = send("b")
	assert.Equal(t, "Pricing depends on scope.", res.Reply)
	_, ok = env.position(t, res.Contact.ID)
	assert.False(t, ok)
}

func TestStaleStoredPositionHeals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	contact := &models.Contact{Name: "+4100", PhoneNumber: "+4100"}
	require.NoError(t, env.store.CreateContact(ctx, contact))
	require.NoError(t, env.store.SavePosition(ctx, contact.ID, 9999))

	res, err := env.engine.ProcessIncomingMessage(ctx, Inbound{PhoneNumber: "+4100", Content: "a"})
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "a. Services")
	pos, ok := env.position(t, contact.ID)
	require.True(t, ok)
	assert.Equal(t, env.business.ID, pos)
}

func TestFormLinkFromSettings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.settings.Set(ctx, settings.KeyFormLink, "https://example.com/form")
	require.NoError(t, err)

	res, err := env.engine.ProcessIncomingMessage(ctx, Inbound{PhoneNumber: "+4200", Content: "3"})
	require.NoError(t, err)
	assert.Equal(t, "Thanks! Please fill out this form: https://example.com/form", res.Reply)
	assert.Equal(t, "https://example.com/form", res.FormLink)

	ev := env.hub.broadcastsOf(ws.TypeMessageUpdate)[0].event.(ws.MessageUpdateEvent)
	assert.Equal(t, "https://example.com/form", ev.FormLink)
}

func TestEncryptedReplyIsStoredSealed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.settings.SetBool(ctx, settings.KeyEncryptionEnabled, true)
	require.NoError(t, err)

	res, err := env.engine.ProcessIncomingMessage(ctx, Inbound{PhoneNumber: "+5000", Content: "2"})
	require.NoError(t, err)

	msgs := env.messages(t, res.Contact.ID)
	require.Len(t, msgs, 2)
	assert.False(t, msgs[0].IsEncrypted)
	assert.True(t, msgs[1].IsEncrypted)
	assert.NotEqual(t, res.Reply, msgs[1].Content)
	assert.Equal(t, res.Reply, env.cipher.DecryptOrPlaceholder(msgs[1].Content))

	require.Len(t, env.transport.sent, 1)
	assert.Equal(t, "We will get back to you.", env.transport.sent[0].text)
}

func TestSendFailureReportsError(t *testing.T) {
	env := newTestEnv(t)
	env.transport.err = errors.New("graph api down")

	res, err := env.engine.ProcessIncomingMessage(context.Background(), Inbound{PhoneNumber: "+6000", Content: "hello"})
	require.Error(t, err)
	require.NotNil(t, res)

	msgs := env.messages(t, res.Contact.ID)
	require.NotEmpty(t, msgs)
	assert.True(t, msgs[0].IsFromContact)

	errs := env.hub.broadcastsOf(ws.TypeError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].event.(ws.ErrorEvent).Message, "+6000")
	assert.Empty(t, env.hub.broadcastsOf(ws.TypeMessageUpdate))
}

func TestSimulatedMessageRepliesToOrigin(t *testing.T) {
	env := newTestEnv(t)
	origin := &ws.Client{ID: "operator-1"}

	res, err := env.engine.ProcessIncomingMessage(context.Background(), Inbound{
		PhoneNumber: "+7000",
		Content:     "h",
		Origin:      origin,
		Simulated:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeHandoff, res.Outcome)
	assert.Empty(t, env.transport.sent)

	require.Len(t, env.hub.direct, 1)
	assert.Same(t, origin, env.hub.direct[0].client)
	ai := env.hub.direct[0].event.(ws.AIResponseEvent)
	assert.Equal(t, ws.TypeAIResponse, ai.Type)
	assert.Equal(t, "+7000", ai.PhoneNumber)
	assert.Equal(t, HandoffResponseTime, ai.EstimatedResponseTime)
	assert.True(t, ai.IsAutomatedMessage)

	updates := env.hub.broadcastsOf(ws.TypeMessageUpdate)
	require.Len(t, updates, 1)
	assert.Same(t, origin, updates[0].client)
}

func TestLLMFallback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.llm.enabled = true
	env.llm.reply = "Here is a joke."

	// setting off: menu fallback
	res, err := env.engine.ProcessIncomingMessage(ctx, Inbound{PhoneNumber: "+8000", Content: "tell me a joke"})
	require.NoError(t, err)
	assert.Contains(t, res.Reply, "1. Business Inquiries")
	assert.Nil(t, env.llm.got)

	_, err = env.settings.SetBool(ctx, settings.KeyLLMFallbackEnabled, true)
	require.NoError(t, err)

	res, err = env.engine.ProcessIncomingMessage(ctx, Inbound{PhoneNumber: "+8000", Content: "another one"})
	require.NoError(t, err)
	assert.Equal(t, "Here is a joke.", res.Reply)
	assert.Equal(t, OutcomeFallback, res.Outcome)

	require.Len(t, env.llm.got, 3)
	assert.Equal(t, llm.Turn{Role: llm.RoleContact, Text: "tell me a joke"}, env.llm.got[0])
	assert.Equal(t, llm.RoleAssistant, env.llm.got[1].Role)
	assert.Equal(t, llm.Turn{Role: llm.RoleContact, Text: "another one"}, env.llm.got[2])

	// menu selections never reach the LLM
	env.llm.got = nil
	res, err = env.engine.ProcessIncomingMessage(ctx, Inbound{PhoneNumber: "+8000", Content: "2"})
	require.NoError(t, err)
	assert.Equal(t, "We will get back to you.", res.Reply)
	assert.Nil(t, env.llm.got)
}

func TestLLMFailureAbortsReply(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.llm.enabled = true
	env.llm.err = errors.New("timeout")
	_, err := env.settings.SetBool(ctx, settings.KeyLLMFallbackEnabled, true)
	require.NoError(t, err)

	res, err := env.engine.ProcessIncomingMessage(ctx, Inbound{PhoneNumber: "+8100", Content: "hello"})
	require.Error(t, err)
	assert.Len(t, env.messages(t, res.Contact.ID), 1)
	assert.Empty(t, env.transport.sent)
	assert.Len(t, env.hub.broadcastsOf(ws.TypeError), 1)
}

func TestConcurrentMessagesFromOneContact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.engine.ProcessIncomingMessage(ctx, Inbound{PhoneNumber: "+9000", Content: "hello"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	contacts, err := env.store.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Len(t, env.messages(t, contacts[0].ID), 2*n)
	assert.Zero(t, env.engine.locks.size())
}

func TestEmptyPhoneNumber(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.engine.ProcessIncomingMessage(context.Background(), Inbound{PhoneNumber: "  ", Content: "hi"})
	assert.ErrorIs(t, err, ErrEmptyPhoneNumber)
}

func TestSendOperatorReply(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	contact, err := env.engine.SendOperatorReply(ctx, "+9100", "Hi, this is a human.")
	require.NoError(t, err)
	require.Len(t, env.transport.sent, 1)
	assert.Equal(t, "Hi, this is a human.", env.transport.sent[0].text)

	msgs := env.messages(t, contact.ID)
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].IsFromContact)

	ev := env.hub.broadcastsOf(ws.TypeMessageUpdate)[0].event.(ws.MessageUpdateEvent)
	assert.False(t, ev.IsAutomatedMessage)

	env.transport.err = fmt.Errorf("boom")
	_, err = env.engine.SendOperatorReply(ctx, "+9100", "again")
	require.Error(t, err)
	assert.Len(t, env.messages(t, contact.ID), 1)
}

package automation

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/menu"
	"whatsapp-assistant/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memMenu struct {
	options []models.MenuOption
}

func (m *memMenu) add(id uint, parent uint, title string, order int, response string) *models.MenuOption {
	o := models.MenuOption{ID: id, Title: title, Order: order, ResponseText: response}
	if parent != 0 {
		p := parent
		o.ParentID = &p
	}
	m.options = append(m.options, o)
	return &m.options[len(m.options)-1]
}

func (m *memMenu) TopLevel(ctx context.Context) ([]models.MenuOption, error) {
	var out []models.MenuOption
	for _, o := range m.options {
		if o.ParentID == nil {
			out = append(out, o)
		}
	}
	menu.SortOptions(out)
	return out, nil
}

func (m *memMenu) Children(ctx context.Context, parentID uint) ([]models.MenuOption, error) {
	var out []models.MenuOption
	for _, o := range m.options {
		if o.ParentID != nil && *o.ParentID == parentID {
			out = append(out, o)
		}
	}
	menu.SortOptions(out)
	return out, nil
}

func (m *memMenu) Option(ctx context.Context, id uint) (*models.MenuOption, error) {
	for i := range m.options {
		if m.options[i].ID == id {
			o := m.options[i]
			return &o, nil
		}
	}
	return nil, database.ErrNotFound
}

// defaultMenu has Business(1) with two children, Work(2) and Personal(3)
// leaves, in non-contiguous order values.
func defaultMenu() *memMenu {
	m := &memMenu{}
	m.add(1, 0, "Business Inquiries", 1, "What would you like to know?")
	m.add(2, 0, "Work-Related", 5, "We will get back to you about work.")
	m.add(3, 0, "Personal Contact", 7, "Thanks for reaching out.").RequiresForm = true
	m.add(4, 0, "Other", 9, "")
	m.add(10, 1, "Pricing", 2, "Pricing depends on scope.")
	m.add(11, 1, "Services", 1, "")
	return m
}

func req(text string) NavRequest {
	return NavRequest{Text: text, AssistantName: "Maximus", FormLink: "https://example.com/form"}
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		in   string
		kind selectorKind
		idx  int
	}{
		{"1", selectorDigit, 0},
		{" 2. ", selectorDigit, 1},
		{"3)", selectorDigit, 2},
		{"4 please", selectorDigit, 3},
		{"12", selectorDigit, 11},
		{"0", selectorDigit, -1},
		{"99999999999999999999999", selectorDigit, -1},
		{"a", selectorLetter, 0},
		{"B.", selectorLetter, 1},
		{"c)", selectorLetter, 2},
		{"h", selectorHuman, 0},
		{"H.", selectorHuman, 0},
		{"hello", selectorNone, 0},
		{"i am here", selectorNone, 0},
		{"1st", selectorNone, 0},
		{"", selectorNone, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseSelector(tt.in)
			assert.Equal(t, tt.kind, got.kind)
			if tt.kind == selectorDigit || tt.kind == selectorLetter {
				assert.Equal(t, tt.idx, got.index)
			}
		})
	}
}

func TestFreeTextAtRootShowsMenu(t *testing.T) {
	n := NewNavigator(defaultMenu(), nil)

	out, err := n.Step(context.Background(), Root, req("hello"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFallback, out.Kind)
	assert.Equal(t, IntentOther, out.Intent)
	assert.Equal(t, Root, out.Next)
	assert.Contains(t, out.Text, "I'm Maximus")
	assert.Contains(t, out.Text, "1. Business Inquiries\n2. Work-Related\n3. Personal Contact\n4. Other\nh. Speak to a human")
}

func TestFreeTextUsesIntentPreamble(t *testing.T) {
	n := NewNavigator(defaultMenu(), nil)

	out, err := n.Step(context.Background(), Root, NavRequest{Text: "I need a quote", AssistantName: "Maximus", ContactName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, IntentBusiness, out.Intent)
	assert.True(t, strings.HasPrefix(out.Text, "Hi Ada! "))
	assert.Equal(t, "A team member will respond within 2 business hours.", out.EstimatedResponseTime)

	out, err = n.Step(context.Background(), Root, req("a personal matter"))
	require.NoError(t, err)
	assert.Equal(t, IntentPersonal, out.Intent)
	assert.Equal(t, "https://example.com/form", out.FormLink)
	assert.Contains(t, out.Text, "https://example.com/form")
}

func TestSelectSubmenu(t *testing.T) {
	n := NewNavigator(defaultMenu(), nil)

	out, err := n.Step(context.Background(), Root, req("1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSubmenu, out.Kind)
	assert.Equal(t, Position(1), out.Next)
	assert.Equal(t, "What would you like to know?\n\nPlease select an option:\na. Services\nb. Pricing", out.Text)
}

func TestOutOfRangeKeepsPosition(t *testing.T) {
	n := NewNavigator(defaultMenu(), nil)

	out, err := n.Step(context.Background(), Position(1), req("c"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, out.Kind)
	assert.Equal(t, Position(1), out.Next)
	assert.False(t, out.Healed)
	assert.True(t, strings.HasPrefix(out.Text, invalidSelectionText))
	assert.Contains(t, out.Text, "a. Services\nb. Pricing")
}

func TestOutOfRangeIsIdempotent(t *testing.T) {
	n := NewNavigator(defaultMenu(), nil)

	first, err := n.Step(context.Background(), Root, req("9"))
	require.NoError(t, err)
	second, err := n.Step(context.Background(), first.Next, req("9"))
	require.NoError(t, err)

	assert.Equal(t, OutcomeInvalid, first.Kind)
	assert.Equal(t, Root, first.Next)
	assert.Equal(t, Root, second.Next)
	assert.Equal(t, first.Text, second.Text)
}

func TestSelectionIsPositional(t *testing.T) {
	n := NewNavigator(defaultMenu(), nil)

	// orders are 1, 5, 7, 9
	out, err := n.Step(context.Background(), Root, req("2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeLeaf, out.Kind)
	assert.Equal(t, "We will get back to you about work.", out.Text)
	assert.Equal(t, Root, out.Next)
}

func TestLeafSelection(t *testing.T) {
	n := NewNavigator(defaultMenu(), nil)
	ctx := context.Background()

	out, err := n.Step(ctx, Position(1), req("b"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeLeaf, out.Kind)
	assert.Equal(t, "Pricing depends on scope.", out.Text)
	assert.Equal(t, Root, out.Next)

	out, err = n.Step(ctx, Position(1), req("a."))
	require.NoError(t, err)
	assert.Equal(t, defaultLeafText, out.Text)

	out, err = n.Step(ctx, Root, req("3"))
	require.NoError(t, err)
	assert.Equal(t, "Thanks for reaching out. Please fill out this form: https://example.com/form", out.Text)
	assert.Equal(t, "https://example.com/form", out.FormLink)

	// digits always index the top level, even inside a submenu
	out, err = n.Step(ctx, Position(1), req("2"))
	require.NoError(t, err)
	assert.Equal(t, "We will get back to you about work.", out.Text)
}

func TestFormLinkOmittedWhenUnset(t *testing.T) {
	n := NewNavigator(defaultMenu(), nil)

	out, err := n.Step(context.Background(), Root, NavRequest{Text: "3", AssistantName: "Maximus"})
	require.NoError(t, err)
	assert.Equal(t, "Thanks for reaching out.", out.Text)
	assert.Empty(t, out.FormLink)
}

func TestHumanHandoff(t *testing.T) {
	n := NewNavigator(defaultMenu(), nil)

	for _, pos := range []Position{Root, Position(1)} {
		out, err := n.Step(context.Background(), pos, req("h"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeHandoff, out.Kind)
		assert.Equal(t, Root, out.Next)
		assert.Equal(t, HandoffResponseTime, out.EstimatedResponseTime)
		assert.Contains(t, out.Text, HandoffResponseTime)
	}
}

func TestFreeTextInsideSubmenuReturnsToRoot(t *testing.T) {
	n := NewNavigator(defaultMenu(), nil)

	out, err := n.Step(context.Background(), Position(1), req("what?"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFallback, out.Kind)
	assert.Equal(t, Root, out.Next)
}

func TestStalePositionHeals(t *testing.T) {
	n := NewNavigator(defaultMenu(), nil)
	ctx := context.Background()

	// unknown node
	out, err := n.Step(ctx, Position(999), req("a"))
	require.NoError(t, err)
	assert.True(t, out.Healed)
	assert.Equal(t, OutcomeSubmenu, out.Kind)
	assert.Equal(t, Position(1), out.Next)

	// node without children
	out, err = n.Step(ctx, Position(2), req("z"))
	require.NoError(t, err)
	assert.True(t, out.Healed)
	assert.Equal(t, OutcomeInvalid, out.Kind)
	assert.Equal(t, Root, out.Next)
	assert.Contains(t, out.Text, "1. Business Inquiries")
}

func TestEmptyMenu(t *testing.T) {
	n := NewNavigator(&memMenu{}, nil)

	out, err := n.Step(context.Background(), Root, req("1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, out.Kind)

	out, err = n.Step(context.Background(), Root, req("hi"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out.Text, "Please select an option:\n"+humanOptionLine))
}

func TestSubmenuLettersSkipH(t *testing.T) {
	m := &memMenu{}
	m.add(1, 0, "Business Inquiries", 1, "Pick one.")
	for i := 1; i <= 9; i++ {
		m.add(uint(100+i), 1, fmt.Sprintf("Child%d", i), i, fmt.Sprintf("Answer %d", i))
	}
	n := NewNavigator(m, nil)
	ctx := context.Background()

	out, err := n.Step(ctx, Root, req("1"))
	require.NoError(t, err)
	assert.Contains(t, out.Text, "g. Child7\ni. Child8\nj. Child9")
	assert.NotContains(t, out.Text, "h. Child")

	out, err = n.Step(ctx, Position(1), req("i"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeLeaf, out.Kind)
	assert.Equal(t, "Answer 8", out.Text)

	out, err = n.Step(ctx, Position(1), req("h"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeHandoff, out.Kind)

	out, err = n.Step(ctx, Position(1), req("k"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalid, out.Kind)
}

func TestSubmenuListStopsAtLastLetter(t *testing.T) {
	m := &memMenu{}
	m.add(1, 0, "Business Inquiries", 1, "")
	for i := 1; i <= 30; i++ {
		m.add(uint(100+i), 1, fmt.Sprintf("Child%d", i), i, "")
	}
	n := NewNavigator(m, nil)

	out, err := n.Step(context.Background(), Root, req("1"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out.Text, "z. Child25"))
	assert.NotContains(t, out.Text, "Child26")
}

func TestOutOfRangeAtRootOffersHuman(t *testing.T) {
	n := NewNavigator(defaultMenu(), nil)

	invalid, err := n.Step(context.Background(), Root, req("9"))
	require.NoError(t, err)
	fallback, err := n.Step(context.Background(), Root, req("hello"))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(invalid.Text, humanOptionLine))
	assert.True(t, strings.HasSuffix(fallback.Text, humanOptionLine))
	assert.Equal(t, 1, strings.Count(fallback.Text, humanOptionLine))
}

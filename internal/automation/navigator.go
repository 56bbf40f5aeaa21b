package automation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/models"
)

const (
	invalidSelectionText = "I'm sorry, I couldn't understand your selection. Please try again."
	defaultLeafText      = "Thank you for your selection."
	selectPrompt         = "Please select an option:"
	humanOptionLine      = "h. Speak to a human"

	// submenuLetters label submenu entries in order. h is left out because
	// it always requests a human.
	submenuLetters = "abcdefgijklmnopqrstuvwxyz"
)

// A digit run ends at end of input, '.', ')' or whitespace. A single letter
// ends at end of input, '.' or ')', so words like "hello" or "i am" are text.
var selectorPattern = regexp.MustCompile(`^(?:(\d+)(?:$|[.)\s])|([a-z])(?:$|[.)]))`)

// MenuSource returns sibling lists already sorted for display.
type MenuSource interface {
	TopLevel(ctx context.Context) ([]models.MenuOption, error)
	Children(ctx context.Context, parentID uint) ([]models.MenuOption, error)
	Option(ctx context.Context, id uint) (*models.MenuOption, error)
}

type selectorKind int

const (
	selectorNone selectorKind = iota
	selectorDigit
	selectorLetter
	selectorHuman
)

type selector struct {
	kind  selectorKind
	index int
}

func parseSelector(text string) selector {
	m := selectorPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if m == nil {
		return selector{}
	}
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			n = 0
		}
		return selector{kind: selectorDigit, index: n - 1}
	}
	if m[2] == "h" {
		return selector{kind: selectorHuman}
	}
	return selector{kind: selectorLetter, index: strings.IndexByte(submenuLetters, m[2][0])}
}

// Navigator is the per-contact menu state machine. It holds no state; the
// caller supplies the current Position and stores Outcome.Next.
type Navigator struct {
	menu       MenuSource
	classifier Classifier
}

func NewNavigator(menu MenuSource, classifier Classifier) *Navigator {
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	return &Navigator{menu: menu, classifier: classifier}
}

// Step applies one contact message to pos.
func (n *Navigator) Step(ctx context.Context, pos Position, req NavRequest) (Outcome, error) {
	sel := parseSelector(req.Text)
	if sel.kind == selectorHuman {
		return handoff(), nil
	}

	top, err := n.menu.TopLevel(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("load top-level menu: %w", err)
	}
	current, presented, err := n.presented(ctx, pos, top)
	if err != nil {
		return Outcome{}, err
	}
	healed := current != pos

	var list []models.MenuOption
	switch sel.kind {
	case selectorNone:
		out := n.fallback(req, top)
		out.Healed = healed
		return out, nil
	case selectorDigit:
		list = top
	case selectorLetter:
		list = presented
	}

	if sel.index < 0 || sel.index >= len(list) {
		return Outcome{
			Kind:   OutcomeInvalid,
			Text:   invalidSelectionText + "\n\n" + renderList(presented, current.IsRoot()),
			Next:   current,
			Healed: healed,
		}, nil
	}

	out, err := n.choose(ctx, list[sel.index], req)
	out.Healed = healed
	return out, err
}

// presented resolves the list the contact is looking at. A position whose node
// is gone or has no children heals to Root.
func (n *Navigator) presented(ctx context.Context, pos Position, top []models.MenuOption) (Position, []models.MenuOption, error) {
	if pos.IsRoot() {
		return Root, top, nil
	}
	if _, err := n.menu.Option(ctx, uint(pos)); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return Root, top, nil
		}
		return pos, nil, fmt.Errorf("load menu option %d: %w", pos, err)
	}
	children, err := n.menu.Children(ctx, uint(pos))
	if err != nil {
		return pos, nil, fmt.Errorf("load submenu %d: %w", pos, err)
	}
	if len(children) == 0 {
		return Root, top, nil
	}
	return pos, labelled(children), nil
}

func (n *Navigator) choose(ctx context.Context, option models.MenuOption, req NavRequest) (Outcome, error) {
	children, err := n.menu.Children(ctx, option.ID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load submenu %d: %w", option.ID, err)
	}

	if len(children) > 0 {
		var b strings.Builder
		if option.ResponseText != "" {
			b.WriteString(option.ResponseText)
			b.WriteString("\n\n")
		}
		b.WriteString(renderList(children, false))
		return Outcome{Kind: OutcomeSubmenu, Text: b.String(), Next: Position(option.ID)}, nil
	}

	out := Outcome{Kind: OutcomeLeaf, Text: option.ResponseText, Next: Root}
	if out.Text == "" {
		out.Text = defaultLeafText
	}
	if option.RequiresForm && req.FormLink != "" {
		out.Text += " Please fill out this form: " + req.FormLink
		out.FormLink = req.FormLink
	}
	return out, nil
}

func (n *Navigator) fallback(req NavRequest, top []models.MenuOption) Outcome {
	intent := n.classifier.Classify(req.Text)
	p := Respond(intent, req.AssistantName, req.ContactName)
	out := Outcome{
		Kind:                  OutcomeFallback,
		Next:                  Root,
		Intent:                intent,
		EstimatedResponseTime: p.EstimatedResponseTime,
	}

	var b strings.Builder
	b.WriteString(p.Text)
	if p.WantsForm && req.FormLink != "" {
		b.WriteString(" " + req.FormLink)
		out.FormLink = req.FormLink
	}
	if p.EstimatedResponseTime != "" {
		b.WriteString("\n\n" + p.EstimatedResponseTime)
	}
	b.WriteString("\n\n")
	b.WriteString(renderList(top, true))
	out.Text = b.String()
	return out
}

func handoff() Outcome {
	return Outcome{
		Kind:                  OutcomeHandoff,
		Text:                  "Thank you! I'm connecting you with a member of our team. Estimated response time: " + HandoffResponseTime + ".",
		Next:                  Root,
		EstimatedResponseTime: HandoffResponseTime,
	}
}

// renderList numbers top-level lists and letters submenus by position. The
// top-level list ends with the human handoff entry.
func renderList(options []models.MenuOption, numbered bool) string {
	var b strings.Builder
	b.WriteString(selectPrompt)
	if numbered {
		for i, o := range options {
			fmt.Fprintf(&b, "\n%d. %s", i+1, o.Title)
		}
		b.WriteString("\n" + humanOptionLine)
		return b.String()
	}
	for i, o := range labelled(options) {
		fmt.Fprintf(&b, "\n%c. %s", submenuLetters[i], o.Title)
	}
	return b.String()
}

// labelled drops submenu entries beyond the last available letter.
func labelled(options []models.MenuOption) []models.MenuOption {
	if len(options) > len(submenuLetters) {
		return options[:len(submenuLetters)]
	}
	return options
}

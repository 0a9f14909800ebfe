// Package conversation implements the drafting state machine and the
// per-conversation session registry.
package conversation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/legal-drafting/internal/command"
	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/internal/render"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
	"github.com/capitalize-ai/legal-drafting/pkg/metrics"
)

// TemplateSource is the read side of the template store.
type TemplateSource interface {
	TemplateLister
	Get(ctx context.Context, id string) (*model.Template, error)
}

// Reply is the assistant's answer to one message.
type Reply struct {
	Message string
	Type    model.MessageType
	Data    map[string]any
	// Events are the state changes the message caused. Sessions assign ids
	// and timestamps.
	Events []model.ConversationEvent
}

func (r *Reply) event(t model.EventType, data map[string]any) {
	r.Events = append(r.Events, model.ConversationEvent{Type: t, Data: data})
}

// Machine applies intents to a conversation. It holds no per-conversation
// state; callers serialize access to each conversation.
type Machine struct {
	templates TemplateSource
	matcher   *Matcher
	logger    *logger.Logger
}

// NewMachine creates a state machine reading templates from templates.
func NewMachine(templates TemplateSource, threshold float64, log *logger.Logger) *Machine {
	return &Machine{
		templates: templates,
		matcher:   NewMatcher(templates, threshold),
		logger:    logger.OrGlobal(log),
	}
}

// Apply interprets intent against conv. On error conv may be partially
// modified, so callers apply intents to a copy and keep it only on success.
func (m *Machine) Apply(ctx context.Context, conv *model.Conversation, intent command.Intent) (*Reply, error) {
	switch in := intent.(type) {
	case command.FreeText:
		if in.Text == "" {
			return nil, model.NewError(model.KindInvalidInput, "Please type a message.")
		}
		if conv.SelectedTemplateID == "" {
			return m.selectTemplate(ctx, conv, in.Text, false)
		}
		return m.fill(ctx, conv, in.Text)
	case command.DraftCommand:
		if in.Args != "" {
			return m.selectTemplate(ctx, conv, in.Args, true)
		}
		return m.draft(ctx, conv)
	case command.VarsCommand:
		return m.vars(ctx, conv)
	case command.UnknownCommand:
		return nil, model.NewError(model.KindUnknownCommand,
			"I don't know the command /%s. Available commands: /draft [template], /vars.", in.Name)
	default:
		return nil, fmt.Errorf("unhandled intent %T", intent)
	}
}

// selectTemplate picks a template for query and resets bindings. With
// byID set, query is tried as a template id before similarity matching.
func (m *Machine) selectTemplate(ctx context.Context, conv *model.Conversation, query string, byID bool) (*Reply, error) {
	var (
		t     *model.Template
		score float64
		err   error
	)
	if byID {
		t, err = m.templates.Get(ctx, query)
		if err != nil && model.KindOf(err) != model.KindNotFound {
			return nil, err
		}
		score = 1
	}
	if t == nil {
		best, err := m.matcher.Best(ctx, query)
		if err != nil {
			return nil, err
		}
		if t, err = m.templates.Get(ctx, best.TemplateID); err != nil {
			return nil, err
		}
		score = best.Score
	}

	conv.SelectTemplate(t.ID)
	settle(conv, t)
	m.logger.WithTemplate(t.ID).Debug("template selected",
		zap.String("conversation_id", conv.ID),
		zap.Float64("score", score),
	)

	missing := t.MissingRequired(conv.Bindings)
	var b strings.Builder
	fmt.Fprintf(&b, "Let's draft a %s.", t.Title)
	if len(missing) > 0 {
		fmt.Fprintf(&b, " I need %d value(s): %s.", len(missing), strings.Join(missing, ", "))
	}
	if v, ok := pendingVariable(t, conv.Bindings); ok {
		b.WriteString(" " + question(v))
	} else {
		b.WriteString(" Send /draft to render the document.")
	}

	reply := &Reply{
		Message: b.String(),
		Type:    model.MessageTypeText,
		Data: map[string]any{
			"template_id": t.ID,
			"title":       t.Title,
			"score":       score,
			"missing":     nonNil(missing),
			"status":      conv.Status,
		},
	}
	reply.event(model.EventTemplateSelected, map[string]any{"template_id": t.ID, "score": score})
	return reply, nil
}

// fill binds values from free text to the selected template's variables.
func (m *Machine) fill(ctx context.Context, conv *model.Conversation, text string) (*Reply, error) {
	t, err := m.selected(ctx, conv)
	if err != nil {
		return nil, err
	}

	assignments, ok := parseAssignments(text)
	if !meantAsAssignments(t, assignments) {
		assignments, ok = nil, true
	}
	if !ok {
		return nil, model.NewError(model.KindInvalidInput,
			"I couldn't read every line as \"key: value\". Send one assignment per line, for example \"tenant_name: Jane Doe\". Nothing was saved.")
	}

	var values map[string]string
	if len(assignments) == 0 {
		v, ok := pendingVariable(t, conv.Bindings)
		if !ok {
			return &Reply{
				Message: "Every variable already has a value. Send /draft to render the document, or \"key: value\" to change one.",
				Type:    model.MessageTypeText,
			}, nil
		}
		if err := v.ValidateValue(text); err != nil {
			return nil, err
		}
		values = map[string]string{v.Key: strings.TrimSpace(text)}
	} else if values, err = bindAll(t, assignments); err != nil {
		return nil, err
	}

	for k, v := range values {
		conv.Bindings[k] = v
	}
	settle(conv, t)

	keys := sortedKeys(values)
	missing := t.MissingRequired(conv.Bindings)
	var b strings.Builder
	fmt.Fprintf(&b, "Saved %s.", strings.Join(keys, ", "))
	if len(missing) > 0 {
		fmt.Fprintf(&b, " Still missing: %s.", strings.Join(missing, ", "))
		if v, ok := t.Variable(missing[0]); ok {
			b.WriteString(" " + question(v))
		}
	} else {
		b.WriteString(" All required values are filled in. Send /draft to render the document.")
	}

	reply := &Reply{
		Message: b.String(),
		Type:    model.MessageTypeText,
		Data: map[string]any{
			"updated": keys,
			"missing": nonNil(missing),
			"status":  conv.Status,
		},
	}
	reply.event(model.EventBindingsUpdated, map[string]any{"keys": keys})
	return reply, nil
}

func (m *Machine) vars(ctx context.Context, conv *model.Conversation) (*Reply, error) {
	t, err := m.selected(ctx, conv)
	if err != nil {
		return nil, err
	}

	missing := t.MissingRequired(conv.Bindings)
	bindings := make(map[string]string, len(conv.Bindings))
	var b strings.Builder
	fmt.Fprintf(&b, "Variables for %s:", t.Title)
	for _, v := range t.Variables {
		value, ok := conv.Bindings[v.Key]
		switch {
		case ok:
			bindings[v.Key] = value
			fmt.Fprintf(&b, "\n- %s: %s", v.Key, value)
		case v.Required:
			fmt.Fprintf(&b, "\n- %s: (missing, required)", v.Key)
		default:
			fmt.Fprintf(&b, "\n- %s: (not set, optional)", v.Key)
		}
	}

	return &Reply{
		Message: b.String(),
		Type:    model.MessageTypeVars,
		Data: map[string]any{
			"template_id": t.ID,
			"bindings":    bindings,
			"missing":     nonNil(missing),
			"status":      conv.Status,
		},
	}, nil
}

func (m *Machine) draft(ctx context.Context, conv *model.Conversation) (*Reply, error) {
	t, err := m.selected(ctx, conv)
	if err != nil {
		return nil, err
	}

	if missing := t.MissingRequired(conv.Bindings); len(missing) > 0 {
		labels := make([]string, len(missing))
		for i, key := range missing {
			v, _ := t.Variable(key)
			labels[i] = fmt.Sprintf("%s (%s)", v.Label, key)
		}
		return nil, &model.Error{
			Kind:    model.KindMissingRequiredVariables,
			Message: "I can't draft the document yet. Still missing: " + strings.Join(labels, ", ") + ".",
			Missing: missing,
		}
	}

	result := render.Render(t.Body, conv.Bindings)
	html, err := render.HTML(result.Text)
	if err != nil {
		return nil, err
	}
	conv.Status = model.StatusRendered
	conv.LastDraft = result.Text
	metrics.DraftsRendered.Inc()

	msg := fmt.Sprintf("Here is your %s.", t.Title)
	if len(result.Unresolved) > 0 {
		msg += fmt.Sprintf(" Optional values left open are marked %s.", render.UnresolvedMarker("key"))
	}

	reply := &Reply{
		Message: msg,
		Type:    model.MessageTypeDraft,
		Data: map[string]any{
			"template_id": t.ID,
			"draft_md":    result.Text,
			"draft_html":  html,
			"unresolved":  nonNil(result.Unresolved),
		},
	}
	reply.event(model.EventDraftRendered, map[string]any{"template_id": t.ID, "unresolved": len(result.Unresolved)})
	return reply, nil
}

func (m *Machine) selected(ctx context.Context, conv *model.Conversation) (*model.Template, error) {
	if conv.SelectedTemplateID == "" {
		return nil, model.NewError(model.KindInvalidInput,
			"No template is selected yet. Describe the document you need, or send /draft <template>.")
	}
	t, err := m.templates.Get(ctx, conv.SelectedTemplateID)
	if model.KindOf(err) == model.KindNotFound {
		return nil, model.WrapError(model.KindNotFound, err,
			"The selected template no longer exists. Send /draft <template> to choose another one.")
	}
	return t, err
}

// settle sets the status implied by the current bindings.
func settle(conv *model.Conversation, t *model.Template) {
	if len(t.MissingRequired(conv.Bindings)) == 0 {
		conv.Status = model.StatusReady
	} else {
		conv.Status = model.StatusCollecting
	}
}

func question(v model.Variable) string {
	q := fmt.Sprintf("What is the %s?", v.Label)
	if v.Example != "" {
		q += fmt.Sprintf(" (e.g. %s)", v.Example)
	}
	return q
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

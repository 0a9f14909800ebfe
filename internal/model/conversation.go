package model

import (
	"time"
)

// Status is the drafting state of a conversation.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusCollecting Status = "collecting"
	StatusReady      Status = "ready"
	StatusRendered   Status = "rendered"
)

// Conversation is the per-session drafting state.
type Conversation struct {
	ID                 string            `json:"id"`
	SelectedTemplateID string            `json:"selected_template_id,omitempty"`
	Bindings           map[string]string `json:"bindings"`
	History            []Message         `json:"history"`
	Status             Status            `json:"status"`
	LastDraft          string            `json:"last_draft,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// NewConversation returns an idle conversation with no template selected.
func NewConversation(id string, now time.Time) *Conversation {
	return &Conversation{
		ID:        id,
		Bindings:  make(map[string]string),
		History:   []Message{},
		Status:    StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Snapshot returns a copy safe to hand to other goroutines.
func (c *Conversation) Snapshot() *Conversation {
	s := *c
	s.Bindings = make(map[string]string, len(c.Bindings))
	for k, v := range c.Bindings {
		s.Bindings[k] = v
	}
	s.History = append([]Message(nil), c.History...)
	return &s
}

// SelectTemplate switches the conversation to a template and clears bindings.
func (c *Conversation) SelectTemplate(templateID string) {
	c.SelectedTemplateID = templateID
	c.Bindings = make(map[string]string)
	c.LastDraft = ""
	c.Status = StatusCollecting
}

// ChatRequest is the body of POST /chat/message.
type ChatRequest struct {
	Message        string `json:"message" validate:"required,max=100000"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the reply to a chat message.
type ChatResponse struct {
	ConversationID string         `json:"conversation_id"`
	Message        string         `json:"message"`
	MessageType    MessageType    `json:"message_type"`
	Data           map[string]any `json:"data,omitempty"`
}

package model

import (
	"time"
)

// EventType names a conversation state change.
type EventType string

const (
	EventConversationStarted EventType = "started"
	EventTemplateSelected    EventType = "template_selected"
	EventBindingsUpdated     EventType = "bindings_updated"
	EventDraftRendered       EventType = "draft_rendered"
)

// ConversationEvent records a state change for downstream consumers.
type ConversationEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Type           EventType      `json:"type"`
	Data           map[string]any `json:"data,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

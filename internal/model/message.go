package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageType tags an assistant reply for the client.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeDraft MessageType = "draft"
	MessageTypeVars  MessageType = "vars"
	MessageTypeError MessageType = "error"
)

// Message is one entry of a conversation history.
type Message struct {
	ID             string      `json:"id"`
	ConversationID string      `json:"conversation_id"`
	Role           Role        `json:"role"`
	Content        string      `json:"content"`
	MessageType    MessageType `json:"message_type,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

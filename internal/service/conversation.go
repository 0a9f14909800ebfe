// Package service provides business logic for the drafting service.
package service

import (
	"context"

	"github.com/capitalize-ai/legal-drafting/internal/conversation"
	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
)

// ChatService handles conversational drafting.
type ChatService struct {
	sessions *conversation.Sessions
	logger   *logger.Logger
}

// NewChatService creates a chat service. sink receives committed history
// and may be nil when NATS is disabled.
func NewChatService(templates conversation.TemplateSource, threshold float64, sink conversation.HistorySink, log *logger.Logger) *ChatService {
	log = logger.OrGlobal(log)
	machine := conversation.NewMachine(templates, threshold, log)
	return &ChatService{
		sessions: conversation.NewSessions(machine, sink, log),
		logger:   log,
	}
}

// Conversation returns the state and history of a conversation.
func (s *ChatService) Conversation(ctx context.Context, id string) (*model.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.sessions.Get(id)
}

// Subscribe streams a conversation's history from index after onwards.
func (s *ChatService) Subscribe(id string, after int) (*conversation.Subscription, error) {
	return s.sessions.Subscribe(id, after)
}

package service

import (
	"context"

	"github.com/capitalize-ai/legal-drafting/internal/model"
)

// Send applies one chat message. An empty ConversationID starts a new
// conversation. Command failures come back as replies with message type
// error. Returned errors mean the message was not recorded.
func (s *ChatService) Send(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	if req == nil {
		return nil, model.NewError(model.KindInvalidInput, "message is required")
	}
	return s.sessions.Handle(ctx, req.ConversationID, req.Message)
}

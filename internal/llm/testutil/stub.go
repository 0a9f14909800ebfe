// Package testutil provides deterministic LLM clients for tests.
package testutil

import (
	"context"
	"sync"

	"github.com/capitalize-ai/legal-drafting/internal/llm"
)

// StubClient replays canned replies in order and records requests.
type StubClient struct {
	mu       sync.Mutex
	replies  []string
	err      error
	requests []*llm.CompletionRequest
}

// NewStubClient returns a client answering with replies in order. The last
// reply repeats once the list is exhausted.
func NewStubClient(replies ...string) *StubClient {
	return &StubClient{replies: replies}
}

// NewFailingClient returns a client whose every call fails with err.
func NewFailingClient(err error) *StubClient {
	return &StubClient{err: err}
}

// Complete implements llm.Client.
func (s *StubClient) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}

	content := ""
	if n := len(s.requests); len(s.replies) > 0 {
		idx := n - 1
		if idx >= len(s.replies) {
			idx = len(s.replies) - 1
		}
		content = s.replies[idx]
	}

	return &llm.CompletionResponse{
		Content:    content,
		Model:      "stub",
		TokensIn:   len(req.System) / 4,
		TokensOut:  len(content) / 4,
		StopReason: "end_turn",
	}, nil
}

// Name implements llm.Client.
func (s *StubClient) Name() string { return "stub" }

// Models implements llm.Client.
func (s *StubClient) Models() []string { return []string{"stub"} }

// Requests returns the requests received so far.
func (s *StubClient) Requests() []*llm.CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*llm.CompletionRequest(nil), s.requests...)
}

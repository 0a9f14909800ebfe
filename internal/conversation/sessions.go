package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/legal-drafting/internal/command"
	"github.com/capitalize-ai/legal-drafting/internal/model"
	"github.com/capitalize-ai/legal-drafting/pkg/logger"
	"github.com/capitalize-ai/legal-drafting/pkg/metrics"
)

// HistorySink receives conversation history and state changes as they are
// committed. Publishing is best effort.
type HistorySink interface {
	PublishMessage(ctx context.Context, msg *model.Message) (uint64, error)
	PublishEvent(ctx context.Context, event *model.ConversationEvent) (uint64, error)
}

// Sessions owns every conversation. Messages for one conversation are
// applied one at a time in arrival order; different conversations proceed
// in parallel.
type Sessions struct {
	machine *Machine
	sink    HistorySink
	now     func() time.Time
	logger  *logger.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	lock ticketLock
	conv *model.Conversation

	subMu sync.Mutex
	subs  map[chan model.Message]struct{}
}

// subscriberBuffer is how many messages a slow subscriber may fall behind
// before it is dropped.
const subscriberBuffer = 64

// NewSessions creates an empty registry. sink may be nil.
func NewSessions(machine *Machine, sink HistorySink, log *logger.Logger) *Sessions {
	return &Sessions{
		machine:  machine,
		sink:     sink,
		now:      time.Now,
		logger:   logger.OrGlobal(log),
		sessions: make(map[string]*session),
	}
}

// WithClock replaces the time source.
func (s *Sessions) WithClock(now func() time.Time) *Sessions {
	s.now = now
	return s
}

// Handle applies one chat message. An empty conversationID starts a new
// conversation. Recoverable failures become an error reply and leave the
// conversation state unchanged apart from history. Other failures are
// returned and nothing is recorded.
func (s *Sessions) Handle(ctx context.Context, conversationID, message string) (*model.ChatResponse, error) {
	if strings.TrimSpace(message) == "" {
		return nil, model.NewError(model.KindInvalidInput, "message is required")
	}

	sess, created, err := s.session(conversationID)
	if err != nil {
		return nil, err
	}

	sess.lock.Lock()
	defer sess.lock.Unlock()

	log := s.logger.WithConversation(sess.conv.ID)
	work := sess.conv.Snapshot()
	reply, err := s.machine.Apply(ctx, work, command.Route(message))
	if err != nil {
		if !recoverable(err) {
			log.Error("chat message failed", zap.Error(err))
			return nil, err
		}
		log.Debug("chat command rejected", zap.String("kind", string(model.KindOf(err))))
		reply = ErrorReply(err)
	} else {
		sess.conv.SelectedTemplateID = work.SelectedTemplateID
		sess.conv.Bindings = work.Bindings
		sess.conv.Status = work.Status
		sess.conv.LastDraft = work.LastDraft
	}

	now := s.now().UTC()
	userMsg := model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: sess.conv.ID,
		Role:           model.RoleUser,
		Content:        message,
		CreatedAt:      now,
	}
	assistantMsg := model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: sess.conv.ID,
		Role:           model.RoleAssistant,
		Content:        reply.Message,
		MessageType:    reply.Type,
		CreatedAt:      now,
	}
	sess.conv.History = append(sess.conv.History, userMsg, assistantMsg)
	sess.conv.UpdatedAt = now
	sess.broadcast(log, userMsg, assistantMsg)

	events := reply.Events
	if created {
		events = append([]model.ConversationEvent{{Type: model.EventConversationStarted}}, events...)
	}
	s.publish(ctx, log, []*model.Message{&userMsg, &assistantMsg}, sess.conv.ID, events, now)
	metrics.RecordChatReply(string(reply.Type))

	return &model.ChatResponse{
		ConversationID: sess.conv.ID,
		Message:        reply.Message,
		MessageType:    reply.Type,
		Data:           reply.Data,
	}, nil
}

// Get returns a snapshot of a conversation.
func (s *Sessions) Get(conversationID string) (*model.Conversation, error) {
	s.mu.Lock()
	sess, ok := s.sessions[conversationID]
	s.mu.Unlock()
	if !ok {
		return nil, conversationNotFound(conversationID)
	}

	sess.lock.Lock()
	defer sess.lock.Unlock()
	return sess.conv.Snapshot(), nil
}

// Subscription is a history stream for one conversation.
type Subscription struct {
	// Start is the history index of the first backlog entry. It is the
	// requested index clamped to the history length.
	Start   int
	Backlog []model.Message
	// Live receives every message committed after the backlog. It is
	// closed by Cancel or when the subscriber falls too far behind.
	Live   <-chan model.Message
	Cancel func()
}

// Subscribe returns the history entries after the first `after` ones and a
// channel that receives every message committed from then on. Callers that
// fall behind resume with a new Subscribe.
func (s *Sessions) Subscribe(conversationID string, after int) (*Subscription, error) {
	s.mu.Lock()
	sess, ok := s.sessions[conversationID]
	s.mu.Unlock()
	if !ok {
		return nil, conversationNotFound(conversationID)
	}

	sess.lock.Lock()
	defer sess.lock.Unlock()

	after = min(max(after, 0), len(sess.conv.History))
	backlog := append([]model.Message(nil), sess.conv.History[after:]...)

	ch := make(chan model.Message, subscriberBuffer)
	sess.subMu.Lock()
	if sess.subs == nil {
		sess.subs = make(map[chan model.Message]struct{})
	}
	sess.subs[ch] = struct{}{}
	sess.subMu.Unlock()

	return &Subscription{
		Start:   after,
		Backlog: backlog,
		Live:    ch,
		Cancel:  func() { sess.unsubscribe(ch) },
	}, nil
}

// Len returns the number of conversations held.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Sessions) session(conversationID string) (*session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conversationID != "" {
		sess, ok := s.sessions[conversationID]
		if !ok {
			return nil, false, conversationNotFound(conversationID)
		}
		return sess, false, nil
	}

	id := uuid.Must(uuid.NewV7()).String()
	sess := &session{conv: model.NewConversation(id, s.now().UTC())}
	s.sessions[id] = sess
	metrics.ConversationsTotal.Inc()
	metrics.ConversationsActive.Set(float64(len(s.sessions)))
	return sess, true, nil
}

func (s *Sessions) publish(ctx context.Context, log *logger.Logger, msgs []*model.Message, conversationID string, events []model.ConversationEvent, now time.Time) {
	if s.sink == nil {
		return
	}
	for _, msg := range msgs {
		if _, err := s.sink.PublishMessage(ctx, msg); err != nil {
			log.Warn("failed to publish message", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
	for i := range events {
		event := events[i]
		event.ID = uuid.Must(uuid.NewV7()).String()
		event.ConversationID = conversationID
		event.CreatedAt = now
		if _, err := s.sink.PublishEvent(ctx, &event); err != nil {
			log.Warn("failed to publish event", zap.String("event", string(event.Type)), zap.Error(err))
		}
	}
}

func (sess *session) broadcast(log *logger.Logger, msgs ...model.Message) {
	sess.subMu.Lock()
	defer sess.subMu.Unlock()
	for ch := range sess.subs {
		for _, msg := range msgs {
			select {
			case ch <- msg:
				continue
			default:
			}
			log.Warn("dropping slow history subscriber")
			delete(sess.subs, ch)
			close(ch)
			break
		}
	}
}

func (sess *session) unsubscribe(ch chan model.Message) {
	sess.subMu.Lock()
	defer sess.subMu.Unlock()
	if _, ok := sess.subs[ch]; ok {
		delete(sess.subs, ch)
		close(ch)
	}
}

// ErrorReply turns a recoverable failure into an assistant message.
func ErrorReply(err error) *Reply {
	reply := &Reply{Message: err.Error(), Type: model.MessageTypeError}
	e, ok := model.AsError(err)
	if !ok {
		return reply
	}
	if e.Message != "" {
		reply.Message = e.Message
	}
	reply.Data = map[string]any{"error": string(e.Kind)}
	if len(e.Missing) > 0 {
		reply.Data["missing"] = append([]string(nil), e.Missing...)
	}
	if e.Kind == model.KindNoMatchingTemplate {
		reply.Data["candidates"] = append([]model.TemplateMatch{}, e.Candidates...)
	}
	return reply
}

// recoverable reports whether err is a user-facing failure the
// conversation can continue from.
func recoverable(err error) bool {
	switch model.KindOf(err) {
	case "", model.KindStorageCorruption:
		return false
	default:
		return true
	}
}

func conversationNotFound(id string) error {
	return model.NewError(model.KindNotFound, "conversation %s not found", id)
}

// ticketLock is a mutex that admits waiters in the order they called Lock.
type ticketLock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	next    uint64
	serving uint64
}

func (l *ticketLock) Lock() {
	l.mu.Lock()
	if l.cond == nil {
		l.cond = sync.NewCond(&l.mu)
	}
	ticket := l.next
	l.next++
	for ticket != l.serving {
		l.cond.Wait()
	}
	l.mu.Unlock()
}

func (l *ticketLock) Unlock() {
	l.mu.Lock()
	l.serving++
	if l.cond != nil {
		l.cond.Broadcast()
	}
	l.mu.Unlock()
}

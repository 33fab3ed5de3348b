package session

import (
	"time"

	"github.com/bowerhall/mira/internal/llm"
	"github.com/bowerhall/mira/internal/logger"
)

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get returns the session for id, creating it lazily. The channel is fixed on
// first creation; later calls with a different channel keep the original.
func (s *Store) Get(id, channel string) *Session {
	s.mu.RLock()

	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok = s.sessions[id]; ok {
		return sess
	}

	sess = &Session{channel: channel, createdAt: time.Now()}
	s.sessions[id] = sess
	logger.Debug("session created", "id", id, "channel", channel)

	return sess
}

// Sweep drops sessions older than maxAge and returns how many were evicted.
func (s *Store) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if sess.CreatedAt().Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Session) Channel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdAt
}

func (s *Session) AppendTurn(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, llm.Message{Role: role, Content: content})
}

// AppendToolInteraction appends the invocation and its result as two
// consecutive turns under one lock, so no other append can interleave. The
// text is the assistant speech that accompanied the call, empty for all but
// the first call of a turn.
func (s *Session) AppendToolInteraction(call llm.ToolCall, text, result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history,
		llm.Message{Role: "assistant", Content: text, ToolCalls: []llm.ToolCall{call}},
		llm.Message{Role: "tool", Content: result, ToolCallID: call.ID},
	)
}

// AppendMessages commits a whole staged turn under one lock.
func (s *Session) AppendMessages(msgs ...llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, msgs...)
}

func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]llm.Message, len(s.history))
	copy(copied, s.history)

	return copied
}

func (s *Session) SetPendingToolCalls(p *PendingToolCalls) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = p
}

// TakeAndClearPendingToolCalls is a destructive read: it returns the buffered
// calls and clears them in the same critical section. A second call before new
// data is stored returns nil.
func (s *Session) TakeAndClearPendingToolCalls() *PendingToolCalls {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	s.pending = nil
	return p
}

// SetGender records the inferred addressee gender. Empty values are ignored;
// new external data may overwrite an earlier inference.
func (s *Session) SetGender(gender string) {
	if gender == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gender = gender
}

func (s *Session) Gender() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gender
}

// SetDomain pins the business domain the conversation is about. Empty values
// are ignored, so a keyword-free follow-up keeps the earlier routing.
func (s *Session) SetDomain(domain string) {
	if domain == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domain = domain
}

func (s *Session) Domain() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.domain
}

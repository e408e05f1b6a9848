package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Session lifecycle: Active -> Leaving -> Closed. Send and Poll are only
// honored while Active; the two-step teardown keeps a leave from racing a
// delivery against a torn-down session.
type SessionState int32

const (
	StateActive SessionState = iota
	StateLeaving
	StateClosed
)

// Session binds a display name to a delivery cursor. The cursor is the id of
// the last message this session has already seen; it only ever moves forward.
type Session struct {
	Token string
	Name  string

	mu     sync.Mutex
	cursor uint64
	state  SessionState
	cancel context.CancelFunc // Stops the attached deliverer loop, if any
}

func newSession(name string, cursor uint64) *Session {
	return &Session{
		Token:  uuid.New().String(),
		Name:   name,
		cursor: cursor,
		state:  StateActive,
	}
}

func (s *Session) Cursor() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AttachStream registers the cancel func of a deliverer loop attached to this
// session, replacing (and stopping) a previously attached one.
func (s *Session) AttachStream(cancel context.CancelFunc) {
	s.mu.Lock()
	old := s.cancel
	s.cancel = cancel
	s.mu.Unlock()

	if old != nil {
		old()
	}
}

func (s *Session) cancelStream() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *Session) beginLeave() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return false
	}
	s.state = StateLeaving
	return true
}

// abortLeave rolls a failed leave back so the session keeps working.
func (s *Session) abortLeave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateLeaving {
		s.state = StateActive
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateClosed
}

package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidSession = errors.New("no transport found for sessionId")
	ErrSessionClosed  = errors.New("session closed")
)

// outboundBuffer is the number of messages queued per session before Send blocks.
const outboundBuffer = 32

// Session is one open stream. Messages sent to it are delivered, in order,
// to whichever writer drains Events.
type Session struct {
	ID        string
	CreatedAt time.Time

	outbound  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id string) *Session {
	return &Session{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		outbound:  make(chan []byte, outboundBuffer),
		done:      make(chan struct{}),
	}
}

// Send queues msg for delivery. It blocks while the buffer is full and fails
// with ErrSessionClosed once the session has been closed.
func (s *Session) Send(msg []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case <-s.done:
		return ErrSessionClosed
	case s.outbound <- msg:
		return nil
	}
}

// Events is drained by the stream writer.
func (s *Session) Events() <-chan []byte {
	return s.outbound
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Manager owns the live sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Open registers a session under a fresh id.
func (m *Manager) Open() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	for {
		if _, taken := m.sessions[id]; !taken {
			break
		}
		id = uuid.NewString()
	}

	s := newSession(id)
	m.sessions[id] = s
	return s
}

// Lookup returns the live session for id.
func (m *Manager) Lookup(id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidSession
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrInvalidSession
	}
	return s, nil
}

// Close removes the session and signals its writer. It reports whether id was live.
func (m *Manager) Close(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		s.close()
	}
	return ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every live session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

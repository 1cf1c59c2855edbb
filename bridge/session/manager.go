// bridge/session/manager.go
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for ids that are not (or no longer) registered.
var ErrSessionNotFound = errors.New("session not found")

// Manager is the registry of live sessions on this instance. The scoreboard
// updater iterates it; teardown removes a session from it before closing it.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	outboxSize int
	onDrop     func()
	logger     *zap.Logger
	now        func() time.Time
}

// NewManager creates an empty registry. outboxSize bounds each session's
// queue of unforwarded updates; onDrop is called whenever a full queue
// rejects one.
func NewManager(outboxSize int, onDrop func(), logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		sessions:   make(map[string]*Session),
		outboxSize: outboxSize,
		onDrop:     onDrop,
		logger:     logger,
		now:        time.Now,
	}
}

// Open creates and registers a session for viewer.
func (m *Manager) Open(viewer, locale string) *Session {
	id := uuid.New().String()
	s := newSession(id, viewer, locale, m.outboxSize, m.onDrop, m.logger, m.now())

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("session opened",
		zap.String("session_id", id),
		zap.String("viewer", viewer),
		zap.String("locale", locale))
	return s
}

// Get looks up a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Sessions returns the live sessions at the time of the call.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close deregisters and tears down the session. A tick that already picked
// the session up either finishes its flush before Close gets the session lock
// or sees the session closed and skips it.
func (m *Manager) Close(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	s.close()
	m.logger.Info("session closed", zap.String("session_id", id), zap.String("viewer", s.viewer))
	return s, nil
}

// CloseAll tears down every session, used on shutdown.
func (m *Manager) CloseAll() []*Session {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.close()
	}
	return all
}

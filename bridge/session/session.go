// bridge/session/session.go
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/scoreboard"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/models"
	"go.uber.org/zap"
)

// Session is one downstream player connection. It owns exactly one Scoreboard,
// one RateCounter and one Outbox. All scoreboard access goes through the
// session lock so the event path and the updater never interleave.
type Session struct {
	id       string
	viewer   string
	locale   string
	openedAt time.Time

	mu         sync.Mutex
	closed     bool
	scoreboard *scoreboard.Scoreboard
	lastFlush  time.Time

	rate   RateCounter
	outbox *Outbox

	eventsProcessed  atomic.Int64
	eventsSkipped    atomic.Int64
	eventsDropped    atomic.Int64
	immediateFlushes atomic.Int64
	periodicFlushes  atomic.Int64
}

func newSession(id, viewer, locale string, outboxSize int, onDrop func(), logger *zap.Logger, now time.Time) *Session {
	s := &Session{
		id:       id,
		viewer:   viewer,
		locale:   locale,
		openedAt: now,
		outbox:   NewOutbox(outboxSize, onDrop),
	}
	s.scoreboard = scoreboard.New(viewer, logger.With(zap.String("session_id", id)), s.outbox)
	return s
}

func (s *Session) ID() string                { return s.id }
func (s *Session) Viewer() string            { return s.viewer }
func (s *Session) Locale() string            { return s.locale }
func (s *Session) OpenedAt() time.Time       { return s.openedAt }
func (s *Session) RateCounter() *RateCounter { return &s.rate }
func (s *Session) Outbox() *Outbox           { return s.outbox }

// WithScoreboard runs fn with exclusive access to the scoreboard. It returns
// false without calling fn once the session is closed.
func (s *Session) WithScoreboard(fn func(sb *scoreboard.Scoreboard)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	fn(s.scoreboard)
	return true
}

// FlushImmediate is the event path's flush request.
func (s *Session) FlushImmediate(now time.Time) bool {
	return s.flush(now, &s.immediateFlushes)
}

// FlushPending is the updater's flush. Closed sessions are skipped.
func (s *Session) FlushPending(now time.Time) bool {
	return s.flush(now, &s.periodicFlushes)
}

func (s *Session) flush(now time.Time, counter *atomic.Int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.scoreboard.OnUpdate() {
		return false
	}
	s.lastFlush = now
	counter.Add(1)
	return true
}

// HasPending reports whether the scoreboard has state waiting for a flush.
func (s *Session) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.scoreboard.Pending()
}

// LastFlush returns when the scoreboard was last flushed.
func (s *Session) LastFlush() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFlush
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) MarkProcessed() { s.eventsProcessed.Add(1) }
func (s *Session) MarkSkipped()   { s.eventsSkipped.Add(1) }
func (s *Session) MarkDropped()   { s.eventsDropped.Add(1) }

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() models.SessionStats {
	stats := models.SessionStats{
		ID:               s.id,
		Viewer:           s.viewer,
		Locale:           s.locale,
		EventsProcessed:  s.eventsProcessed.Load(),
		EventsSkipped:    s.eventsSkipped.Load(),
		EventsDropped:    s.eventsDropped.Load(),
		ImmediateFlushes: s.immediateFlushes.Load(),
		PeriodicFlushes:  s.periodicFlushes.Load(),
		UpdatesDropped:   s.outbox.Dropped(),
		PeakEventsPerSec: s.rate.Peak(),
		OpenedAt:         s.openedAt,
	}
	s.mu.Lock()
	stats.TeamCount = s.scoreboard.TeamCount()
	s.mu.Unlock()
	return stats
}

// close marks the session closed and shuts its outbox. Once it returns no
// flush can reach the scoreboard.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.outbox.Close()
	return true
}

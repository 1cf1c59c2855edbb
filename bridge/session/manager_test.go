package session

import (
	"testing"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/scoreboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerOpenGetClose(t *testing.T) {
	m := NewManager(4, nil, nil)
	s := m.Open("viewer", "en_us")

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, "viewer", s.Viewer())
	assert.Equal(t, "en_us", s.Locale())

	closed, err := m.Close(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, closed)
	assert.True(t, s.Closed())
	assert.Equal(t, 0, m.Len())

	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Close(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestClosedSessionIsNeverFlushed(t *testing.T) {
	m := NewManager(4, nil, nil)
	s := m.Open("viewer", "en_us")
	require.True(t, s.WithScoreboard(func(sb *scoreboard.Scoreboard) {
		sb.RegisterNewTeam("red", []string{"alice"})
	}))
	require.True(t, s.HasPending())

	_, err := m.Close(s.ID())
	require.NoError(t, err)

	assert.False(t, s.FlushPending(time.Now()))
	assert.False(t, s.FlushImmediate(time.Now()))
	assert.False(t, s.HasPending())
	assert.False(t, s.WithScoreboard(func(*scoreboard.Scoreboard) {
		t.Fatal("scoreboard reached after close")
	}))
	_, ok := <-s.Outbox().Updates()
	assert.False(t, ok)
}

func TestSessionFlushCounters(t *testing.T) {
	m := NewManager(4, nil, nil)
	s := m.Open("viewer", "en_us")
	now := time.Unix(1700000000, 0)

	s.WithScoreboard(func(sb *scoreboard.Scoreboard) { sb.RegisterNewTeam("red", nil) })
	require.True(t, s.FlushImmediate(now))
	assert.Equal(t, now, s.LastFlush())
	assert.False(t, s.FlushPending(now.Add(time.Second)), "nothing pending")

	s.WithScoreboard(func(sb *scoreboard.Scoreboard) { sb.RegisterNewTeam("blue", nil) })
	require.True(t, s.FlushPending(now.Add(2*time.Second)))

	s.MarkProcessed()
	s.MarkProcessed()
	s.MarkSkipped()
	s.MarkDropped()
	s.RateCounter().IncrementAndGet()

	stats := s.Stats()
	assert.Equal(t, s.ID(), stats.ID)
	assert.Equal(t, int64(2), stats.EventsProcessed)
	assert.Equal(t, int64(1), stats.EventsSkipped)
	assert.Equal(t, int64(1), stats.EventsDropped)
	assert.Equal(t, int64(1), stats.ImmediateFlushes)
	assert.Equal(t, int64(1), stats.PeriodicFlushes)
	assert.Equal(t, 1, stats.PeakEventsPerSec)
	assert.Equal(t, 2, stats.TeamCount)
	assert.Len(t, s.Outbox().Updates(), 2)
}

func TestManagerCountsOutboxDrops(t *testing.T) {
	drops := 0
	m := NewManager(1, func() { drops++ }, nil)
	s := m.Open("viewer", "en_us")

	for _, name := range []string{"a", "b"} {
		s.WithScoreboard(func(sb *scoreboard.Scoreboard) { sb.RegisterNewTeam(name, nil) })
		s.FlushImmediate(time.Now())
	}

	assert.Equal(t, 1, drops)
	assert.Equal(t, int64(1), s.Stats().UpdatesDropped)
	assert.True(t, s.HasPending(), "a rejected update is kept for the next flush")

	first := <-s.Outbox().Updates()
	require.Len(t, first.Teams, 1)
	assert.Equal(t, "a", first.Teams[0].Name)

	require.True(t, s.FlushPending(time.Now()))
	second := <-s.Outbox().Updates()
	require.Len(t, second.Teams, 1)
	assert.Equal(t, "b", second.Teams[0].Name)
	assert.False(t, s.HasPending())
}

func TestManagerCloseAll(t *testing.T) {
	m := NewManager(4, nil, nil)
	a := m.Open("a", "en_us")
	b := m.Open("b", "en_us")

	closed := m.CloseAll()

	assert.ElementsMatch(t, []*Session{a, b}, closed)
	assert.Equal(t, 0, m.Len())
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}

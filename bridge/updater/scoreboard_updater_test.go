package updater

import (
	"testing"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/scoreboard"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/session"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testThresholds = Thresholds{
	First:               3,
	Second:              6,
	FirstFlushInterval:  250 * time.Millisecond,
	SecondFlushInterval: 900 * time.Millisecond,
}

func newTestUpdater(t *testing.T) (*ScoreboardUpdater, *session.Manager, *metrics.Metrics) {
	t.Helper()
	m := metrics.New("test", prometheus.NewRegistry())
	sessions := session.NewManager(16, nil, nil)
	return NewScoreboardUpdater(sessions, testThresholds, 50*time.Millisecond, m, nil), sessions, m
}

func dirty(t *testing.T, s *session.Session, team string) {
	t.Helper()
	require.True(t, s.WithScoreboard(func(sb *scoreboard.Scoreboard) {
		sb.RegisterNewTeam(team, nil)
	}))
}

func bump(s *session.Session, n int) {
	for i := 0; i < n; i++ {
		s.RateCounter().IncrementAndGet()
	}
}

func TestTickFlushesUnthrottledSession(t *testing.T) {
	su, sessions, m := newTestUpdater(t)
	s := sessions.Open("viewer", "en_us")
	dirty(t, s, "red")

	su.performTick(time.Unix(1000, 0))

	assert.False(t, s.HasPending())
	assert.Equal(t, int64(1), s.Stats().PeriodicFlushes)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Flushes.WithLabelValues("periodic")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestTickSkipsSessionWithoutPending(t *testing.T) {
	su, sessions, _ := newTestUpdater(t)
	s := sessions.Open("viewer", "en_us")

	su.performTick(time.Unix(1000, 0))

	assert.Equal(t, int64(0), s.Stats().PeriodicFlushes)
}

func TestTickSpacesFlushesInFirstBand(t *testing.T) {
	su, sessions, _ := newTestUpdater(t)
	s := sessions.Open("viewer", "en_us")
	start := time.Unix(1000, 0)
	bump(s, testThresholds.First)

	dirty(t, s, "a")
	su.performTick(start)
	require.Equal(t, int64(1), s.Stats().PeriodicFlushes)

	dirty(t, s, "b")
	su.performTick(start.Add(100 * time.Millisecond))
	assert.True(t, s.HasPending(), "flush held back inside the interval")

	su.performTick(start.Add(250 * time.Millisecond))
	assert.False(t, s.HasPending())
	assert.Equal(t, int64(2), s.Stats().PeriodicFlushes)
}

func TestTickSpacesFlushesInSecondBand(t *testing.T) {
	su, sessions, _ := newTestUpdater(t)
	s := sessions.Open("viewer", "en_us")
	start := time.Unix(1000, 0)
	bump(s, testThresholds.Second)

	dirty(t, s, "a")
	su.performTick(start)

	dirty(t, s, "b")
	su.performTick(start.Add(500 * time.Millisecond))
	assert.True(t, s.HasPending())

	su.performTick(start.Add(900 * time.Millisecond))
	assert.False(t, s.HasPending())
}

func TestTickResetsRateWindow(t *testing.T) {
	su, sessions, _ := newTestUpdater(t)
	s := sessions.Open("viewer", "en_us")
	start := time.Unix(1000, 0)

	su.performTick(start)
	bump(s, 5)

	su.performTick(start.Add(500 * time.Millisecond))
	assert.Equal(t, 5, s.RateCounter().Current(), "window still running")

	su.performTick(start.Add(time.Second))
	assert.Equal(t, 0, s.RateCounter().Current())
	assert.Equal(t, 5, s.RateCounter().Previous())

	su.performTick(start.Add(2 * time.Second))
	assert.Equal(t, 0, s.RateCounter().Rate())
}

func TestTickIgnoresClosedSessions(t *testing.T) {
	su, sessions, m := newTestUpdater(t)
	s := sessions.Open("viewer", "en_us")
	dirty(t, s, "red")
	_, err := sessions.Close(s.ID())
	require.NoError(t, err)

	su.performTick(time.Unix(1000, 0))

	assert.Equal(t, int64(0), s.Stats().PeriodicFlushes)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestStartStop(t *testing.T) {
	su, _, _ := newTestUpdater(t)
	done := make(chan struct{})
	go func() {
		su.Start()
		close(done)
	}()
	su.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("updater did not stop")
	}
}

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/scoreboard"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/session"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/store"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/metrics"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	kind int
	data []byte
}

type fakeConn struct {
	mu       sync.Mutex
	messages []message
	closed   bool
	failAt   int // fail the n-th write (1-based), 0 never
}

func (c *fakeConn) WriteMessage(kind int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAt > 0 && len(c.messages)+1 == c.failAt {
		return errors.New("broken pipe")
	}
	c.messages = append(c.messages, message{kind: kind, data: data})
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) snapshot() ([]message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message(nil), c.messages...), c.closed
}

func (c *fakeConn) textUpdates(t *testing.T) []scoreboard.Update {
	t.Helper()
	msgs, _ := c.snapshot()
	var out []scoreboard.Update
	for _, m := range msgs {
		if m.kind != websocket.TextMessage {
			continue
		}
		var u scoreboard.Update
		require.NoError(t, json.Unmarshal(m.data, &u))
		out = append(out, u)
	}
	return out
}

type fakeSaver struct {
	mu    sync.Mutex
	saved map[string]store.Snapshot
	err   error
}

func (s *fakeSaver) Save(_ context.Context, sessionID string, snap store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.saved == nil {
		s.saved = make(map[string]store.Snapshot)
	}
	s.saved[sessionID] = snap
	return nil
}

func (s *fakeSaver) get(sessionID string) (store.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.saved[sessionID]
	return snap, ok
}

func addTeam(t *testing.T, s *session.Session, name string, members ...string) {
	t.Helper()
	require.True(t, s.WithScoreboard(func(sb *scoreboard.Scoreboard) {
		team := sb.RegisterNewTeam(name, members).SetColor(scoreboard.ColorGold)
		sb.UpdateEntityNames(team, true)
	}))
	require.True(t, s.FlushImmediate(time.Now()))
}

func TestAttachSendsFullState(t *testing.T) {
	sessions := session.NewManager(8, nil, nil)
	s := sessions.Open("viewer", "en_us")
	addTeam(t, s, "red", "alice")
	f := NewForwarder(s, nil, nil, nil)

	conn := &fakeConn{}
	require.NoError(t, f.Attach(conn))

	updates := conn.textUpdates(t)
	require.Len(t, updates, 1)
	require.Len(t, updates[0].Teams, 1)
	assert.Equal(t, scoreboard.UpdateAdd, updates[0].Teams[0].Action)
	assert.Equal(t, []string{"alice"}, updates[0].Teams[0].Members)
	assert.Len(t, updates[0].Nameplates, 1)

	assert.ErrorIs(t, f.Attach(&fakeConn{}), ErrAlreadyAttached)
}

// A client applies the first frame as a reset and every later frame on top of
// it. Updates flushed while Attach runs must never overtake the full state.
func TestAttachFullStatePrecedesConcurrentUpdates(t *testing.T) {
	const seeds, produced = 5, 200

	for iter := 0; iter < 20; iter++ {
		sessions := session.NewManager(seeds+produced, nil, nil)
		s := sessions.Open("viewer", "en_us")
		require.True(t, s.WithScoreboard(func(sb *scoreboard.Scoreboard) {
			for i := 0; i < seeds; i++ {
				sb.RegisterNewTeam(fmt.Sprintf("seed%d", i), nil)
			}
		}))
		require.True(t, s.FlushImmediate(time.Now()))

		hub := NewHub(nil, nil, nil)
		f := hub.Start(context.Background(), s)
		require.Eventually(t, func() bool { return f.Forwarded() == 1 }, time.Second, time.Millisecond)

		flushed := make(chan int)
		go func() {
			n := 0
			for i := 0; i < produced; i++ {
				s.WithScoreboard(func(sb *scoreboard.Scoreboard) {
					sb.RegisterNewTeam(fmt.Sprintf("t%04d", i), nil)
				})
				if s.FlushImmediate(time.Now()) {
					n++
				}
			}
			flushed <- n
		}()

		conn := &fakeConn{}
		require.NoError(t, f.Attach(conn))
		n := <-flushed
		require.Eventually(t, func() bool { return f.Forwarded() == 1+n }, 2*time.Second, time.Millisecond)

		frames := conn.textUpdates(t)
		require.NotEmpty(t, frames)
		require.GreaterOrEqual(t, len(frames[0].Teams), seeds, "iteration %d: first frame is not the full state", iter)

		client := make(map[string]bool)
		for _, tu := range frames[0].Teams {
			client[tu.Name] = true
		}
		for _, u := range frames[1:] {
			for _, tu := range u.Teams {
				if tu.Action == scoreboard.UpdateRemove {
					delete(client, tu.Name)
				} else {
					client[tu.Name] = true
				}
			}
		}

		var want []string
		require.True(t, s.WithScoreboard(func(sb *scoreboard.Scoreboard) {
			for _, st := range sb.Teams() {
				want = append(want, st.Name)
			}
		}))
		assert.Equal(t, want, slices.Sorted(maps.Keys(client)), "iteration %d", iter)

		_, err := sessions.Close(s.ID())
		require.NoError(t, err)
		hub.Wait()
	}
}

func TestAttachToClosedSession(t *testing.T) {
	sessions := session.NewManager(8, nil, nil)
	s := sessions.Open("viewer", "en_us")
	_, err := sessions.Close(s.ID())
	require.NoError(t, err)
	f := NewForwarder(s, nil, nil, nil)

	conn := &fakeConn{}
	assert.ErrorIs(t, f.Attach(conn), session.ErrSessionNotFound)
	_, closed := conn.snapshot()
	assert.True(t, closed)

	// The slot is free again.
	assert.NotErrorIs(t, f.Attach(&fakeConn{}), ErrAlreadyAttached)
}

func TestForwarderStreamsAndSnapshots(t *testing.T) {
	sessions := session.NewManager(8, nil, nil)
	s := sessions.Open("viewer", "en_us")
	saver := &fakeSaver{}
	hub := NewHub(saver, nil, nil)
	f := hub.Start(context.Background(), s)

	conn := &fakeConn{}
	require.NoError(t, f.Attach(conn))
	addTeam(t, s, "red", "alice")

	require.Eventually(t, func() bool { return f.Forwarded() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := saver.get(s.ID())
		return ok
	}, time.Second, 5*time.Millisecond)

	updates := conn.textUpdates(t)
	require.Len(t, updates, 2)
	assert.True(t, updates[0].Empty(), "full state of an empty scoreboard")
	assert.Equal(t, "red", updates[1].Teams[0].Name)

	snap, _ := saver.get(s.ID())
	require.Len(t, snap.Teams, 1)
	assert.Equal(t, "red", snap.Teams[0].Name)
	assert.Equal(t, []scoreboard.Nameplate{{Entity: "alice", Text: "§6§6alice§6", Visible: true}}, snap.Nameplates)

	_, err := sessions.Close(s.ID())
	require.NoError(t, err)
	hub.Wait()

	msgs, closed := conn.snapshot()
	assert.True(t, closed)
	assert.Equal(t, websocket.CloseMessage, msgs[len(msgs)-1].kind)
	_, ok := hub.Get(s.ID())
	assert.False(t, ok)
}

func TestForwarderDropsSubscriberOnWriteFailure(t *testing.T) {
	sessions := session.NewManager(8, nil, nil)
	s := sessions.Open("viewer", "en_us")
	hub := NewHub(nil, nil, nil)
	f := hub.Start(context.Background(), s)

	conn := &fakeConn{failAt: 2}
	require.NoError(t, f.Attach(conn))
	addTeam(t, s, "red")

	require.Eventually(t, func() bool {
		_, closed := conn.snapshot()
		return closed
	}, time.Second, 5*time.Millisecond)

	next := &fakeConn{}
	assert.NoError(t, f.Attach(next), "a new subscriber may attach")

	_, err := sessions.Close(s.ID())
	require.NoError(t, err)
	hub.Wait()
}

func TestForwarderCountsSnapshotFailures(t *testing.T) {
	m := metrics.New("test", prometheus.NewRegistry())
	sessions := session.NewManager(8, nil, nil)
	s := sessions.Open("viewer", "en_us")
	hub := NewHub(&fakeSaver{err: errors.New("cluster down")}, m, nil)
	f := hub.Start(context.Background(), s)

	addTeam(t, s, "red")
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.StoreErrorsTotal.WithLabelValues("snapshot", "save")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.Forwarded())

	_, err := sessions.Close(s.ID())
	require.NoError(t, err)
	hub.Wait()
}

func TestHubStopsForwardersWithContext(t *testing.T) {
	sessions := session.NewManager(8, nil, nil)
	s := sessions.Open("viewer", "en_us")
	hub := NewHub(nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	hub.Start(ctx, s)

	_, ok := hub.Get(s.ID())
	require.True(t, ok)

	cancel()
	hub.Wait()
	_, ok = hub.Get(s.ID())
	assert.False(t, ok)
}

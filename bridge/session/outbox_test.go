package session

import (
	"testing"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/scoreboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxDropsWhenFull(t *testing.T) {
	drops := 0
	o := NewOutbox(1, func() { drops++ })

	assert.True(t, o.Send(scoreboard.Update{}))
	assert.False(t, o.Send(scoreboard.Update{}))
	assert.Equal(t, int64(1), o.Dropped())
	assert.Equal(t, 1, drops)
}

func TestOutboxCloseKeepsQueuedUpdates(t *testing.T) {
	o := NewOutbox(2, nil)
	want := scoreboard.Update{Nameplates: []scoreboard.Nameplate{{Entity: "alice", Text: "alice", Visible: true}}}
	require.True(t, o.Send(want))

	o.Close()
	o.Close()
	assert.False(t, o.Send(scoreboard.Update{}))
	assert.Equal(t, int64(0), o.Dropped(), "closed outbox does not count drops")

	got, ok := <-o.Updates()
	require.True(t, ok)
	assert.Equal(t, want, got)
	_, ok = <-o.Updates()
	assert.False(t, ok)
}

func TestNewOutboxMinimumSize(t *testing.T) {
	o := NewOutbox(0, nil)
	assert.True(t, o.Send(scoreboard.Update{}))
	assert.False(t, o.Send(scoreboard.Update{}))
}

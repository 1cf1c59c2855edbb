package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	bridgeapi "github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/api"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/service"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/session"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/stream"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/translator"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/updater"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/api"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBridge(t *testing.T) *BridgeClient {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := stream.NewHub(nil, nil, nil)
	thresholds := updater.DefaultThresholds()
	svc := service.NewBridgeService(ctx, session.NewManager(16, nil, nil),
		translator.NewTeamTranslator(nil, nil, thresholds), hub,
		nil, nil, nil, thresholds, "bridge-1", nil, nil)

	router := mux.NewRouter()
	bridgeapi.NewBridgeAPIHandlers(svc, nil, nil).RegisterRoutes(router)
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		svc.Shutdown(context.Background())
		cancel()
		hub.Wait()
	})
	return NewBridgeClient(server.URL, server.Client(), nil)
}

func TestSessionLifecycle(t *testing.T) {
	c := newTestBridge(t)
	ctx := context.Background()

	opened, err := c.OpenSession(ctx, "alice", "en_us")
	require.NoError(t, err)
	require.NotEmpty(t, opened.ID)

	require.NoError(t, c.SendEvent(ctx, opened.ID, translator.Event{
		Action:   translator.ActionCreate,
		TeamName: "red",
		Players:  []string{"alice"},
	}))

	view, err := c.Scoreboard(ctx, opened.ID)
	require.NoError(t, err)
	require.Len(t, view.Teams, 1)
	assert.Equal(t, []string{"alice"}, view.Teams[0].Members)

	presence, err := c.Presence(ctx, opened.ID)
	require.NoError(t, err)
	assert.Equal(t, "bridge-1", presence.ServiceID)

	stats, err := c.CloseSession(ctx, opened.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.EventsProcessed)

	_, err = c.Stats(ctx, opened.ID)
	assert.ErrorIs(t, err, api.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, api.StatusCode(err))
}

func TestSendEventsSplitsLargeBatches(t *testing.T) {
	c := newTestBridge(t)
	ctx := context.Background()
	opened, err := c.OpenSession(ctx, "alice", "en_us")
	require.NoError(t, err)

	events := make([]translator.Event, bridgeapi.MaxBatchEvents+10)
	for i := range events {
		events[i] = translator.Event{Action: translator.ActionRemove, TeamName: "ghost"}
	}

	sent, err := c.SendEvents(ctx, opened.ID, events)
	require.NoError(t, err)
	assert.Equal(t, len(events), sent)

	stats, err := c.Stats(ctx, opened.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(events)), stats.EventsProcessed)
}

func TestErrorsCarryServerMessage(t *testing.T) {
	c := newTestBridge(t)

	_, err := c.OpenSession(context.Background(), "", "en_us")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrBadRequest)

	var httpErr *api.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, "viewer is required", httpErr.Message)

	_, err = c.SendEvents(context.Background(), "missing", []translator.Event{{Action: translator.ActionRemove}})
	assert.ErrorIs(t, err, api.ErrNotFound)

	_, err = c.History(context.Background(), "alice", 1000)
	assert.ErrorIs(t, err, api.ErrBadRequest)
}

func TestHistoryWithoutStatsStore(t *testing.T) {
	c := newTestBridge(t)

	history, err := c.History(context.Background(), "alice", 5)
	require.NoError(t, err)
	assert.Empty(t, history)
}

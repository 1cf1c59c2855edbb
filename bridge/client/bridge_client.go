// bridge/client/bridge_client.go
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	bridgeapi "github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/api"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/service"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/store"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/translator"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/api"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/models"
	"go.uber.org/zap"
)

// BridgeClient is used by upstream proxies to drive sessions on a bridge
// instance.
type BridgeClient struct {
	apiClient *api.Client
}

// NewBridgeClient creates a client for the bridge at baseURL. httpClient may
// be nil.
func NewBridgeClient(baseURL string, httpClient *http.Client, logger *zap.Logger) *BridgeClient {
	return &BridgeClient{apiClient: api.NewClient(baseURL, httpClient, logger)}
}

// OpenSession opens a session for viewer and returns its id.
func (c *BridgeClient) OpenSession(ctx context.Context, viewer, locale string) (bridgeapi.OpenSessionResponse, error) {
	var resp bridgeapi.OpenSessionResponse
	err := c.apiClient.Post(ctx, "/sessions", bridgeapi.OpenSessionRequest{Viewer: viewer, Locale: locale}, &resp)
	return resp, err
}

// CloseSession closes a session and returns its final statistics.
func (c *BridgeClient) CloseSession(ctx context.Context, sessionID string) (models.SessionStats, error) {
	var stats models.SessionStats
	err := c.apiClient.Delete(ctx, sessionPath(sessionID, ""), &stats)
	return stats, err
}

// SendEvent forwards one upstream team event.
func (c *BridgeClient) SendEvent(ctx context.Context, sessionID string, ev translator.Event) error {
	return c.apiClient.Post(ctx, sessionPath(sessionID, "/teams"), ev, nil)
}

// SendEvents forwards events in order. Batches larger than the server limit
// are split.
func (c *BridgeClient) SendEvents(ctx context.Context, sessionID string, events []translator.Event) (int, error) {
	sent := 0
	for len(events) > 0 {
		n := min(len(events), bridgeapi.MaxBatchEvents)
		var resp bridgeapi.AcceptedResponse
		if err := c.apiClient.Post(ctx, sessionPath(sessionID, "/teams/batch"), events[:n], &resp); err != nil {
			return sent, fmt.Errorf("batch after %d accepted events: %w", sent, err)
		}
		sent += resp.Accepted
		events = events[n:]
	}
	return sent, nil
}

func (c *BridgeClient) Scoreboard(ctx context.Context, sessionID string) (service.ScoreboardView, error) {
	var view service.ScoreboardView
	err := c.apiClient.Get(ctx, sessionPath(sessionID, "/scoreboard"), &view)
	return view, err
}

func (c *BridgeClient) Snapshot(ctx context.Context, sessionID string) (store.Snapshot, error) {
	var snap store.Snapshot
	err := c.apiClient.Get(ctx, sessionPath(sessionID, "/snapshot"), &snap)
	return snap, err
}

func (c *BridgeClient) Stats(ctx context.Context, sessionID string) (models.SessionStats, error) {
	var stats models.SessionStats
	err := c.apiClient.Get(ctx, sessionPath(sessionID, "/stats"), &stats)
	return stats, err
}

// Presence tells which bridge instance owns a session.
func (c *BridgeClient) Presence(ctx context.Context, sessionID string) (models.SessionPresence, error) {
	var p models.SessionPresence
	err := c.apiClient.Get(ctx, sessionPath(sessionID, "/presence"), &p)
	return p, err
}

// History lists the finished sessions of viewer, newest first. A limit of
// zero uses the server default.
func (c *BridgeClient) History(ctx context.Context, viewer string, limit int) ([]models.SessionStats, error) {
	path := "/viewers/" + url.PathEscape(viewer) + "/sessions"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var history []models.SessionStats
	err := c.apiClient.Get(ctx, path, &history)
	return history, err
}

func sessionPath(sessionID, suffix string) string {
	return "/sessions/" + url.PathEscape(sessionID) + suffix
}

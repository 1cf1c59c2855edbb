// bridge/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/service"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/session"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/stream"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/translator"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/api"
	redisu "github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/redis"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// MaxBatchEvents bounds a single batch request.
	MaxBatchEvents = 1024

	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// BridgeAPIHandlers holds the business logic the HTTP routes delegate to.
type BridgeAPIHandlers struct {
	Service  *service.BridgeService
	metrics  http.Handler
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewBridgeAPIHandlers creates the handlers. metricsHandler serves /metrics
// and may be nil.
func NewBridgeAPIHandlers(bs *service.BridgeService, metricsHandler http.Handler, logger *zap.Logger) *BridgeAPIHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BridgeAPIHandlers{
		Service: bs,
		metrics: metricsHandler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// OpenSessionRequest is the body of POST /sessions.
type OpenSessionRequest struct {
	Viewer string `json:"viewer"`
	Locale string `json:"locale"`
}

// OpenSessionResponse is returned by POST /sessions.
type OpenSessionResponse struct {
	ID       string    `json:"id"`
	Viewer   string    `json:"viewer"`
	Locale   string    `json:"locale"`
	OpenedAt time.Time `json:"openedAt"`
}

// AcceptedResponse acknowledges queued events.
type AcceptedResponse struct {
	Accepted int `json:"accepted"`
}

// RegisterRoutes registers all bridge routes on the router.
func (h *BridgeAPIHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	if h.metrics != nil {
		router.Handle("/metrics", h.metrics).Methods(http.MethodGet)
	}

	router.HandleFunc("/sessions", h.HandleOpenSession).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}", h.HandleCloseSession).Methods(http.MethodDelete)
	router.HandleFunc("/sessions/{id}/teams", h.HandleTeamEvent).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/teams/batch", h.HandleTeamEventBatch).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/scoreboard", h.HandleGetScoreboard).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}/snapshot", h.HandleGetSnapshot).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}/stats", h.HandleGetStats).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}/presence", h.HandleGetPresence).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}/stream", h.HandleStream).Methods(http.MethodGet)
	router.HandleFunc("/viewers/{viewer}/sessions", h.HandleViewerHistory).Methods(http.MethodGet)
}

// HandleHealth reports liveness and the number of local sessions.
// GET /health
func (h *BridgeAPIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.Service.Sessions.Len(),
	})
}

// HandleOpenSession opens a session for a downstream player.
// POST /sessions
// Body: { "viewer": "<entity id>", "locale": "en_us" }
func (h *BridgeAPIHandlers) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid request body", err.Error())
		return
	}
	if req.Viewer == "" {
		api.WriteBadRequest(w, "viewer is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	s, err := h.Service.OpenSession(ctx, req.Viewer, req.Locale)
	if err != nil {
		api.WriteInternalServerError(w, "Failed to open session", err.Error())
		return
	}
	api.WriteJSON(w, http.StatusCreated, OpenSessionResponse{
		ID:       s.ID(),
		Viewer:   s.Viewer(),
		Locale:   s.Locale(),
		OpenedAt: s.OpenedAt(),
	})
}

// HandleCloseSession tears a session down and returns its final statistics.
// DELETE /sessions/{id}
func (h *BridgeAPIHandlers) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := h.Service.CloseSession(ctx, id)
	if errors.Is(err, session.ErrSessionNotFound) {
		api.WriteNotFound(w, "Session not found")
		return
	}
	if err != nil {
		// The session is gone either way; only persistence failed.
		h.logger.Error("session closed with errors", zap.String("session_id", id), zap.Error(err))
	}
	api.WriteJSON(w, http.StatusOK, stats)
}

// HandleTeamEvent applies one upstream team event.
// POST /sessions/{id}/teams
func (h *BridgeAPIHandlers) HandleTeamEvent(w http.ResponseWriter, r *http.Request) {
	var ev translator.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		api.WriteBadRequest(w, "Invalid team event", err.Error())
		return
	}
	h.applyEvents(w, mux.Vars(r)["id"], ev)
}

// HandleTeamEventBatch applies upstream team events in order.
// POST /sessions/{id}/teams/batch
func (h *BridgeAPIHandlers) HandleTeamEventBatch(w http.ResponseWriter, r *http.Request) {
	var events []translator.Event
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		api.WriteBadRequest(w, "Invalid team event batch", err.Error())
		return
	}
	if len(events) > MaxBatchEvents {
		api.WriteBadRequest(w, "Too many events in batch", fmt.Sprintf("limit is %d", MaxBatchEvents))
		return
	}
	h.applyEvents(w, mux.Vars(r)["id"], events...)
}

func (h *BridgeAPIHandlers) applyEvents(w http.ResponseWriter, id string, events ...translator.Event) {
	if err := h.Service.ApplyEvents(id, events...); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			api.WriteNotFound(w, "Session not found")
			return
		}
		api.WriteInternalServerError(w, "Failed to apply team events")
		return
	}
	api.WriteJSON(w, http.StatusAccepted, AcceptedResponse{Accepted: len(events)})
}

// HandleGetScoreboard returns teams, nameplates and rate of a live session.
// GET /sessions/{id}/scoreboard
func (h *BridgeAPIHandlers) HandleGetScoreboard(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Scoreboard(mux.Vars(r)["id"])
	if errors.Is(err, session.ErrSessionNotFound) {
		api.WriteNotFound(w, "Session not found")
		return
	}
	if err != nil {
		api.WriteInternalServerError(w, "Failed to read scoreboard")
		return
	}
	api.WriteJSON(w, http.StatusOK, view)
}

// HandleGetSnapshot returns the last forwarded scoreboard stored in Redis.
// GET /sessions/{id}/snapshot
func (h *BridgeAPIHandlers) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snap, err := h.Service.Snapshot(ctx, mux.Vars(r)["id"])
	if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, redisu.ErrRedisKeyNotFound) {
		api.WriteNotFound(w, "Snapshot not found")
		return
	}
	if err != nil {
		api.WriteInternalServerError(w, "Failed to read snapshot")
		return
	}
	api.WriteJSON(w, http.StatusOK, snap)
}

// HandleGetStats returns live or persisted session statistics.
// GET /sessions/{id}/stats
func (h *BridgeAPIHandlers) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	stats, err := h.Service.Stats(ctx, mux.Vars(r)["id"])
	if errors.Is(err, session.ErrSessionNotFound) {
		api.WriteNotFound(w, "Session not found")
		return
	}
	if err != nil {
		api.WriteInternalServerError(w, "Failed to read session stats")
		return
	}
	api.WriteJSON(w, http.StatusOK, stats)
}

// HandleGetPresence reports which bridge instance owns a session.
// GET /sessions/{id}/presence
func (h *BridgeAPIHandlers) HandleGetPresence(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Service.Presence(ctx, mux.Vars(r)["id"])
	if errors.Is(err, session.ErrSessionNotFound) {
		api.WriteNotFound(w, "Session not found")
		return
	}
	if err != nil {
		api.WriteInternalServerError(w, "Failed to read session presence")
		return
	}
	api.WriteJSON(w, http.StatusOK, p)
}

// HandleViewerHistory lists the finished sessions of a viewer, newest first.
// GET /viewers/{viewer}/sessions?limit=20
func (h *BridgeAPIHandlers) HandleViewerHistory(w http.ResponseWriter, r *http.Request) {
	limit := int64(defaultHistoryLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			api.WriteBadRequest(w, "Invalid limit", fmt.Sprintf("must be between 1 and %d", maxHistoryLimit))
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	history, err := h.Service.History(ctx, mux.Vars(r)["viewer"], limit)
	if err != nil {
		api.WriteInternalServerError(w, "Failed to list viewer sessions")
		return
	}
	api.WriteJSON(w, http.StatusOK, history)
}

// HandleStream upgrades to a websocket that receives the session's full
// scoreboard followed by every flushed update.
// GET /sessions/{id}/stream
func (h *BridgeAPIHandlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := h.Service.Sessions.Get(id); err != nil {
		api.WriteNotFound(w, "Session not found")
		return
	}
	if f, ok := h.Service.Hub.Get(id); ok && f.Attached() {
		api.WriteConflict(w, "Session already has a stream subscriber")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", id), zap.Error(err))
		return
	}
	conn.SetReadDeadline(time.Time{})

	f, err := h.Service.Attach(id, conn)
	if err != nil {
		reason := "session closed"
		if errors.Is(err, stream.ErrAlreadyAttached) {
			reason = "already attached"
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
		conn.Close()
		return
	}

	// The stream is write-only; reading detects the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			f.Detach(conn)
			return
		}
	}
}

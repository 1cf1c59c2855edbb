// bridge/service/bridge_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/scoreboard"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/session"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/store"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/stream"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/translator"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/updater"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/metrics"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/models"
	redisu "github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/redis"
	"go.uber.org/zap"
)

// PresenceStore publishes which sessions live on this instance.
type PresenceStore interface {
	SetPresent(ctx context.Context, p models.SessionPresence) error
	GetPresence(ctx context.Context, sessionID string) (models.SessionPresence, error)
	Remove(ctx context.Context, sessionID string) error
}

// SnapshotStore holds the last forwarded scoreboard of each session.
type SnapshotStore interface {
	stream.SnapshotSaver
	Get(ctx context.Context, sessionID string) (store.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}

// StatsStore persists the counters of finished sessions.
type StatsStore interface {
	Save(ctx context.Context, stats models.SessionStats) error
	Get(ctx context.Context, sessionID string) (models.SessionStats, error)
	ListByViewer(ctx context.Context, viewer string, limit int64) ([]models.SessionStats, error)
}

// ScoreboardView is the inspection view of a live session.
type ScoreboardView struct {
	SessionID  string                 `json:"sessionId"`
	Viewer     string                 `json:"viewer"`
	Teams      []scoreboard.TeamState `json:"teams"`
	Nameplates []scoreboard.Nameplate `json:"nameplates"`
	Pending    bool                   `json:"pending"`
	Rate       RateView               `json:"rate"`
}

// RateView reports a session's event rate and its threshold band.
type RateView struct {
	Current  int    `json:"current"`
	Previous int    `json:"previous"`
	Peak     int    `json:"peak"`
	Band     string `json:"band"`
}

// BridgeService ties sessions, the translator, forwarders and the stores
// together. The stores are optional; a nil store is skipped.
type BridgeService struct {
	Sessions   *session.Manager
	Translator *translator.TeamTranslator
	Hub        *stream.Hub

	presence   PresenceStore
	snapshots  SnapshotStore
	stats      StatsStore
	thresholds updater.Thresholds
	serviceID  string
	metrics    *metrics.Metrics
	logger     *zap.Logger

	// ctx bounds the lifetime of forwarder goroutines.
	ctx context.Context
}

// NewBridgeService is the constructor for BridgeService.
func NewBridgeService(
	ctx context.Context,
	sessions *session.Manager,
	tt *translator.TeamTranslator,
	hub *stream.Hub,
	presence PresenceStore,
	snapshots SnapshotStore,
	stats StatsStore,
	thresholds updater.Thresholds,
	serviceID string,
	m *metrics.Metrics,
	logger *zap.Logger,
) *BridgeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BridgeService{
		Sessions:   sessions,
		Translator: tt,
		Hub:        hub,
		presence:   presence,
		snapshots:  snapshots,
		stats:      stats,
		thresholds: thresholds,
		serviceID:  serviceID,
		metrics:    m,
		logger:     logger,
		ctx:        ctx,
	}
}

// OpenSession registers a session, publishes its presence and starts its
// forwarder. A presence failure is logged; the syncer retries it.
func (bs *BridgeService) OpenSession(ctx context.Context, viewer, locale string) (*session.Session, error) {
	if viewer == "" {
		return nil, fmt.Errorf("viewer is required")
	}
	s := bs.Sessions.Open(viewer, locale)
	bs.Hub.Start(bs.ctx, s)

	if bs.presence != nil {
		err := bs.presence.SetPresent(ctx, models.SessionPresence{
			SessionID: s.ID(),
			Viewer:    viewer,
			ServiceID: bs.serviceID,
			OpenedAt:  s.OpenedAt(),
		})
		if err != nil {
			bs.storeError("presence", "set")
			bs.logger.Warn("failed to publish session presence", zap.String("session_id", s.ID()), zap.Error(err))
		}
	}
	return s, nil
}

// CloseSession tears a session down and persists its final statistics.
func (bs *BridgeService) CloseSession(ctx context.Context, sessionID string) (models.SessionStats, error) {
	s, err := bs.Sessions.Close(sessionID)
	if err != nil {
		return models.SessionStats{}, err
	}
	return bs.finish(ctx, s)
}

// Shutdown closes every session and persists their statistics.
func (bs *BridgeService) Shutdown(ctx context.Context) error {
	var errs []error
	for _, s := range bs.Sessions.CloseAll() {
		if _, err := bs.finish(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (bs *BridgeService) finish(ctx context.Context, s *session.Session) (models.SessionStats, error) {
	stats := s.Stats()
	closedAt := time.Now()
	stats.ClosedAt = &closedAt
	stats.ServiceID = bs.serviceID

	var errs []error
	if bs.stats != nil {
		if err := bs.stats.Save(ctx, stats); err != nil {
			bs.storeError("stats", "save")
			errs = append(errs, fmt.Errorf("failed to persist stats for session %s: %w", s.ID(), err))
		}
	}
	if bs.presence != nil {
		if err := bs.presence.Remove(ctx, s.ID()); err != nil {
			bs.storeError("presence", "remove")
			bs.logger.Warn("failed to remove session presence", zap.String("session_id", s.ID()), zap.Error(err))
		}
	}
	if bs.snapshots != nil {
		if err := bs.snapshots.Delete(ctx, s.ID()); err != nil {
			bs.storeError("snapshot", "delete")
			bs.logger.Warn("failed to delete scoreboard snapshot", zap.String("session_id", s.ID()), zap.Error(err))
		}
	}
	return stats, errors.Join(errs...)
}

// ApplyEvents feeds events to a session's translator in order.
func (bs *BridgeService) ApplyEvents(sessionID string, events ...translator.Event) error {
	s, err := bs.Sessions.Get(sessionID)
	if err != nil {
		return err
	}
	for _, ev := range events {
		bs.Translator.Translate(s, ev)
	}
	return nil
}

// Scoreboard returns the current view of a live session.
func (bs *BridgeService) Scoreboard(sessionID string) (ScoreboardView, error) {
	s, err := bs.Sessions.Get(sessionID)
	if err != nil {
		return ScoreboardView{}, err
	}
	view := ScoreboardView{SessionID: s.ID(), Viewer: s.Viewer()}
	open := s.WithScoreboard(func(sb *scoreboard.Scoreboard) {
		view.Teams = sb.Teams()
		view.Nameplates = sb.Nameplates()
		view.Pending = sb.Pending()
	})
	if !open {
		return ScoreboardView{}, session.ErrSessionNotFound
	}
	rc := s.RateCounter()
	view.Rate = RateView{
		Current:  rc.Current(),
		Previous: rc.Previous(),
		Peak:     rc.Peak(),
		Band:     bs.thresholds.Band(rc.Rate()),
	}
	return view, nil
}

// Snapshot returns the last forwarded scoreboard of a session, which may
// live on another instance.
func (bs *BridgeService) Snapshot(ctx context.Context, sessionID string) (store.Snapshot, error) {
	if bs.snapshots == nil {
		return store.Snapshot{}, session.ErrSessionNotFound
	}
	return bs.snapshots.Get(ctx, sessionID)
}

// Stats returns live counters for an open session, or the persisted ones for
// a finished session.
func (bs *BridgeService) Stats(ctx context.Context, sessionID string) (models.SessionStats, error) {
	if s, err := bs.Sessions.Get(sessionID); err == nil {
		stats := s.Stats()
		stats.ServiceID = bs.serviceID
		return stats, nil
	}
	if bs.stats == nil {
		return models.SessionStats{}, session.ErrSessionNotFound
	}
	stats, err := bs.stats.Get(ctx, sessionID)
	if errors.Is(err, store.ErrStatsNotFound) {
		return models.SessionStats{}, session.ErrSessionNotFound
	}
	return stats, err
}

// Presence reports which instance owns a session. Local sessions are
// answered without a store round trip.
func (bs *BridgeService) Presence(ctx context.Context, sessionID string) (models.SessionPresence, error) {
	if s, err := bs.Sessions.Get(sessionID); err == nil {
		return models.SessionPresence{
			SessionID: s.ID(),
			Viewer:    s.Viewer(),
			ServiceID: bs.serviceID,
			OpenedAt:  s.OpenedAt(),
		}, nil
	}
	if bs.presence == nil {
		return models.SessionPresence{}, session.ErrSessionNotFound
	}
	p, err := bs.presence.GetPresence(ctx, sessionID)
	if errors.Is(err, redisu.ErrRedisKeyNotFound) {
		return models.SessionPresence{}, session.ErrSessionNotFound
	}
	return p, err
}

// History returns the finished sessions of a viewer, newest first.
func (bs *BridgeService) History(ctx context.Context, viewer string, limit int64) ([]models.SessionStats, error) {
	if bs.stats == nil {
		return []models.SessionStats{}, nil
	}
	return bs.stats.ListByViewer(ctx, viewer, limit)
}

// Attach connects a stream subscriber to a live session.
func (bs *BridgeService) Attach(sessionID string, conn stream.Conn) (*stream.Forwarder, error) {
	if _, err := bs.Sessions.Get(sessionID); err != nil {
		return nil, err
	}
	f, ok := bs.Hub.Get(sessionID)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	if err := f.Attach(conn); err != nil {
		return nil, err
	}
	return f, nil
}

func (bs *BridgeService) storeError(store, op string) {
	if bs.metrics != nil {
		bs.metrics.StoreErrorsTotal.WithLabelValues(store, op).Inc()
	}
}

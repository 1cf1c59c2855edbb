// bridge/syncer/session_syncer.go
package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/session"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/metrics"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/models"
	redisu "github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/redis"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// globalCleanupTaskKey is hashed onto the ring so exactly one instance in the
// cluster collects orphaned snapshots.
const globalCleanupTaskKey = "global_snapshot_cleanup_task"

// PresenceStore is the subset of the Redis presence store the syncer needs.
type PresenceStore interface {
	SetPresent(ctx context.Context, p models.SessionPresence) error
	Refresh(ctx context.Context, sessionID string) error
	PresentSessionIDs(ctx context.Context) (map[string]struct{}, error)
}

// SnapshotStore is the subset of the Redis snapshot store the syncer needs.
type SnapshotStore interface {
	SnapshotSessionIDs(ctx context.Context) (map[string]struct{}, error)
	Delete(ctx context.Context, sessionID string) error
}

// Leadership decides which instance runs a cluster-wide task.
type Leadership interface {
	IsResponsible(key string) (bool, error)
}

// Config tunes the syncer.
type Config struct {
	Interval    time.Duration
	Timeout     time.Duration
	Concurrency int
	ServiceID   string
}

// SessionSyncer keeps the presence keys of local sessions alive and, on the
// elected instance, deletes snapshots whose session is gone everywhere.
type SessionSyncer struct {
	cfg       Config
	sessions  *session.Manager
	presence  PresenceStore
	snapshots SnapshotStore
	leader    Leadership
	metrics   *metrics.Metrics
	logger    *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewSessionSyncer creates a new SessionSyncer instance.
func NewSessionSyncer(
	cfg Config,
	sessions *session.Manager,
	presence PresenceStore,
	snapshots SnapshotStore,
	leader Leadership,
	m *metrics.Metrics,
	logger *zap.Logger,
) *SessionSyncer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionSyncer{
		cfg:       cfg,
		sessions:  sessions,
		presence:  presence,
		snapshots: snapshots,
		leader:    leader,
		metrics:   m,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start runs the sync loop until Stop. It should be run in a goroutine.
func (ss *SessionSyncer) Start() {
	ss.logger.Info("session syncer starting", zap.Duration("interval", ss.cfg.Interval))
	ticker := time.NewTicker(ss.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ss.ctx.Done():
			ss.logger.Info("session syncer shutting down")
			return
		case <-ticker.C:
			ss.performSync()
		}
	}
}

// Stop gracefully stops the sync loop.
func (ss *SessionSyncer) Stop() {
	ss.cancel()
}

func (ss *SessionSyncer) performSync() {
	ctx, cancel := context.WithTimeout(ss.ctx, ss.cfg.Timeout)
	defer cancel()

	if err := ss.RefreshPresence(ctx); err != nil {
		ss.logger.Error("presence refresh failed", zap.Error(err))
	}

	isLeader, err := ss.leader.IsResponsible(globalCleanupTaskKey)
	if err != nil {
		ss.logger.Error("failed to check leadership", zap.String("task", globalCleanupTaskKey), zap.Error(err))
		return
	}
	if !isLeader {
		return
	}
	removed, err := ss.CleanupOrphanedSnapshots(ctx)
	if err != nil {
		ss.logger.Error("snapshot cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		ss.logger.Info("removed orphaned scoreboard snapshots", zap.Int("count", removed))
	}
}

// RefreshPresence extends the presence TTL of every local session. A session
// whose key already expired is registered again.
func (ss *SessionSyncer) RefreshPresence(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ss.cfg.Concurrency)

	for _, s := range ss.sessions.Sessions() {
		g.Go(func() error {
			err := ss.presence.Refresh(gctx, s.ID())
			if errors.Is(err, redisu.ErrRedisKeyNotFound) {
				err = ss.presence.SetPresent(gctx, models.SessionPresence{
					SessionID: s.ID(),
					Viewer:    s.Viewer(),
					ServiceID: ss.cfg.ServiceID,
					OpenedAt:  s.OpenedAt(),
				})
			}
			if err != nil {
				ss.storeError("presence", "refresh")
				ss.logger.Warn("failed to refresh session presence",
					zap.String("session_id", s.ID()), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// CleanupOrphanedSnapshots deletes snapshots of sessions that have no
// presence key anywhere in the cluster. It returns how many it deleted.
func (ss *SessionSyncer) CleanupOrphanedSnapshots(ctx context.Context) (int, error) {
	present, err := ss.presence.PresentSessionIDs(ctx)
	if err != nil {
		ss.storeError("presence", "scan")
		return 0, err
	}
	snapshotted, err := ss.snapshots.SnapshotSessionIDs(ctx)
	if err != nil {
		ss.storeError("snapshot", "scan")
		return 0, err
	}

	removed := 0
	for id := range snapshotted {
		if _, ok := present[id]; ok {
			continue
		}
		if _, err := ss.sessions.Get(id); err == nil {
			continue
		}
		if err := ss.snapshots.Delete(ctx, id); err != nil {
			ss.storeError("snapshot", "delete")
			ss.logger.Warn("failed to delete orphaned snapshot", zap.String("session_id", id), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}

func (ss *SessionSyncer) storeError(store, op string) {
	if ss.metrics != nil {
		ss.metrics.StoreErrorsTotal.WithLabelValues(store, op).Inc()
	}
}

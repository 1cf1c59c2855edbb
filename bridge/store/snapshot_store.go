// bridge/store/snapshot_store.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/scoreboard"
	redisu "github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Snapshot is the last flushed view of a session's scoreboard.
type Snapshot struct {
	Teams      []scoreboard.TeamState `json:"teams"`
	Nameplates []scoreboard.Nameplate `json:"nameplates"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

// ScoreboardSnapshotStore keeps one Redis hash per session with its last
// flushed teams and nameplates, so another instance or an operator can
// inspect it without access to the live session.
type ScoreboardSnapshotStore struct {
	client *redis.ClusterClient
	logger *zap.Logger
}

// NewScoreboardSnapshotStore creates a snapshot store over a Redis cluster.
func NewScoreboardSnapshotStore(client *redis.ClusterClient, logger *zap.Logger) *ScoreboardSnapshotStore {
	return &ScoreboardSnapshotStore{client: client, logger: logger}
}

// Save replaces the snapshot of a session.
func (s *ScoreboardSnapshotStore) Save(ctx context.Context, sessionID string, snap Snapshot) error {
	fields, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot for session %s: %w", sessionID, err)
	}
	key := fmt.Sprintf(redisu.ScoreboardSnapshotKeyPrefix, sessionID)
	if err := s.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("failed to save scoreboard snapshot for session %s in Redis: %w", sessionID, err)
	}
	return nil
}

// Get loads the snapshot of a session.
func (s *ScoreboardSnapshotStore) Get(ctx context.Context, sessionID string) (Snapshot, error) {
	key := fmt.Sprintf(redisu.ScoreboardSnapshotKeyPrefix, sessionID)
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get scoreboard snapshot for session %s from Redis: %w", sessionID, err)
	}
	if len(fields) == 0 {
		return Snapshot{}, fmt.Errorf("no scoreboard snapshot for session %s: %w", sessionID, redisu.ErrRedisKeyNotFound)
	}
	snap, err := decodeSnapshot(fields)
	if err != nil {
		return Snapshot{}, fmt.Errorf("invalid snapshot of session %s: %w", sessionID, err)
	}
	return snap, nil
}

func encodeSnapshot(snap Snapshot) (map[string]interface{}, error) {
	teams, err := json.Marshal(snap.Teams)
	if err != nil {
		return nil, fmt.Errorf("teams: %w", err)
	}
	nameplates, err := json.Marshal(snap.Nameplates)
	if err != nil {
		return nil, fmt.Errorf("nameplates: %w", err)
	}
	return map[string]interface{}{
		redisu.SnapshotFieldTeams:      string(teams),
		redisu.SnapshotFieldNameplates: string(nameplates),
		redisu.SnapshotFieldUpdatedAt:  strconv.FormatInt(snap.UpdatedAt.UnixMilli(), 10),
	}, nil
}

func decodeSnapshot(fields map[string]string) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal([]byte(fields[redisu.SnapshotFieldTeams]), &snap.Teams); err != nil {
		return Snapshot{}, fmt.Errorf("teams: %w", err)
	}
	if err := json.Unmarshal([]byte(fields[redisu.SnapshotFieldNameplates]), &snap.Nameplates); err != nil {
		return Snapshot{}, fmt.Errorf("nameplates: %w", err)
	}
	millis, err := strconv.ParseInt(fields[redisu.SnapshotFieldUpdatedAt], 10, 64)
	if err != nil {
		return Snapshot{}, fmt.Errorf("updated_at: %w", err)
	}
	snap.UpdatedAt = time.UnixMilli(millis)
	return snap, nil
}

// Delete removes the snapshot of a session.
func (s *ScoreboardSnapshotStore) Delete(ctx context.Context, sessionID string) error {
	key := fmt.Sprintf(redisu.ScoreboardSnapshotKeyPrefix, sessionID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete scoreboard snapshot for session %s from Redis: %w", sessionID, err)
	}
	return nil
}

// SnapshotSessionIDs returns the ids of every session that has a snapshot.
func (s *ScoreboardSnapshotStore) SnapshotSessionIDs(ctx context.Context) (map[string]struct{}, error) {
	return scanHashTags(ctx, s.client, fmt.Sprintf(redisu.ScoreboardSnapshotKeyPrefix, "*"), s.logger)
}

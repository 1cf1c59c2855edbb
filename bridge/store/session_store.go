// bridge/store/session_store.go
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/models"
	redisu "github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionPresenceStore records which bridge sessions are alive. Each key
// expires after presenceTTL unless the owning instance refreshes it.
type SessionPresenceStore struct {
	client      *redis.ClusterClient
	presenceTTL time.Duration
	logger      *zap.Logger
}

// NewSessionPresenceStore creates a presence store over a Redis cluster.
func NewSessionPresenceStore(client *redis.ClusterClient, presenceTTL time.Duration, logger *zap.Logger) *SessionPresenceStore {
	return &SessionPresenceStore{
		client:      client,
		presenceTTL: presenceTTL,
		logger:      logger,
	}
}

// SetPresent marks a session as alive.
func (s *SessionPresenceStore) SetPresent(ctx context.Context, p models.SessionPresence) error {
	key := fmt.Sprintf(redisu.SessionPresenceKeyPrefix, p.SessionID)
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal presence for session %s: %w", p.SessionID, err)
	}
	if err := s.client.Set(ctx, key, data, s.presenceTTL).Err(); err != nil {
		return fmt.Errorf("failed to set presence for session %s in Redis: %w", p.SessionID, err)
	}
	s.logger.Debug("session presence set",
		zap.String("session_id", p.SessionID),
		zap.Duration("ttl", s.presenceTTL))
	return nil
}

// GetPresence returns the presence record of a session.
func (s *SessionPresenceStore) GetPresence(ctx context.Context, sessionID string) (models.SessionPresence, error) {
	key := fmt.Sprintf(redisu.SessionPresenceKeyPrefix, sessionID)
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return models.SessionPresence{}, fmt.Errorf("session %s is not present: %w", sessionID, redisu.ErrRedisKeyNotFound)
	}
	if err != nil {
		return models.SessionPresence{}, fmt.Errorf("failed to get presence for session %s from Redis: %w", sessionID, err)
	}
	var p models.SessionPresence
	if err := json.Unmarshal(val, &p); err != nil {
		return models.SessionPresence{}, fmt.Errorf("invalid presence record for session %s: %w", sessionID, err)
	}
	return p, nil
}

// Refresh extends the TTL of a session's presence key. It fails if the key
// already expired.
func (s *SessionPresenceStore) Refresh(ctx context.Context, sessionID string) error {
	key := fmt.Sprintf(redisu.SessionPresenceKeyPrefix, sessionID)
	ok, err := s.client.Expire(ctx, key, s.presenceTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to refresh presence TTL for session %s in Redis: %w", sessionID, err)
	}
	if !ok {
		return fmt.Errorf("could not refresh presence for session %s: %w", sessionID, redisu.ErrRedisKeyNotFound)
	}
	return nil
}

// Remove deletes a session's presence key.
func (s *SessionPresenceStore) Remove(ctx context.Context, sessionID string) error {
	key := fmt.Sprintf(redisu.SessionPresenceKeyPrefix, sessionID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to remove presence for session %s from Redis: %w", sessionID, err)
	}
	return nil
}

// PresentSessionIDs returns the ids of every live session in the cluster.
func (s *SessionPresenceStore) PresentSessionIDs(ctx context.Context) (map[string]struct{}, error) {
	return scanHashTags(ctx, s.client, fmt.Sprintf(redisu.SessionPresenceKeyPrefix, "*"), s.logger)
}

// scanHashTags SCANs every master for keys matching pattern and returns the
// ids inside their hash tags.
func scanHashTags(ctx context.Context, client *redis.ClusterClient, pattern string, logger *zap.Logger) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	var mu sync.Mutex

	err := client.ForEachMaster(ctx, func(ctx context.Context, node *redis.Client) error {
		if node == nil {
			return nil
		}
		iter := node.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			id, ok := redisu.HashTag(iter.Val())
			if !ok {
				logger.Warn("skipping malformed key", zap.String("key", iter.Val()))
				continue
			}
			mu.Lock()
			ids[id] = struct{}{}
			mu.Unlock()
		}
		return iter.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("error during scan of %q across Redis masters: %w", pattern, err)
	}
	return ids, nil
}

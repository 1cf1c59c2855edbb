// shared/redis/client.go
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClusterClient creates and returns a new configured Redis Cluster client.
func NewRedisClusterClient(addrs []string, password string, logger *zap.Logger) (*redis.ClusterClient, error) {
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no Redis addresses provided")
	}

	rdb := redis.NewClusterClient(&redis.ClusterOptions{
		Addrs:        addrs,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  6 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis cluster at %v: %w", addrs, err)
	}
	logger.Info("connected to Redis cluster", zap.Strings("addrs", addrs))
	return rdb, nil
}

// HashTag extracts the id between the braces of a key built from one of the
// key prefixes, e.g. "session:{abc}:" -> "abc".
func HashTag(key string) (string, bool) {
	start := strings.Index(key, "{")
	end := strings.Index(key, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return key[start+1 : end], true
}

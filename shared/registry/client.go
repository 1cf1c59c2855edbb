// shared/registry/client.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RegistryClient reads the service registry. It is separate from
// ServiceRegistrar so instances can discover peers without registering.
type RegistryClient struct {
	redisClient    *redis.ClusterClient
	serviceTimeout time.Duration
	logger         *zap.Logger
}

// NewRegistryClient takes an already initialized *redis.ClusterClient.
func NewRegistryClient(redisClient *redis.ClusterClient, serviceTimeout time.Duration, logger *zap.Logger) *RegistryClient {
	return &RegistryClient{
		redisClient:    redisClient,
		serviceTimeout: serviceTimeout,
		logger:         logger,
	}
}

// GetActiveServices retrieves the instances of serviceType whose last
// heartbeat is within the service timeout, keyed by instance ID.
func (rc *RegistryClient) GetActiveServices(ctx context.Context, serviceType string) (map[string]ServiceInfo, error) {
	key := fmt.Sprintf("%s%s", RedisRegistryHashPrefix, serviceType)
	results, err := rc.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get all services of type %s from Redis: %w", serviceType, err)
	}

	activeServices := make(map[string]ServiceInfo)
	for instanceID, infoJSON := range results {
		var info ServiceInfo
		if err := json.Unmarshal([]byte(infoJSON), &info); err != nil {
			// Malformed entries are removed by the registrar's cleanup loop.
			rc.logger.Warn("failed to unmarshal service info",
				zap.String("service_id", instanceID),
				zap.String("service_type", serviceType),
				zap.Error(err))
			continue
		}
		if info.Alive(time.Now(), rc.serviceTimeout) {
			activeServices[instanceID] = info
		}
	}
	return activeServices, nil
}

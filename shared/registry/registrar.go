// shared/registry/registrar.go
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ServiceRegistrar handles the self-registration and heartbeating of a service instance.
type ServiceRegistrar struct {
	redisClient *redis.ClusterClient
	serviceType string
	cfg         *config.CommonConfig
	serviceID   string
	logger      *zap.Logger
	metadata    func() map[string]string
	stopChan    chan struct{}
	doneChan    chan struct{}
}

// RegistrarOption customizes a ServiceRegistrar.
type RegistrarOption func(*ServiceRegistrar)

// WithMetadata adds fn's result to every heartbeat, so peers can see the
// instance's current load.
func WithMetadata(fn func() map[string]string) RegistrarOption {
	return func(sr *ServiceRegistrar) { sr.metadata = fn }
}

// NewServiceRegistrar creates a new ServiceRegistrar with a generated instance ID.
func NewServiceRegistrar(redisClient *redis.ClusterClient, serviceType string, cfg *config.CommonConfig, logger *zap.Logger, opts ...RegistrarOption) *ServiceRegistrar {
	serviceID := fmt.Sprintf("%s-%s", serviceType, uuid.New().String())

	sr := &ServiceRegistrar{
		redisClient: redisClient,
		serviceType: serviceType,
		cfg:         cfg,
		serviceID:   serviceID,
		logger:      logger.With(zap.String("service_id", serviceID)),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(sr)
	}
	return sr
}

// Start begins the service registration and heartbeating process in a goroutine.
func (sr *ServiceRegistrar) Start() {
	sr.logger.Info("starting service registrar",
		zap.String("service_type", sr.serviceType),
		zap.String("ip", sr.cfg.ServiceIP),
		zap.Int("port", sr.cfg.ServicePort))

	go sr.run()
}

// Stop signals the registrar to stop, waits for it and deregisters the instance.
func (sr *ServiceRegistrar) Stop() {
	close(sr.stopChan)
	<-sr.doneChan

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hashKey := fmt.Sprintf("%s%s", RedisRegistryHashPrefix, sr.serviceType)
	if _, err := sr.redisClient.HDel(ctx, hashKey, sr.serviceID).Result(); err != nil {
		sr.logger.Error("failed to remove service from registry on shutdown", zap.Error(err))
	} else {
		sr.logger.Info("service removed from registry")
	}
}

func (sr *ServiceRegistrar) run() {
	defer close(sr.doneChan)

	ticker := time.NewTicker(sr.cfg.HeartbeatInterval)
	defer ticker.Stop()

	sr.registerService()

	if sr.cfg.RegistryCleanupInterval > 0 {
		sr.startCleanupLoop()
	}

	for {
		select {
		case <-ticker.C:
			sr.registerService()
		case <-sr.stopChan:
			return
		}
	}
}

func (sr *ServiceRegistrar) registerService() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	infoJSON, err := json.Marshal(sr.serviceInfo(time.Now()))
	if err != nil {
		sr.logger.Error("failed to marshal service info", zap.Error(err))
		return
	}

	hashKey := fmt.Sprintf("%s%s", RedisRegistryHashPrefix, sr.serviceType)
	if _, err := sr.redisClient.HSet(ctx, hashKey, sr.serviceID, infoJSON).Result(); err != nil {
		sr.logger.Error("failed to heartbeat service to Redis", zap.Error(err))
		return
	}
	sr.logger.Debug("service heartbeated")
}

func (sr *ServiceRegistrar) serviceInfo(now time.Time) ServiceInfo {
	metadata := map[string]string{"version": Version}
	if sr.metadata != nil {
		maps.Copy(metadata, sr.metadata())
	}
	return ServiceInfo{
		ServiceID:   sr.serviceID,
		ServiceType: sr.serviceType,
		IP:          sr.cfg.ServiceIP,
		Port:        sr.cfg.ServicePort,
		LastSeen:    now.UnixMilli(),
		Metadata:    metadata,
	}
}

func (sr *ServiceRegistrar) startCleanupLoop() {
	go func() {
		cleanupTicker := time.NewTicker(sr.cfg.RegistryCleanupInterval)
		defer cleanupTicker.Stop()

		for {
			select {
			case <-cleanupTicker.C:
				sr.performCleanup()
			case <-sr.stopChan:
				return
			}
		}
	}()
}

// performCleanup removes registrations that stopped heartbeating or cannot be decoded.
func (sr *ServiceRegistrar) performCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hashKey := fmt.Sprintf("%s%s", RedisRegistryHashPrefix, sr.serviceType)
	results, err := sr.redisClient.HGetAll(ctx, hashKey).Result()
	if err != nil {
		sr.logger.Error("registry cleanup failed to list services", zap.Error(err))
		return
	}

	now := time.Now()
	for instanceID, infoJSON := range results {
		var info ServiceInfo
		if err := json.Unmarshal([]byte(infoJSON), &info); err == nil && info.Alive(now, sr.cfg.HeartbeatTTL) {
			continue
		}
		if _, delErr := sr.redisClient.HDel(ctx, hashKey, instanceID).Result(); delErr != nil {
			sr.logger.Error("registry cleanup failed to delete entry",
				zap.String("stale_id", instanceID), zap.Error(delErr))
			continue
		}
		sr.logger.Info("registry cleanup removed stale service", zap.String("stale_id", instanceID))
	}
}

// GetServiceID returns the unique ID assigned to this service instance.
func (sr *ServiceRegistrar) GetServiceID() string {
	return sr.serviceID
}

// GetServiceType returns the type of this service instance.
func (sr *ServiceRegistrar) GetServiceType() string {
	return sr.serviceType
}

// shared/cluster/assignment_manager.go
package cluster

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/registry"
	"github.com/stathat/consistent"
	"go.uber.org/zap"
)

// ServiceLister lists live instances of a service type.
type ServiceLister interface {
	GetActiveServices(ctx context.Context, serviceType string) (map[string]registry.ServiceInfo, error)
}

// Identity names this instance within the registry.
type Identity interface {
	GetServiceID() string
	GetServiceType() string
}

// ServiceAssignmentManager decides whether this instance is responsible for
// a key by consistent hashing across the live instances of its service type.
type ServiceAssignmentManager struct {
	lister         ServiceLister
	self           Identity
	updateInterval time.Duration
	logger         *zap.Logger
	consistentHash *consistent.Consistent
	chMux          sync.RWMutex
	ctx            context.Context
	cancel         context.CancelFunc
}

// NewServiceAssignmentManager creates a manager whose ring initially holds
// only this instance.
func NewServiceAssignmentManager(
	lister ServiceLister,
	self Identity,
	updateInterval time.Duration,
	logger *zap.Logger,
) *ServiceAssignmentManager {
	ctx, cancel := context.WithCancel(context.Background())

	sam := &ServiceAssignmentManager{
		lister:         lister,
		self:           self,
		updateInterval: updateInterval,
		logger:         logger,
		consistentHash: consistent.New(),
		ctx:            ctx,
		cancel:         cancel,
	}
	sam.consistentHash.Add(self.GetServiceID())
	return sam
}

// Start periodically rebuilds the hash ring. It should be run in a goroutine.
func (sam *ServiceAssignmentManager) Start() {
	ticker := time.NewTicker(sam.updateInterval)
	defer ticker.Stop()

	sam.UpdateRing()
	for {
		select {
		case <-sam.ctx.Done():
			sam.logger.Info("assignment manager shutting down")
			return
		case <-ticker.C:
			sam.UpdateRing()
		}
	}
}

// Stop gracefully shuts down the ServiceAssignmentManager.
func (sam *ServiceAssignmentManager) Stop() {
	sam.cancel()
}

// UpdateRing rebuilds the ring if the set of live instances changed.
func (sam *ServiceAssignmentManager) UpdateRing() {
	activeServices, err := sam.lister.GetActiveServices(sam.ctx, sam.self.GetServiceType())
	if err != nil {
		sam.logger.Error("failed to get active services",
			zap.String("service_type", sam.self.GetServiceType()),
			zap.Error(err))
		return
	}

	members := make([]string, 0, len(activeServices))
	for id := range activeServices {
		members = append(members, id)
	}
	slices.Sort(members)

	sam.chMux.Lock()
	defer sam.chMux.Unlock()

	currentMembers := sam.consistentHash.Members()
	slices.Sort(currentMembers)
	if slices.Equal(members, currentMembers) {
		return
	}

	ring := consistent.New()
	for _, member := range members {
		ring.Add(member)
	}
	sam.consistentHash = ring
	sam.logger.Info("consistent hash ring updated", zap.Strings("members", members))
}

// IsResponsible reports whether this instance owns key.
func (sam *ServiceAssignmentManager) IsResponsible(key string) (bool, error) {
	sam.chMux.RLock()
	defer sam.chMux.RUnlock()

	if len(sam.consistentHash.Members()) == 0 {
		return false, fmt.Errorf("consistent hash ring is empty for service type %s", sam.self.GetServiceType())
	}

	owner, err := sam.consistentHash.Get(key)
	if err != nil {
		return false, fmt.Errorf("failed to get responsible service for key '%s': %w", key, err)
	}
	return owner == sam.self.GetServiceID(), nil
}

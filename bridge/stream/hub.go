// bridge/stream/hub.go
package stream

import (
	"context"
	"sync"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/session"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/metrics"
	"go.uber.org/zap"
)

// Hub owns the forwarder goroutine of every live session.
type Hub struct {
	snapshots SnapshotSaver
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu         sync.Mutex
	forwarders map[string]*Forwarder
	wg         sync.WaitGroup
}

// NewHub creates a hub. snapshots and m may be nil.
func NewHub(snapshots SnapshotSaver, m *metrics.Metrics, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		snapshots:  snapshots,
		metrics:    m,
		logger:     logger,
		forwarders: make(map[string]*Forwarder),
	}
}

// Start launches the forwarder of sess. It exits when the session's outbox
// is closed or ctx is done.
func (h *Hub) Start(ctx context.Context, sess *session.Session) *Forwarder {
	f := NewForwarder(sess, h.snapshots, h.metrics, h.logger)

	h.mu.Lock()
	h.forwarders[sess.ID()] = f
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		f.Run(ctx)

		h.mu.Lock()
		if h.forwarders[sess.ID()] == f {
			delete(h.forwarders, sess.ID())
		}
		h.mu.Unlock()
	}()
	return f
}

// Get returns the forwarder of a live session.
func (h *Hub) Get(sessionID string) (*Forwarder, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.forwarders[sessionID]
	return f, ok
}

// Wait blocks until every forwarder has exited.
func (h *Hub) Wait() {
	h.wg.Wait()
}

// bridge/session/outbox.go
package session

import (
	"sync"
	"sync/atomic"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/scoreboard"
)

// Outbox is the bounded queue between a session's scoreboard and whatever
// forwards its updates downstream. Send never blocks.
type Outbox struct {
	mu      sync.RWMutex
	ch      chan scoreboard.Update
	closed  bool
	dropped atomic.Int64
	onDrop  func()
}

// NewOutbox creates an outbox holding up to size updates. onDrop, if set, is
// called for every update rejected because the queue is full.
func NewOutbox(size int, onDrop func()) *Outbox {
	if size <= 0 {
		size = 1
	}
	return &Outbox{ch: make(chan scoreboard.Update, size), onDrop: onDrop}
}

// Send enqueues u. It returns false if the outbox is closed or full; a full
// outbox counts the update as dropped.
func (o *Outbox) Send(u scoreboard.Update) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return false
	}
	select {
	case o.ch <- u:
		return true
	default:
		o.dropped.Add(1)
		if o.onDrop != nil {
			o.onDrop()
		}
		return false
	}
}

// Updates is drained by the forwarder until it is closed.
func (o *Outbox) Updates() <-chan scoreboard.Update { return o.ch }

// Dropped returns how many updates were rejected because the queue was full.
func (o *Outbox) Dropped() int64 { return o.dropped.Load() }

// Close stops accepting updates. Queued updates stay readable.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.ch)
}

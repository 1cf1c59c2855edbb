// bridge/session/rate_counter.go
package session

import "sync/atomic"

// RateCounter counts scoreboard events within the current one-second window.
// Increments come from the session's event path; Reset is driven by the
// scoreboard updater's clock.
type RateCounter struct {
	current  atomic.Int64
	previous atomic.Int64
	peak     atomic.Int64
}

// IncrementAndGet records one event and returns the count for this window.
func (rc *RateCounter) IncrementAndGet() int {
	n := rc.current.Add(1)
	for {
		p := rc.peak.Load()
		if n <= p || rc.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return int(n)
}

// Current returns the count of the running window.
func (rc *RateCounter) Current() int { return int(rc.current.Load()) }

// Previous returns the final count of the last completed window.
func (rc *RateCounter) Previous() int { return int(rc.previous.Load()) }

// Rate returns the larger of the running and the last completed window, so a
// burst keeps a session throttled for one extra window after it ends.
func (rc *RateCounter) Rate() int {
	return max(rc.Current(), rc.Previous())
}

// Peak returns the highest per-window count ever observed.
func (rc *RateCounter) Peak() int { return int(rc.peak.Load()) }

// Reset closes the running window.
func (rc *RateCounter) Reset() {
	rc.previous.Store(rc.current.Swap(0))
}

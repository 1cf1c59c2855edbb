// bridge/updater/thresholds.go
package updater

import "time"

// Default admission thresholds, in scoreboard events per second per session.
const (
	FirstScorePacketsPerSecondThreshold  = 250
	SecondScorePacketsPerSecondThreshold = 450

	FirstFlushInterval  = 250 * time.Millisecond
	SecondFlushInterval = 3 * time.Second
)

// Thresholds decides between immediate and batched flushing.
type Thresholds struct {
	First               int           // at or above: no immediate flush
	Second              int           // at or above: slowest batch cadence
	FirstFlushInterval  time.Duration // batch cadence between First and Second
	SecondFlushInterval time.Duration // batch cadence at or above Second
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		First:               FirstScorePacketsPerSecondThreshold,
		Second:              SecondScorePacketsPerSecondThreshold,
		FirstFlushInterval:  FirstFlushInterval,
		SecondFlushInterval: SecondFlushInterval,
	}
}

// AllowsImmediate reports whether an event that brought the window count to
// pps may flush right away.
func (t Thresholds) AllowsImmediate(pps int) bool {
	return pps < t.First
}

// FlushInterval returns the minimum time between periodic flushes for a
// session running at pps. Below the first threshold there is no spacing.
func (t Thresholds) FlushInterval(pps int) time.Duration {
	switch {
	case pps >= t.Second:
		return t.SecondFlushInterval
	case pps >= t.First:
		return t.FirstFlushInterval
	default:
		return 0
	}
}

// Band names the threshold band of pps for logs and metrics.
func (t Thresholds) Band(pps int) string {
	switch {
	case pps >= t.Second:
		return "second"
	case pps >= t.First:
		return "first"
	default:
		return "normal"
	}
}

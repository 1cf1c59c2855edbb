// bridge/updater/scoreboard_updater.go
package updater

import (
	"context"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/session"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/metrics"
	"go.uber.org/zap"
)

// rateWindow is the length of one rate counter window.
const rateWindow = time.Second

// ScoreboardUpdater flushes scoreboard state that throttled sessions left
// pending, and closes every session's rate window once per second.
type ScoreboardUpdater struct {
	sessions     *session.Manager
	thresholds   Thresholds
	tickInterval time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger

	lastWindowReset time.Time
	bands           map[string]string // session id -> last logged band

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScoreboardUpdater creates an updater over the given session registry.
func NewScoreboardUpdater(
	sessions *session.Manager,
	thresholds Thresholds,
	tickInterval time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *ScoreboardUpdater {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ScoreboardUpdater{
		sessions:     sessions,
		thresholds:   thresholds,
		tickInterval: tickInterval,
		metrics:      m,
		logger:       logger,
		bands:        make(map[string]string),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start runs the update loop until Stop. It should be run in a goroutine.
func (su *ScoreboardUpdater) Start() {
	su.logger.Info("scoreboard updater starting",
		zap.Duration("tick_interval", su.tickInterval),
		zap.Int("first_threshold", su.thresholds.First),
		zap.Int("second_threshold", su.thresholds.Second))

	ticker := time.NewTicker(su.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-su.ctx.Done():
			su.logger.Info("scoreboard updater shutting down")
			return
		case now := <-ticker.C:
			su.performTick(now)
		}
	}
}

// Stop gracefully stops the update loop.
func (su *ScoreboardUpdater) Stop() {
	su.cancel()
}

// performTick executes one updater pass at time now.
func (su *ScoreboardUpdater) performTick(now time.Time) {
	if su.lastWindowReset.IsZero() {
		su.lastWindowReset = now
	}
	sessions := su.sessions.Sessions()

	for _, s := range sessions {
		su.tickSession(s, now)
	}

	if now.Sub(su.lastWindowReset) >= rateWindow {
		su.lastWindowReset = now
		live := make(map[string]struct{}, len(sessions))
		for _, s := range sessions {
			s.RateCounter().Reset()
			live[s.ID()] = struct{}{}
		}
		for id := range su.bands {
			if _, ok := live[id]; !ok {
				delete(su.bands, id)
			}
		}
	}
	if su.metrics != nil {
		su.metrics.ActiveSessions.Set(float64(len(sessions)))
	}
}

func (su *ScoreboardUpdater) tickSession(s *session.Session, now time.Time) {
	pps := s.RateCounter().Rate()
	su.logBandChange(s, pps)

	if !s.HasPending() {
		return
	}
	if interval := su.thresholds.FlushInterval(pps); interval > 0 && now.Sub(s.LastFlush()) < interval {
		return
	}
	if s.FlushPending(now) && su.metrics != nil {
		su.metrics.Flushes.WithLabelValues("periodic").Inc()
	}
}

func (su *ScoreboardUpdater) logBandChange(s *session.Session, pps int) {
	band := su.thresholds.Band(pps)
	prev, ok := su.bands[s.ID()]
	if ok && prev == band {
		return
	}
	su.bands[s.ID()] = band
	if !ok && band == "normal" {
		return
	}
	if ce := su.logger.Check(zap.DebugLevel, "scoreboard packets per second band changed"); ce != nil {
		ce.Write(
			zap.String("session_id", s.ID()),
			zap.String("band", band),
			zap.Int("packets_per_second", pps))
	}
}

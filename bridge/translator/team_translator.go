// bridge/translator/team_translator.go
package translator

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/scoreboard"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/session"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/updater"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/metrics"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/text"
	"go.uber.org/zap"
)

// ErrTeamNotRegistered means an event referenced a team the session's
// scoreboard does not know. It happens when upstream packets arrive out of
// order and is never surfaced to callers.
var ErrTeamNotRegistered = errors.New("scoreboard team is not registered")

// Event outcomes, used as metric labels.
const (
	outcomeApplied       = "applied"
	outcomeSkipped       = "skipped"
	outcomeTeamNotFound  = "team_not_found"
	outcomeUnknownAction = "unknown_action"
	outcomeSessionClosed = "session_closed"
)

// TeamTranslator applies upstream team events to a session's scoreboard.
type TeamTranslator struct {
	logger            *zap.Logger
	renderer          text.Renderer
	thresholds        updater.Thresholds
	metrics           *metrics.Metrics
	recomputeOnRemove bool
	now               func() time.Time
}

// Option customizes a TeamTranslator.
type Option func(*TeamTranslator)

// WithRecomputeOnRemove makes REMOVE, and a CREATE replacing an existing
// team, re-render the former members that are left without a team.
func WithRecomputeOnRemove(enabled bool) Option {
	return func(tt *TeamTranslator) { tt.recomputeOnRemove = enabled }
}

// WithMetrics records event outcomes, recomputes and immediate flushes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(tt *TeamTranslator) { tt.metrics = m }
}

// NewTeamTranslator creates a translator. A nil renderer passes text through.
func NewTeamTranslator(logger *zap.Logger, renderer text.Renderer, thresholds updater.Thresholds, opts ...Option) *TeamTranslator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = passthrough{}
	}
	tt := &TeamTranslator{
		logger:     logger,
		renderer:   renderer,
		thresholds: thresholds,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(tt)
	}
	return tt
}

// Translate applies ev to the scoreboard of s and, while the session is below
// the first threshold, flushes the result right away. Failures are logged and
// counted on the session, never returned.
func (tt *TeamTranslator) Translate(s *session.Session, ev Event) {
	if ce := tt.logger.Check(zap.DebugLevel, "team event"); ce != nil {
		ce.Write(
			zap.String("session_id", s.ID()),
			zap.String("team", ev.TeamName),
			zap.Stringer("action", ev.Action),
			zap.Strings("players", ev.Players))
	}

	if ev.Action.carriesPlayers() && len(ev.Players) == 0 {
		s.MarkSkipped()
		tt.observe(ev.Action, outcomeSkipped)
		return
	}
	if ev.Action == ActionUnknown {
		tt.logger.Debug("dropping team event with unknown action",
			zap.String("session_id", s.ID()),
			zap.String("team", ev.TeamName))
		s.MarkDropped()
		tt.observe(ev.Action, outcomeUnknownAction)
		return
	}

	pps := s.RateCounter().IncrementAndGet()

	var (
		err        error
		recomputes int
	)
	open := s.WithScoreboard(func(sb *scoreboard.Scoreboard) {
		before := sb.RecomputeCount()
		err = tt.apply(sb, s.Locale(), ev)
		recomputes = sb.RecomputeCount() - before
	})
	if !open {
		s.MarkDropped()
		tt.observe(ev.Action, outcomeSessionClosed)
		return
	}
	if tt.metrics != nil && recomputes > 0 {
		tt.metrics.NameplateRecomputes.Add(float64(recomputes))
	}
	if err != nil {
		if errors.Is(err, ErrTeamNotRegistered) {
			tt.logger.Debug("error while translating team event",
				zap.String("session_id", s.ID()),
				zap.Stringer("action", ev.Action),
				zap.Error(err))
		}
		s.MarkDropped()
		tt.observe(ev.Action, outcomeTeamNotFound)
		return
	}
	s.MarkProcessed()
	tt.observe(ev.Action, outcomeApplied)

	// Above the first threshold the scoreboard updater flushes instead.
	if tt.thresholds.AllowsImmediate(pps) && s.FlushImmediate(tt.now()) && tt.metrics != nil {
		tt.metrics.Flushes.WithLabelValues("immediate").Inc()
	}
}

func (tt *TeamTranslator) apply(sb *scoreboard.Scoreboard, locale string, ev Event) error {
	switch ev.Action {
	case ActionCreate:
		var replaced []string
		if old, ok := sb.GetTeam(ev.TeamName); ok && tt.recomputeOnRemove {
			replaced = old.Entities()
		}
		team := sb.RegisterNewTeam(ev.TeamName, ev.Players).
			SetName(tt.renderer.Render(ev.DisplayName, locale)).
			SetColor(ev.Color).
			SetNameTagVisibility(ev.NameTagVisibility).
			SetPrefix(tt.renderer.Render(ev.Prefix, locale)).
			SetSuffix(tt.renderer.Render(ev.Suffix, locale))
		if len(ev.Players) != 0 && team.AffectsNameplates(sb.Viewer()) {
			sb.UpdateEntityNames(team, true)
		}
		// Members the replacement dropped are team-less now.
		sb.UpdateEntityNamesFor(nil, slices.DeleteFunc(replaced, team.HasEntity), true)

	case ActionUpdate:
		team, ok := sb.GetTeam(ev.TeamName)
		if !ok {
			return fmt.Errorf("%s %q: %w", ev.Action, ev.TeamName, ErrTeamNotRegistered)
		}
		before := team.Capture()
		team.SetName(tt.renderer.Render(ev.DisplayName, locale)).
			SetColor(ev.Color).
			SetNameTagVisibility(ev.NameTagVisibility).
			SetPrefix(tt.renderer.Render(ev.Prefix, locale)).
			SetSuffix(tt.renderer.Render(ev.Suffix, locale)).
			SetUpdateType(scoreboard.UpdateUpdate)
		if team.NameplatesChanged(before) {
			sb.UpdateEntityNames(team, false)
		}

	case ActionAddPlayer:
		team, ok := sb.GetTeam(ev.TeamName)
		if !ok {
			return fmt.Errorf("%s %q: %w", ev.Action, ev.TeamName, ErrTeamNotRegistered)
		}
		added := team.AddEntities(ev.Players...)
		if len(added) > 0 {
			team.SetUpdateType(scoreboard.UpdateUpdate)
		}
		sb.UpdateEntityNamesFor(team, added, true)

	case ActionRemovePlayer:
		team, ok := sb.GetTeam(ev.TeamName)
		if !ok {
			return fmt.Errorf("%s %q: %w", ev.Action, ev.TeamName, ErrTeamNotRegistered)
		}
		removed := team.RemoveEntities(ev.Players...)
		if len(removed) > 0 {
			team.SetUpdateType(scoreboard.UpdateUpdate)
		}
		sb.UpdateEntityNamesFor(nil, removed, true)

	case ActionRemove:
		members, ok := sb.RemoveTeam(ev.TeamName)
		if ok && tt.recomputeOnRemove {
			sb.UpdateEntityNamesFor(nil, members, true)
		}

	default:
		return fmt.Errorf("unhandled team action %s", ev.Action)
	}
	return nil
}

func (tt *TeamTranslator) observe(action Action, outcome string) {
	if tt.metrics != nil {
		tt.metrics.TeamEventsTotal.WithLabelValues(action.String(), outcome).Inc()
	}
}

type passthrough struct{}

func (passthrough) Render(raw, _ string) string { return raw }

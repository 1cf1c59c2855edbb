// bridge/scoreboard/team.go
package scoreboard

import "slices"

// Team holds the authoritative attributes and membership of one upstream team.
// A Team is owned by exactly one Scoreboard and is only mutated while the
// owning session's lock is held.
type Team struct {
	scoreboard *Scoreboard
	id         string

	displayName       string
	color             TeamColor
	nameTagVisibility NameTagVisibility
	prefix            string
	suffix            string

	entities   map[string]struct{}
	updateType UpdateType
}

func newTeam(sb *Scoreboard, id string) *Team {
	return &Team{
		scoreboard: sb,
		id:         id,
		entities:   make(map[string]struct{}),
		updateType: UpdateAdd,
	}
}

// ID returns the team's registration key. It never changes.
func (t *Team) ID() string { return t.id }

func (t *Team) DisplayName() string                  { return t.displayName }
func (t *Team) Color() TeamColor                     { return t.color }
func (t *Team) NameTagVisibility() NameTagVisibility { return t.nameTagVisibility }
func (t *Team) Prefix() string                       { return t.prefix }
func (t *Team) Suffix() string                       { return t.suffix }
func (t *Team) UpdateType() UpdateType               { return t.updateType }

// SetName sets the sidebar display name. It has no effect on nameplates.
func (t *Team) SetName(displayName string) *Team {
	t.displayName = displayName
	return t
}

func (t *Team) SetColor(color TeamColor) *Team {
	t.color = color
	return t
}

func (t *Team) SetNameTagVisibility(v NameTagVisibility) *Team {
	t.nameTagVisibility = v
	return t
}

func (t *Team) SetPrefix(prefix string) *Team {
	t.prefix = prefix
	return t
}

func (t *Team) SetSuffix(suffix string) *Team {
	t.suffix = suffix
	return t
}

// SetUpdateType records what the next flush has to send for this team.
// A pending UpdateAdd is kept: the downstream has not seen the team yet, so
// a later attribute update is folded into the creation.
func (t *Team) SetUpdateType(u UpdateType) *Team {
	if t.updateType == UpdateAdd && u == UpdateUpdate {
		return t
	}
	t.updateType = u
	if t.scoreboard != nil && u != UpdateNothing {
		t.scoreboard.markDirty(t)
	}
	return t
}

// AddEntities inserts every id not already a member and returns exactly the
// newly inserted ones. An id that belongs to another team of the same
// scoreboard leaves that team first.
func (t *Team) AddEntities(ids ...string) []string {
	added := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := t.entities[id]; ok {
			continue
		}
		if t.scoreboard != nil {
			t.scoreboard.claimEntity(id, t)
		}
		t.entities[id] = struct{}{}
		added = append(added, id)
	}
	return added
}

// RemoveEntities removes the members among ids and returns exactly those.
func (t *Team) RemoveEntities(ids ...string) []string {
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := t.entities[id]; !ok {
			continue
		}
		delete(t.entities, id)
		if t.scoreboard != nil {
			t.scoreboard.releaseEntity(id, t)
		}
		removed = append(removed, id)
	}
	return removed
}

// HasEntity reports whether id is a member.
func (t *Team) HasEntity(id string) bool {
	_, ok := t.entities[id]
	return ok
}

// Entities returns the members sorted by id.
func (t *Team) Entities() []string {
	out := make([]string, 0, len(t.entities))
	for id := range t.entities {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// IsVisibleFor evaluates the name tag rule from the point of view of entity,
// which is normally the session's own player.
func (t *Team) IsVisibleFor(entity string) bool {
	switch t.nameTagVisibility {
	case VisibilityAlways:
		return true
	case VisibilityNever:
		return false
	case VisibilityHideForOtherTeams:
		return t.HasEntity(entity)
	case VisibilityHideForOwnTeam:
		return !t.HasEntity(entity)
	default:
		return true
	}
}

// observable is the part of a team that shows up in rendered nameplates.
type observable struct {
	visibility NameTagVisibility
	color      TeamColor
	prefix     string
	suffix     string
}

func (t *Team) observable() observable {
	return observable{
		visibility: t.nameTagVisibility,
		color:      t.color,
		prefix:     t.prefix,
		suffix:     t.suffix,
	}
}

// Capture records the nameplate-relevant attributes so that NameplatesChanged
// can compare them after an update is applied.
func (t *Team) Capture() Snapshot {
	return Snapshot{o: t.observable()}
}

// Snapshot is an opaque copy of a team's nameplate-relevant attributes.
type Snapshot struct {
	o observable
}

// NameplatesChanged reports whether visibility, color, prefix or suffix differ
// from the captured values. The display name is not compared.
func (t *Team) NameplatesChanged(before Snapshot) bool {
	return before.o != t.observable()
}

// AffectsNameplates reports whether a freshly created team renders differently
// from "no team" for the given viewer.
func (t *Team) AffectsNameplates(viewer string) bool {
	return (t.nameTagVisibility != VisibilityAlways && !t.IsVisibleFor(viewer)) ||
		t.color != ColorNone ||
		t.prefix != "" ||
		t.suffix != ""
}

// bridge/scoreboard/scoreboard.go
package scoreboard

import (
	"slices"

	"go.uber.org/zap"
)

// Downstream receives flushed updates. Send must not block; it reports
// whether the update was accepted.
type Downstream interface {
	Send(Update) bool
}

// Nameplate is the rendered display state of one entity as seen by the viewer.
type Nameplate struct {
	Entity  string `json:"entity"`
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
}

// TeamState is a read-only copy of a team's attributes and members.
type TeamState struct {
	Name              string            `json:"name"`
	DisplayName       string            `json:"displayName"`
	Color             TeamColor         `json:"color"`
	NameTagVisibility NameTagVisibility `json:"nameTagVisibility"`
	Prefix            string            `json:"prefix"`
	Suffix            string            `json:"suffix"`
	Members           []string          `json:"members"`
}

// TeamUpdate is one downstream team change. For UpdateRemove only Name is set.
type TeamUpdate struct {
	Action UpdateType `json:"action"`
	TeamState
}

// Update is the batch produced by one flush: removals first, then team
// creations/updates, then nameplates. Each list is sorted by name.
type Update struct {
	Teams      []TeamUpdate `json:"teams,omitempty"`
	Nameplates []Nameplate  `json:"nameplates,omitempty"`
}

// Empty reports whether the update carries nothing.
func (u Update) Empty() bool {
	return len(u.Teams) == 0 && len(u.Nameplates) == 0
}

// Scoreboard is the per-session registry of teams. It is not safe for
// concurrent use; the owning session serializes access.
type Scoreboard struct {
	viewer     string
	logger     *zap.Logger
	downstream Downstream

	teams       map[string]*Team
	entityTeams map[string]*Team

	rendered          map[string]Nameplate
	pendingNameplates map[string]Nameplate
	pendingRemovals   map[string]struct{}
	dirtyTeams        map[string]*Team

	recomputes int
	flushes    int
}

// New creates an empty scoreboard for the session whose own player is viewer.
func New(viewer string, logger *zap.Logger, downstream Downstream) *Scoreboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scoreboard{
		viewer:            viewer,
		logger:            logger,
		downstream:        downstream,
		teams:             make(map[string]*Team),
		entityTeams:       make(map[string]*Team),
		rendered:          make(map[string]Nameplate),
		pendingNameplates: make(map[string]Nameplate),
		pendingRemovals:   make(map[string]struct{}),
		dirtyTeams:        make(map[string]*Team),
	}
}

// Viewer returns the identity nameplate visibility is evaluated against.
func (sb *Scoreboard) Viewer() string { return sb.viewer }

// RegisterNewTeam creates a team with the given members and returns it for
// attribute chaining. An existing team with the same name is replaced.
func (sb *Scoreboard) RegisterNewTeam(name string, members []string) *Team {
	if old, ok := sb.teams[name]; ok {
		sb.detach(old)
	}
	team := newTeam(sb, name)
	sb.teams[name] = team
	sb.markDirty(team)
	team.AddEntities(members...)
	return team
}

// GetTeam looks a team up by name.
func (sb *Scoreboard) GetTeam(name string) (*Team, bool) {
	team, ok := sb.teams[name]
	return team, ok
}

// RemoveTeam deletes the named team and returns its former members. It is a
// no-op returning false if no such team exists.
func (sb *Scoreboard) RemoveTeam(name string) ([]string, bool) {
	team, ok := sb.teams[name]
	if !ok {
		return nil, false
	}
	members := team.Entities()
	sb.detach(team)
	return members, true
}

// TeamCount returns the number of registered teams.
func (sb *Scoreboard) TeamCount() int { return len(sb.teams) }

// Teams returns the state of every registered team sorted by name.
func (sb *Scoreboard) Teams() []TeamState {
	out := make([]TeamState, 0, len(sb.teams))
	for _, team := range sb.teams {
		out = append(out, team.state())
	}
	slices.SortFunc(out, func(a, b TeamState) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

// TeamOf returns the team entity currently belongs to.
func (sb *Scoreboard) TeamOf(entity string) (*Team, bool) {
	team, ok := sb.entityTeams[entity]
	return team, ok
}

// UpdateEntityNames recomputes the nameplate of every member of team.
func (sb *Scoreboard) UpdateEntityNames(team *Team, force bool) {
	if team == nil {
		return
	}
	sb.UpdateEntityNamesFor(team, team.Entities(), force)
}

// UpdateEntityNamesFor recomputes the nameplates of entities only. A nil team
// renders them without any team decoration. A nameplate becomes pending when
// force is set or its rendered value changed.
func (sb *Scoreboard) UpdateEntityNamesFor(team *Team, entities []string, force bool) {
	if len(entities) == 0 {
		return
	}
	sb.recomputes++
	for _, entity := range entities {
		next := sb.render(team, entity)
		prev, ok := sb.rendered[entity]
		if !ok {
			prev = bareNameplate(entity)
		}
		if next == bareNameplate(entity) {
			delete(sb.rendered, entity)
		} else {
			sb.rendered[entity] = next
		}
		if force || prev != next {
			sb.pendingNameplates[entity] = next
		}
	}
}

// Nameplate returns the last rendered nameplate of entity.
func (sb *Scoreboard) Nameplate(entity string) Nameplate {
	if np, ok := sb.rendered[entity]; ok {
		return np
	}
	return bareNameplate(entity)
}

// Nameplates returns every nameplate that differs from the bare entity id,
// sorted by entity.
func (sb *Scoreboard) Nameplates() []Nameplate {
	entities := make([]string, 0, len(sb.rendered))
	for entity := range sb.rendered {
		entities = append(entities, entity)
	}
	slices.Sort(entities)
	out := make([]Nameplate, 0, len(entities))
	for _, entity := range entities {
		out = append(out, sb.rendered[entity])
	}
	return out
}

// FullState describes the whole scoreboard as a single update, as if every
// team were being created. Pending state is not consumed.
func (sb *Scoreboard) FullState() Update {
	var update Update
	for _, state := range sb.Teams() {
		update.Teams = append(update.Teams, TeamUpdate{Action: UpdateAdd, TeamState: state})
	}
	update.Nameplates = sb.Nameplates()
	return update
}

// Pending reports whether a flush would send anything.
func (sb *Scoreboard) Pending() bool {
	return len(sb.dirtyTeams) > 0 || len(sb.pendingNameplates) > 0 || len(sb.pendingRemovals) > 0
}

// OnUpdate flushes all pending state downstream. It returns false when there
// was nothing to flush or the downstream rejected the update; a rejected
// update stays pending and later changes merge into it.
func (sb *Scoreboard) OnUpdate() bool {
	if !sb.Pending() {
		return false
	}
	update := sb.pendingUpdate()
	if sb.downstream != nil && !sb.downstream.Send(update) {
		sb.logger.Debug("downstream rejected scoreboard update, keeping it pending",
			zap.String("viewer", sb.viewer),
			zap.Int("teams", len(update.Teams)),
			zap.Int("nameplates", len(update.Nameplates)))
		return false
	}
	sb.commit()
	sb.flushes++
	return true
}

// RecomputeCount returns how many recompute passes ran since creation.
func (sb *Scoreboard) RecomputeCount() int { return sb.recomputes }

// FlushCount returns how many non-empty flushes ran since creation.
func (sb *Scoreboard) FlushCount() int { return sb.flushes }

// pendingUpdate builds the update a flush would send without consuming it.
func (sb *Scoreboard) pendingUpdate() Update {
	var update Update

	removals := make([]string, 0, len(sb.pendingRemovals))
	for name := range sb.pendingRemovals {
		removals = append(removals, name)
	}
	slices.Sort(removals)
	for _, name := range removals {
		update.Teams = append(update.Teams, TeamUpdate{
			Action:    UpdateRemove,
			TeamState: TeamState{Name: name},
		})
	}

	dirty := make([]string, 0, len(sb.dirtyTeams))
	for name := range sb.dirtyTeams {
		dirty = append(dirty, name)
	}
	slices.Sort(dirty)
	for _, name := range dirty {
		team := sb.dirtyTeams[name]
		if team.updateType != UpdateNothing && team.updateType != UpdateRemove {
			update.Teams = append(update.Teams, TeamUpdate{
				Action:    team.updateType,
				TeamState: team.state(),
			})
		}
	}

	entities := make([]string, 0, len(sb.pendingNameplates))
	for entity := range sb.pendingNameplates {
		entities = append(entities, entity)
	}
	slices.Sort(entities)
	for _, entity := range entities {
		update.Nameplates = append(update.Nameplates, sb.pendingNameplates[entity])
	}
	return update
}

// commit marks the pending update as delivered.
func (sb *Scoreboard) commit() {
	for _, team := range sb.dirtyTeams {
		team.updateType = UpdateNothing
	}
	clear(sb.pendingRemovals)
	clear(sb.dirtyTeams)
	clear(sb.pendingNameplates)
}

func (sb *Scoreboard) render(team *Team, entity string) Nameplate {
	if team == nil {
		return bareNameplate(entity)
	}
	if !team.IsVisibleFor(sb.viewer) {
		return Nameplate{Entity: entity, Text: "", Visible: false}
	}
	code := team.color.Code()
	return Nameplate{
		Entity:  entity,
		Text:    code + team.prefix + code + entity + code + team.suffix,
		Visible: true,
	}
}

func bareNameplate(entity string) Nameplate {
	return Nameplate{Entity: entity, Text: entity, Visible: true}
}

// detach unregisters team and queues its downstream removal unless the
// downstream never saw it.
func (sb *Scoreboard) detach(team *Team) {
	delete(sb.teams, team.id)
	if dirty, ok := sb.dirtyTeams[team.id]; ok && dirty == team {
		delete(sb.dirtyTeams, team.id)
	}
	if team.updateType != UpdateAdd {
		sb.pendingRemovals[team.id] = struct{}{}
	}
	for entity := range team.entities {
		if sb.entityTeams[entity] == team {
			delete(sb.entityTeams, entity)
		}
	}
	team.updateType = UpdateRemove
	team.scoreboard = nil
}

func (sb *Scoreboard) markDirty(team *Team) {
	if sb.teams[team.id] == team {
		sb.dirtyTeams[team.id] = team
	}
}

// claimEntity moves entity into team, removing it from its previous team.
func (sb *Scoreboard) claimEntity(entity string, team *Team) {
	if prev, ok := sb.entityTeams[entity]; ok && prev != team {
		delete(prev.entities, entity)
		prev.SetUpdateType(UpdateUpdate)
	}
	sb.entityTeams[entity] = team
}

func (sb *Scoreboard) releaseEntity(entity string, team *Team) {
	if sb.entityTeams[entity] == team {
		delete(sb.entityTeams, entity)
	}
}

func (t *Team) state() TeamState {
	return TeamState{
		Name:              t.id,
		DisplayName:       t.displayName,
		Color:             t.color,
		NameTagVisibility: t.nameTagVisibility,
		Prefix:            t.prefix,
		Suffix:            t.suffix,
		Members:           t.Entities(),
	}
}

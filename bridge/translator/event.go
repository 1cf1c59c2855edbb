// bridge/translator/event.go
package translator

import (
	"strings"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/scoreboard"
)

// Action is the kind of an upstream team event.
type Action int

const (
	ActionUnknown Action = iota
	ActionCreate
	ActionUpdate
	ActionAddPlayer
	ActionRemovePlayer
	ActionRemove
)

var actionNames = map[Action]string{
	ActionUnknown:      "UNKNOWN",
	ActionCreate:       "CREATE",
	ActionUpdate:       "UPDATE",
	ActionAddPlayer:    "ADD_PLAYER",
	ActionRemovePlayer: "REMOVE_PLAYER",
	ActionRemove:       "REMOVE",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return actionNames[ActionUnknown]
}

// ParseAction maps a wire name to an Action. Unrecognized names yield
// ActionUnknown; the translator drops those events.
func ParseAction(s string) Action {
	key := strings.ToUpper(strings.TrimSpace(s))
	for a, name := range actionNames {
		if name == key {
			return a
		}
	}
	return ActionUnknown
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	*a = ParseAction(string(b))
	return nil
}

// Event is one upstream team packet. Only the fields relevant to Action are
// meaningful; DisplayName, Prefix and Suffix are raw upstream text.
type Event struct {
	Action            Action                       `json:"action"`
	TeamName          string                       `json:"team"`
	DisplayName       string                       `json:"displayName,omitempty"`
	Prefix            string                       `json:"prefix,omitempty"`
	Suffix            string                       `json:"suffix,omitempty"`
	Color             scoreboard.TeamColor         `json:"color"`
	NameTagVisibility scoreboard.NameTagVisibility `json:"nameTagVisibility"`
	Players           []string                     `json:"players,omitempty"`
}

// carriesPlayers reports whether an empty player list makes the event a no-op.
func (a Action) carriesPlayers() bool {
	return a == ActionAddPlayer || a == ActionRemovePlayer
}

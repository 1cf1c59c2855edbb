// bridge/scoreboard/types.go
package scoreboard

import (
	"fmt"
	"strings"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/text"
)

// NameTagVisibility mirrors the upstream team option of the same name.
type NameTagVisibility int

const (
	VisibilityAlways NameTagVisibility = iota
	VisibilityNever
	VisibilityHideForOtherTeams
	VisibilityHideForOwnTeam
)

var visibilityNames = map[NameTagVisibility]string{
	VisibilityAlways:            "always",
	VisibilityNever:             "never",
	VisibilityHideForOtherTeams: "hideForOtherTeams",
	VisibilityHideForOwnTeam:    "hideForOwnTeam",
}

func (v NameTagVisibility) String() string {
	if name, ok := visibilityNames[v]; ok {
		return name
	}
	return fmt.Sprintf("NameTagVisibility(%d)", int(v))
}

// ParseNameTagVisibility accepts the upstream wire names ("hideForOtherTeams")
// as well as the enum spelling ("HIDE_FOR_OTHER_TEAMS").
func ParseNameTagVisibility(s string) (NameTagVisibility, error) {
	key := normalizeEnum(s)
	if key == "" {
		return VisibilityAlways, nil
	}
	for v, name := range visibilityNames {
		if normalizeEnum(name) == key {
			return v, nil
		}
	}
	return VisibilityAlways, fmt.Errorf("unknown name tag visibility %q", s)
}

func (v NameTagVisibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *NameTagVisibility) UnmarshalText(b []byte) error {
	parsed, err := ParseNameTagVisibility(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// TeamColor is one of the sixteen chat colors, or ColorNone.
type TeamColor int

const (
	ColorNone TeamColor = iota
	ColorBlack
	ColorDarkBlue
	ColorDarkGreen
	ColorDarkAqua
	ColorDarkRed
	ColorDarkPurple
	ColorGold
	ColorGray
	ColorDarkGray
	ColorBlue
	ColorGreen
	ColorAqua
	ColorRed
	ColorLightPurple
	ColorYellow
	ColorWhite
)

var colorNames = [...]string{
	"none", "black", "dark_blue", "dark_green", "dark_aqua", "dark_red", "dark_purple", "gold",
	"gray", "dark_gray", "blue", "green", "aqua", "red", "light_purple", "yellow", "white",
}

func (c TeamColor) String() string {
	if c < 0 || int(c) >= len(colorNames) {
		return fmt.Sprintf("TeamColor(%d)", int(c))
	}
	return colorNames[c]
}

// Code returns the legacy format code for c, or "" for ColorNone.
func (c TeamColor) Code() string {
	code, _ := text.ColorCode(c.String())
	return code
}

func ParseTeamColor(s string) (TeamColor, error) {
	key := normalizeEnum(s)
	if key == "" || key == "reset" {
		return ColorNone, nil
	}
	for i, name := range colorNames {
		if normalizeEnum(name) == key {
			return TeamColor(i), nil
		}
	}
	return ColorNone, fmt.Errorf("unknown team color %q", s)
}

func (c TeamColor) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *TeamColor) UnmarshalText(b []byte) error {
	parsed, err := ParseTeamColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// UpdateType classifies the pending downstream change for a team.
type UpdateType int

const (
	UpdateNothing UpdateType = iota
	UpdateAdd
	UpdateRemove
	UpdateUpdate
)

func (u UpdateType) String() string {
	switch u {
	case UpdateNothing:
		return "nothing"
	case UpdateAdd:
		return "add"
	case UpdateRemove:
		return "remove"
	case UpdateUpdate:
		return "update"
	}
	return fmt.Sprintf("UpdateType(%d)", int(u))
}

func (u UpdateType) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *UpdateType) UnmarshalText(b []byte) error {
	for _, candidate := range []UpdateType{UpdateNothing, UpdateAdd, UpdateRemove, UpdateUpdate} {
		if candidate.String() == normalizeEnum(string(b)) {
			*u = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown update type %q", b)
}

// normalizeEnum folds "HIDE_FOR_OWN_TEAM", "hideForOwnTeam" and "hide-for-own-team"
// to the same key.
func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

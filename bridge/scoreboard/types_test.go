package scoreboard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNameTagVisibility(t *testing.T) {
	tests := map[string]NameTagVisibility{
		"":                     VisibilityAlways,
		"always":               VisibilityAlways,
		"NEVER":                VisibilityNever,
		"hideForOtherTeams":    VisibilityHideForOtherTeams,
		"HIDE_FOR_OTHER_TEAMS": VisibilityHideForOtherTeams,
		"hide-for-own-team":    VisibilityHideForOwnTeam,
	}
	for input, want := range tests {
		got, err := ParseNameTagVisibility(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseNameTagVisibility("sometimes")
	assert.Error(t, err)
}

func TestParseTeamColor(t *testing.T) {
	tests := map[string]TeamColor{
		"":             ColorNone,
		"reset":        ColorNone,
		"red":          ColorRed,
		"DARK_BLUE":    ColorDarkBlue,
		"light_purple": ColorLightPurple,
	}
	for input, want := range tests {
		got, err := ParseTeamColor(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseTeamColor("mauve")
	assert.Error(t, err)
}

func TestTeamColorCode(t *testing.T) {
	assert.Equal(t, "", ColorNone.Code())
	assert.Equal(t, "§c", ColorRed.Code())
	assert.Equal(t, "§1", ColorDarkBlue.Code())
	assert.Equal(t, "§f", ColorWhite.Code())
}

func TestTeamStateJSON(t *testing.T) {
	state := TeamState{Name: "red", Color: ColorRed, NameTagVisibility: VisibilityHideForOwnTeam}

	data, err := json.Marshal(state)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"color":"red"`)
	assert.Contains(t, string(data), `"nameTagVisibility":"hideForOwnTeam"`)

	var back TeamState
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ColorRed, back.Color)
	assert.Equal(t, VisibilityHideForOwnTeam, back.NameTagVisibility)
}

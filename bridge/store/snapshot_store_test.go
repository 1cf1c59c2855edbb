package store

import (
	"testing"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/scoreboard"
	redisu "github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotFields(t *testing.T) {
	snap := Snapshot{
		Teams: []scoreboard.TeamState{{
			Name:              "red",
			Color:             scoreboard.ColorRed,
			NameTagVisibility: scoreboard.VisibilityHideForOwnTeam,
			Prefix:            "[R]",
			Members:           []string{"alice"},
		}},
		Nameplates: []scoreboard.Nameplate{{Entity: "alice", Text: "§c[R]§calice§c", Visible: true}},
		UpdatedAt:  time.UnixMilli(1700000000123),
	}

	fields, err := encodeSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, "1700000000123", fields[redisu.SnapshotFieldUpdatedAt])
	assert.Contains(t, fields[redisu.SnapshotFieldTeams], `"color":"red"`)

	raw := make(map[string]string, len(fields))
	for k, v := range fields {
		raw[k] = v.(string)
	}
	got, err := decodeSnapshot(raw)
	require.NoError(t, err)
	assert.Equal(t, snap.Teams, got.Teams)
	assert.Equal(t, snap.Nameplates, got.Nameplates)
	assert.True(t, snap.UpdatedAt.Equal(got.UpdatedAt))
}

func TestDecodeSnapshotRejectsCorruptFields(t *testing.T) {
	valid := map[string]string{
		redisu.SnapshotFieldTeams:      `[]`,
		redisu.SnapshotFieldNameplates: `[]`,
		redisu.SnapshotFieldUpdatedAt:  "1",
	}
	_, err := decodeSnapshot(valid)
	require.NoError(t, err)

	for field, value := range map[string]string{
		redisu.SnapshotFieldTeams:      `{`,
		redisu.SnapshotFieldNameplates: ``,
		redisu.SnapshotFieldUpdatedAt:  "yesterday",
	} {
		corrupt := make(map[string]string, len(valid))
		for k, v := range valid {
			corrupt[k] = v
		}
		corrupt[field] = value
		_, err := decodeSnapshot(corrupt)
		assert.ErrorContains(t, err, field)
	}
}

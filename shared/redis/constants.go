// shared/redis/constants.go
package redis

import "errors"

const (
	// SessionPresenceKeyPrefix marks a bridge session as alive: session:{sessionID}:
	SessionPresenceKeyPrefix = "session:{%s}:"
	// ScoreboardSnapshotKeyPrefix holds the last flushed scoreboard of a session: scoreboard:{sessionID}:
	ScoreboardSnapshotKeyPrefix = "scoreboard:{%s}:"
)

// Snapshot hash fields.
const (
	SnapshotFieldTeams      = "teams"
	SnapshotFieldNameplates = "nameplates"
	SnapshotFieldUpdatedAt  = "updated_at"
)

// ErrRedisKeyNotFound is returned when a looked-up key does not exist.
var ErrRedisKeyNotFound = errors.New("redis key not found")

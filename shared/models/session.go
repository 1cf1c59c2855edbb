// shared/models/session.go
package models

import "time"

// SessionStats summarizes one bridge session. It is written to MongoDB when the
// session ends and served live by the bridge API.
type SessionStats struct {
	ID               string     `bson:"_id" json:"id"`
	Viewer           string     `bson:"viewer" json:"viewer"`
	Locale           string     `bson:"locale" json:"locale"`
	ServiceID        string     `bson:"service_id,omitempty" json:"serviceId,omitempty"`
	EventsProcessed  int64      `bson:"events_processed" json:"eventsProcessed"`
	EventsSkipped    int64      `bson:"events_skipped" json:"eventsSkipped"`     // empty-payload events
	EventsDropped    int64      `bson:"events_dropped" json:"eventsDropped"`     // unknown team or action
	ImmediateFlushes int64      `bson:"immediate_flushes" json:"immediateFlushes"`
	PeriodicFlushes  int64      `bson:"periodic_flushes" json:"periodicFlushes"`
	UpdatesDropped   int64      `bson:"updates_dropped" json:"updatesDropped"`   // outbox overflow
	PeakEventsPerSec int        `bson:"peak_events_per_sec" json:"peakEventsPerSec"`
	TeamCount        int        `bson:"team_count" json:"teamCount"`
	OpenedAt         time.Time  `bson:"opened_at" json:"openedAt"`
	ClosedAt         *time.Time `bson:"closed_at,omitempty" json:"closedAt,omitempty"`
}

// SessionPresence is what the Redis presence store knows about a live session.
type SessionPresence struct {
	SessionID string    `json:"sessionId"`
	Viewer    string    `json:"viewer"`
	ServiceID string    `json:"serviceId"`
	OpenedAt  time.Time `json:"openedAt"`
}

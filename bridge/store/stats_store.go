// bridge/store/stats_store.go
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrStatsNotFound is returned when no statistics were recorded for a session.
var ErrStatsNotFound = errors.New("session stats not found")

// SessionStatsStore persists per-session counters in MongoDB.
type SessionStatsStore struct {
	collection *mongo.Collection
}

// NewSessionStatsStore creates a new SessionStatsStore instance.
func NewSessionStatsStore(collection *mongo.Collection) *SessionStatsStore {
	return &SessionStatsStore{collection: collection}
}

// EnsureIndexes creates the index ListByViewer relies on.
func (ss *SessionStatsStore) EnsureIndexes(ctx context.Context) error {
	_, err := ss.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "viewer", Value: 1}, {Key: "opened_at", Value: -1}},
		Options: options.Index().SetName("viewer_opened_at"),
	})
	if err != nil {
		return fmt.Errorf("failed to create viewer index on session stats: %w", err)
	}
	return nil
}

// Save upserts the statistics document of one session.
func (ss *SessionStatsStore) Save(ctx context.Context, stats models.SessionStats) error {
	filter := bson.M{"_id": stats.ID}
	update := bson.M{"$set": stats}
	opts := options.Update().SetUpsert(true)

	if _, err := ss.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save stats for session %s: %w", stats.ID, err)
	}
	return nil
}

// Get retrieves the statistics of one session.
func (ss *SessionStatsStore) Get(ctx context.Context, sessionID string) (models.SessionStats, error) {
	var stats models.SessionStats
	err := ss.collection.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&stats)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.SessionStats{}, fmt.Errorf("session %s: %w", sessionID, ErrStatsNotFound)
		}
		return models.SessionStats{}, fmt.Errorf("failed to get stats for session %s: %w", sessionID, err)
	}
	return stats, nil
}

// ListByViewer returns the most recent sessions of a viewer, newest first.
func (ss *SessionStatsStore) ListByViewer(ctx context.Context, viewer string, limit int64) ([]models.SessionStats, error) {
	opts := options.Find().SetSort(bson.D{{Key: "opened_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := ss.collection.Find(ctx, bson.M{"viewer": viewer}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list stats for viewer %s: %w", viewer, err)
	}
	defer cursor.Close(ctx)

	out := make([]models.SessionStats, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode stats for viewer %s: %w", viewer, err)
	}
	return out, nil
}

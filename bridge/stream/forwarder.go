// bridge/stream/forwarder.go
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/scoreboard"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/session"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/bridge/store"
	"github.com/Ftotnem/SCOREBOARD-BRIDGE/shared/metrics"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait    = 10 * time.Second
	snapshotWait = 2 * time.Second
)

// ErrAlreadyAttached is returned when a second subscriber attaches to a session.
var ErrAlreadyAttached = errors.New("a subscriber is already attached to this session")

// Conn is the part of *websocket.Conn the forwarder writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// SnapshotSaver persists the scoreboard view after every forwarded update.
type SnapshotSaver interface {
	Save(ctx context.Context, sessionID string, snap store.Snapshot) error
}

type subscriber struct {
	conn Conn
	mu   sync.Mutex
}

func (s *subscriber) write(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(data)
}

// writeLocked writes data; the caller holds s.mu.
func (s *subscriber) writeLocked(data []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Forwarder drains one session's outbox. Every update goes to the attached
// websocket subscriber, if any, and the resulting view to the snapshot store.
type Forwarder struct {
	sess      *session.Session
	snapshots SnapshotSaver
	metrics   *metrics.Metrics
	logger    *zap.Logger

	mu  sync.Mutex
	sub *subscriber

	forwarded int
}

// NewForwarder creates a forwarder for sess. snapshots and m may be nil.
func NewForwarder(sess *session.Session, snapshots SnapshotSaver, m *metrics.Metrics, logger *zap.Logger) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{
		sess:      sess,
		snapshots: snapshots,
		metrics:   m,
		logger:    logger.With(zap.String("session_id", sess.ID())),
	}
}

// Run forwards updates until the outbox is closed or ctx is done. It closes
// the attached subscriber on return.
func (f *Forwarder) Run(ctx context.Context) {
	defer f.detach()

	updates := f.sess.Outbox().Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			f.forward(ctx, u)
		}
	}
}

// Attach makes conn the session's subscriber and sends it the full scoreboard
// state. A client that missed updates resyncs by attaching again.
//
// The subscriber's write lock is held from publication until the full state
// is written, so forwarded updates always follow it on the wire.
func (f *Forwarder) Attach(conn Conn) error {
	sub := &subscriber{conn: conn}
	sub.mu.Lock()

	f.mu.Lock()
	if f.sub != nil {
		f.mu.Unlock()
		sub.mu.Unlock()
		return ErrAlreadyAttached
	}
	f.sub = sub
	f.mu.Unlock()

	teams, err := f.writeFullState(sub)
	sub.mu.Unlock()
	if err != nil {
		f.Detach(conn)
		return err
	}
	f.logger.Info("subscriber attached", zap.Int("teams", teams))
	return nil
}

func (f *Forwarder) writeFullState(sub *subscriber) (int, error) {
	var full scoreboard.Update
	if !f.sess.WithScoreboard(func(sb *scoreboard.Scoreboard) { full = sb.FullState() }) {
		return 0, session.ErrSessionNotFound
	}
	data, err := json.Marshal(full)
	if err != nil {
		return 0, err
	}
	return len(full.Teams), sub.writeLocked(data)
}

// Detach drops conn if it is the current subscriber and closes it.
func (f *Forwarder) Detach(conn Conn) {
	f.mu.Lock()
	if f.sub == nil || f.sub.conn != conn {
		f.mu.Unlock()
		return
	}
	f.sub = nil
	f.mu.Unlock()
	conn.Close()
}

// Attached reports whether a subscriber is attached.
func (f *Forwarder) Attached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sub != nil
}

// Forwarded returns how many updates were taken from the outbox.
func (f *Forwarder) Forwarded() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forwarded
}

func (f *Forwarder) forward(ctx context.Context, u scoreboard.Update) {
	f.mu.Lock()
	f.forwarded++
	sub := f.sub
	f.mu.Unlock()

	if sub != nil {
		data, err := json.Marshal(u)
		if err != nil {
			f.logger.Error("failed to marshal scoreboard update", zap.Error(err))
		} else if err := sub.write(data); err != nil {
			f.logger.Warn("dropping subscriber after failed write", zap.Error(err))
			f.Detach(sub.conn)
		}
	}

	if f.snapshots == nil {
		return
	}
	var snap store.Snapshot
	f.sess.WithScoreboard(func(sb *scoreboard.Scoreboard) {
		snap.Teams = sb.Teams()
		snap.Nameplates = sb.Nameplates()
	})
	snap.UpdatedAt = time.Now()

	saveCtx, cancel := context.WithTimeout(ctx, snapshotWait)
	defer cancel()
	if err := f.snapshots.Save(saveCtx, f.sess.ID(), snap); err != nil {
		f.logger.Warn("failed to save scoreboard snapshot", zap.Error(err))
		if f.metrics != nil {
			f.metrics.StoreErrorsTotal.WithLabelValues("snapshot", "save").Inc()
		}
	}
}

func (f *Forwarder) detach() {
	f.mu.Lock()
	sub := f.sub
	f.sub = nil
	f.mu.Unlock()
	if sub != nil {
		sub.mu.Lock()
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		sub.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
		sub.mu.Unlock()
		sub.conn.Close()
	}
}

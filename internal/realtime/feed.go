// Package realtime fans row changes on messages and emotion logs out to
// listeners scoped to one session.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
)

const (
	TableMessages    = "messages"
	TableEmotionLogs = "emotion_logs"

	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
)

type RowChange struct {
	Table     string          `json:"table"`
	Op        string          `json:"op"`
	SessionID uuid.UUID       `json:"session_id"`
	RowID     uuid.UUID       `json:"row_id"`
	Row       json.RawMessage `json:"row,omitempty"`
	At        time.Time       `json:"at"`
}

// NewRowChange encodes row as the change payload.
func NewRowChange(table, op string, sessionID, rowID uuid.UUID, row interface{}) (RowChange, error) {
	change := RowChange{Table: table, Op: op, SessionID: sessionID, RowID: rowID, At: time.Now().UTC()}
	if row != nil {
		data, err := json.Marshal(row)
		if err != nil {
			return change, err
		}
		change.Row = data
	}
	return change, nil
}

func Subject(table string, sessionID uuid.UUID) string {
	return fmt.Sprintf("rows.%s.%s", table, sessionID)
}

// Callbacks are invoked per change. Either may be nil.
type Callbacks struct {
	OnMessage    func(RowChange)
	OnEmotionLog func(RowChange)
}

// Publisher is the write side of the feed.
type Publisher interface {
	Publish(ctx context.Context, change RowChange) error
}

type Feed struct {
	broker Broker
	log    logger.ILogger
}

func NewFeed(broker Broker, log logger.ILogger) *Feed {
	return &Feed{broker: broker, log: log}
}

func (f *Feed) Publish(ctx context.Context, change RowChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal row change: %w", err)
	}
	return f.broker.Publish(ctx, Subject(change.Table, change.SessionID), data)
}

// Subscribe listens for inserts and updates on both tables for sessionID.
// The subscription is made for every role, but callbacks only run when role
// is therapist. Ready is closed once listeners are attached on the broker,
// so a writer that waits on it will not miss its own change.
func (f *Feed) Subscribe(ctx context.Context, sessionID uuid.UUID, role string, cb Callbacks) *Subscription {
	sub := &Subscription{ready: make(chan struct{}), done: make(chan struct{})}
	deliver := role == model.RoleTherapist

	go func() {
		err := sub.attach(ctx, f.broker, sessionID, func(table string, data []byte) {
			if !deliver {
				return
			}
			var change RowChange
			if err := json.Unmarshal(data, &change); err != nil {
				f.log.Warn("RealtimeFeed", "Dropping malformed row change", map[string]interface{}{"error": err.Error()})
				return
			}
			switch table {
			case TableMessages:
				if cb.OnMessage != nil {
					cb.OnMessage(change)
				}
			case TableEmotionLogs:
				if cb.OnEmotionLog != nil {
					cb.OnEmotionLog(change)
				}
			}
		})
		if err != nil {
			f.log.Error("RealtimeFeed", "Subscription failed", map[string]interface{}{
				"session_id": sessionID.String(),
				"error":      err.Error(),
			})
		}
	}()

	return sub
}

type Subscription struct {
	mu     sync.Mutex
	subs   []Unsubscriber
	err    error
	closed bool
	ready  chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) attach(ctx context.Context, broker Broker, sessionID uuid.UUID, handle func(table string, data []byte)) error {
	defer close(s.done)

	for _, table := range []string{TableMessages, TableEmotionLogs} {
		table := table
		u, err := broker.Subscribe(Subject(table, sessionID), func(data []byte) {
			handle(table, data)
		})
		if err != nil {
			return s.fail(fmt.Errorf("subscribe %s: %w", table, err))
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = u.Unsubscribe()
			return nil
		}
		s.subs = append(s.subs, u)
		s.mu.Unlock()
	}

	if err := broker.Flush(ctx); err != nil {
		return s.fail(fmt.Errorf("flush: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		close(s.ready)
	}
	return nil
}

func (s *Subscription) fail(err error) error {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}

// Ready is closed when the subscription is active. It never closes if the
// subscription fails or is closed first; use Wait to observe those.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// Wait blocks until the subscription is active, has failed, or ctx ends.
func (s *Subscription) Wait(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-s.done:
		select {
		case <-s.ready:
			return nil
		default:
		}
		if err := s.Err(); err != nil {
			return err
		}
		return fmt.Errorf("subscription closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close detaches every listener. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		subs := s.subs
		s.subs = nil
		s.mu.Unlock()

		for _, u := range subs {
			_ = u.Unsubscribe()
		}
	})
}

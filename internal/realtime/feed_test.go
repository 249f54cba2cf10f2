package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu       sync.Mutex
	messages []RowChange
	emotions []RowChange
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnMessage: func(c RowChange) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.messages = append(r.messages, c)
		},
		OnEmotionLog: func(c RowChange) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.emotions = append(r.emotions, c)
		},
	}
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages), len(r.emotions)
}

func waitReady(t *testing.T, sub *Subscription) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sub.Wait(ctx))
}

func TestTherapistReceivesBothTables(t *testing.T) {
	feed := NewFeed(NewMemoryBroker(), logger.NewNop())
	sessionID := uuid.New()
	rec := &recorder{}

	sub := feed.Subscribe(context.Background(), sessionID, model.RoleTherapist, rec.callbacks())
	defer sub.Close()
	waitReady(t, sub)

	msg, err := NewRowChange(TableMessages, OpInsert, sessionID, uuid.New(), map[string]string{"content": "hi"})
	require.NoError(t, err)
	require.NoError(t, feed.Publish(context.Background(), msg))

	emo, err := NewRowChange(TableEmotionLogs, OpUpdate, sessionID, uuid.New(), nil)
	require.NoError(t, err)
	require.NoError(t, feed.Publish(context.Background(), emo))

	m, e := rec.counts()
	assert.Equal(t, 1, m)
	assert.Equal(t, 1, e)
	assert.Equal(t, OpInsert, rec.messages[0].Op)
	assert.JSONEq(t, `{"content":"hi"}`, string(rec.messages[0].Row))
	assert.Equal(t, OpUpdate, rec.emotions[0].Op)
}

func TestNonTherapistGetsReadinessButNoCallbacks(t *testing.T) {
	feed := NewFeed(NewMemoryBroker(), logger.NewNop())
	sessionID := uuid.New()

	for _, role := range []string{model.RoleUser, model.RoleAdmin} {
		t.Run(role, func(t *testing.T) {
			rec := &recorder{}
			sub := feed.Subscribe(context.Background(), sessionID, role, rec.callbacks())
			defer sub.Close()
			waitReady(t, sub)

			change, _ := NewRowChange(TableMessages, OpInsert, sessionID, uuid.New(), nil)
			require.NoError(t, feed.Publish(context.Background(), change))

			m, e := rec.counts()
			assert.Zero(t, m)
			assert.Zero(t, e)
		})
	}
}

func TestChangesAreScopedToSession(t *testing.T) {
	feed := NewFeed(NewMemoryBroker(), logger.NewNop())
	rec := &recorder{}

	sub := feed.Subscribe(context.Background(), uuid.New(), model.RoleTherapist, rec.callbacks())
	defer sub.Close()
	waitReady(t, sub)

	other, _ := NewRowChange(TableMessages, OpInsert, uuid.New(), uuid.New(), nil)
	require.NoError(t, feed.Publish(context.Background(), other))

	m, _ := rec.counts()
	assert.Zero(t, m)
}

func TestCloseStopsDelivery(t *testing.T) {
	feed := NewFeed(NewMemoryBroker(), logger.NewNop())
	sessionID := uuid.New()
	rec := &recorder{}

	sub := feed.Subscribe(context.Background(), sessionID, model.RoleTherapist, rec.callbacks())
	waitReady(t, sub)
	sub.Close()
	sub.Close()

	change, _ := NewRowChange(TableMessages, OpInsert, sessionID, uuid.New(), nil)
	require.NoError(t, feed.Publish(context.Background(), change))

	m, _ := rec.counts()
	assert.Zero(t, m)
}

type failingBroker struct{ *MemoryBroker }

func (failingBroker) Flush(context.Context) error { return errors.New("connection lost") }

func TestWaitReportsFailure(t *testing.T) {
	feed := NewFeed(failingBroker{NewMemoryBroker()}, logger.NewNop())
	sub := feed.Subscribe(context.Background(), uuid.New(), model.RoleTherapist, Callbacks{})
	defer sub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := sub.Wait(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection lost")
	select {
	case <-sub.Ready():
		t.Fatal("ready closed on failure")
	default:
	}
}

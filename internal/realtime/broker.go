package realtime

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go"
)

// Broker is the subject pub/sub the feed runs over.
type Broker interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte)) (Unsubscriber, error)
	// Flush returns once every subscription made so far is active on the
	// server side.
	Flush(ctx context.Context) error
}

type Unsubscriber interface {
	Unsubscribe() error
}

type NatsBroker struct {
	nc *nats.Conn
}

func NewNatsBroker(nc *nats.Conn) *NatsBroker {
	return &NatsBroker{nc: nc}
}

func (b *NatsBroker) Publish(_ context.Context, subject string, data []byte) error {
	return b.nc.Publish(subject, data)
}

func (b *NatsBroker) Subscribe(subject string, handler func(data []byte)) (Unsubscriber, error) {
	return b.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

func (b *NatsBroker) Flush(ctx context.Context) error {
	return b.nc.FlushWithContext(ctx)
}

// MemoryBroker delivers in-process and synchronously. It backs single
// instance deployments without NATS and the tests.
type MemoryBroker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func([]byte)
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[string]map[int]func([]byte))}
}

func (b *MemoryBroker) Publish(_ context.Context, subject string, data []byte) error {
	b.mu.RLock()
	handlers := make([]func([]byte), 0, len(b.subs[subject]))
	for _, h := range b.subs[subject] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

func (b *MemoryBroker) Subscribe(subject string, handler func(data []byte)) (Unsubscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.subs[subject] == nil {
		b.subs[subject] = make(map[int]func([]byte))
	}
	b.subs[subject][id] = handler
	return memorySub{broker: b, subject: subject, id: id}, nil
}

func (b *MemoryBroker) Flush(ctx context.Context) error {
	return ctx.Err()
}

type memorySub struct {
	broker  *MemoryBroker
	subject string
	id      int
}

func (s memorySub) Unsubscribe() error {
	s.broker.mu.Lock()
	defer s.broker.mu.Unlock()
	delete(s.broker.subs[s.subject], s.id)
	if len(s.broker.subs[s.subject]) == 0 {
		delete(s.broker.subs, s.subject)
	}
	return nil
}

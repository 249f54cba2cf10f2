package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"therapy-chat-be/pkg/events"

	"github.com/nats-io/nats.go/jetstream"
)

const timeLayout = time.RFC3339Nano

// EventHandler is a function that processes an event.
type EventHandler func(ctx context.Context, event events.Event) error

type Subscriber struct {
	conn *Conn
}

func NewSubscriber(conn *Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// Subscribe attaches a durable consumer filtered on subject. Messages whose
// handler fails are redelivered. The returned stop function ends delivery.
func (s *Subscriber) Subscribe(ctx context.Context, subject, durableName string, handler EventHandler) (func(), error) {
	consumer, err := s.conn.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		event, err := decode(msg)
		if err != nil {
			log.Printf("Error decoding event on %s: %v", msg.Subject(), err)
			_ = msg.Term()
			return
		}

		if err := handler(ctx, event); err != nil {
			log.Printf("Handler failed for event %s: %v", msg.Subject(), err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	log.Printf("Subscribed to %s with durable %s", subject, durableName)
	return cc.Stop, nil
}

func decode(msg jetstream.Msg) (events.BaseEvent, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal(msg.Data(), &payload); err != nil {
		return events.BaseEvent{}, err
	}

	event := events.BaseEvent{
		Type:       msg.Headers().Get(headerEventType),
		Data:       payload,
		OccurredAt: time.Now().UTC(),
	}
	if ts := msg.Headers().Get(headerOccurredAt); ts != "" {
		if parsed, err := time.Parse(timeLayout, ts); err == nil {
			event.OccurredAt = parsed
		}
	}
	if event.Type == "" {
		event.Type = msg.Subject()
	}
	return event, nil
}

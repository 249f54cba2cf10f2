package nats

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName holds notification events under SubjectPrefix.
	StreamName    = "NOTIFICATIONS"
	SubjectPrefix = "notify"
)

// Conn is one NATS connection shared by the JetStream publisher, the
// subscriber and the realtime row-change broker.
type Conn struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func Connect(url string) (*Conn, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour,
	})
	if err != nil {
		log.Printf("Warn: Failed to ensure stream '%s': %v", StreamName, err)
	}

	return &Conn{nc: nc, js: js}, nil
}

// NC exposes the core connection for plain subject pub/sub.
func (c *Conn) NC() *nats.Conn {
	return c.nc
}

func (c *Conn) Close() {
	if c.nc != nil {
		c.nc.Drain()
	}
}

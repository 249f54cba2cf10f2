package events

import "time"

const (
	TypeFineTuneStatus = "FINETUNE_STATUS"
	TypeInviteSent     = "INVITE_SENT"
	TypeInviteFailed   = "INVITE_FAILED"
	TypeInviteAccepted = "INVITE_ACCEPTED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "FINETUNE_STATUS").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now().UTC()}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// RecipientID returns the "user_id" field that notification events carry,
// or "" when absent.
func RecipientID(e Event) string {
	if e == nil || e.Payload() == nil {
		return ""
	}
	id, _ := e.Payload()["user_id"].(string)
	return id
}

package dto

import "time"

// NotificationMessage is the frame pushed on a user's notification socket.
type NotificationMessage struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

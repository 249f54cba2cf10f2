package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,min=2,max=255"`
}

type TeamResponse struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerId   uuid.UUID `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

type InviteRequest struct {
	Email  string    `json:"email" validate:"required,email,max=255"`
	TeamId uuid.UUID `json:"team_id" validate:"required"`
}

type InviteResponse struct {
	Id        uuid.UUID  `json:"id"`
	ToEmail   string     `json:"to_email"`
	TeamId    uuid.UUID  `json:"team_id"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type JoinTeamRequest struct {
	Token string `json:"token" validate:"required,len=64,hexadecimal"`
}

type JoinTeamResponse struct {
	TeamId uuid.UUID `json:"team_id"`
	Status string    `json:"status"`
}

// InviteCreatedJob is the payload on the invite.created topic.
type InviteCreatedJob struct {
	InviteId uuid.UUID `json:"invite_id"`
}

package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Title string `json:"title" validate:"max=255"`
}

type ShareSessionRequest struct {
	UserIds []uuid.UUID `json:"user_ids" validate:"required,min=1,max=50"`
}

type SessionResponse struct {
	Id         uuid.UUID `json:"id"`
	UserId     uuid.UUID `json:"user_id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	SharedWith []string  `json:"shared_with"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type SessionDetailResponse struct {
	SessionResponse
	Messages []*MessageResponse `json:"messages"`
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=8000"`
	// ClientId is echoed back so the client can swap its provisional
	// message for the stored one.
	ClientId string `json:"client_id" validate:"omitempty,max=64"`
}

type MessageResponse struct {
	Id        uuid.UUID `json:"id"`
	SessionId uuid.UUID `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ClientId  string    `json:"client_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SendMessageResponse struct {
	UserMessage      *MessageResponse `json:"user_message"`
	AssistantMessage *MessageResponse `json:"assistant_message,omitempty"`
}

type SummarizeRequest struct {
	SessionId uuid.UUID `json:"session_id" validate:"required"`
}

type SummarizeResponse struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type SaveSummaryRequest struct {
	SessionId string `json:"session_id" validate:"required,uuid"`
	Summary   string `json:"summary" validate:"required,max=10000"`
}

// ClassifyMessageJob is the payload on the message.classify topic.
type ClassifyMessageJob struct {
	MessageId uuid.UUID `json:"message_id"`
	SessionId uuid.UUID `json:"session_id"`
}

package dto

import (
	"time"

	"therapy-chat-be/pkg/analytics"

	"github.com/google/uuid"
)

type UpsertAnnotationRequest struct {
	SourceId   uuid.UUID `json:"source_id" validate:"required"`
	SourceType string    `json:"source_type" validate:"required,oneof=message session"`
	Emotion    string    `json:"emotion" validate:"required,max=50"`
	Tone       string    `json:"tone" validate:"max=50"`
	Intensity  float64   `json:"intensity" validate:"gte=0,lte=1"`
	Topic      string    `json:"topic" validate:"max=100"`
	Note       string    `json:"note" validate:"max=2000"`
}

type AnnotationResponse struct {
	Id          uuid.UUID `json:"id"`
	SourceId    uuid.UUID `json:"source_id"`
	SourceType  string    `json:"source_type"`
	TherapistId uuid.UUID `json:"therapist_id"`
	SessionId   uuid.UUID `json:"session_id"`
	Emotion     string    `json:"emotion"`
	Tone        string    `json:"tone"`
	Intensity   float64   `json:"intensity"`
	Topic       string    `json:"topic"`
	Note        string    `json:"note"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type EmotionLogResponse struct {
	Id             uuid.UUID `json:"id"`
	MessageId      uuid.UUID `json:"message_id"`
	Emotion        string    `json:"emotion"`
	Tone           string    `json:"tone"`
	Intensity      float64   `json:"intensity"`
	Topic          string    `json:"topic"`
	AlignmentScore *float64  `json:"alignment_score"`
	Source         string    `json:"source"`
	CreatedAt      time.Time `json:"created_at"`
}

type SessionScoreResponse struct {
	SessionId uuid.UUID `json:"session_id"`
	analytics.SessionScore
}

type SessionSeverityResponse struct {
	SessionId uuid.UUID `json:"session_id"`
	analytics.SeverityBreakdown
}

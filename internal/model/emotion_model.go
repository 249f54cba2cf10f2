package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	EmotionSourceAI     = "ai"
	EmotionSourceManual = "manual"

	SourceTypeMessage = "message"
	SourceTypeSession = "session"
)

// EmotionLog is the classifier's reading of one message.
type EmotionLog struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionId      uuid.UUID `gorm:"type:uuid;not null;index"`
	MessageId      uuid.UUID `gorm:"type:uuid;not null;index"`
	Emotion        string    `gorm:"type:varchar(50);not null"`
	Tone           string    `gorm:"type:varchar(50);not null;default:''"`
	Intensity      float64   `gorm:"not null;default:0"`
	Topic          string    `gorm:"type:varchar(100);not null;default:''"`
	AlignmentScore *float64
	Source         string    `gorm:"type:varchar(10);not null;default:'ai'"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (EmotionLog) TableName() string {
	return "emotion_logs"
}

// Annotation is a therapist's correction of a message or a whole session.
// (source_id, source_type, therapist_id) is unique.
type Annotation struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SourceId    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_annotation_source_therapist,priority:1"`
	SourceType  string    `gorm:"type:varchar(20);not null;uniqueIndex:uq_annotation_source_therapist,priority:2"`
	TherapistId uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_annotation_source_therapist,priority:3"`
	SessionId   uuid.UUID `gorm:"type:uuid;not null;index"`
	Emotion     string    `gorm:"type:varchar(50);not null"`
	Tone        string    `gorm:"type:varchar(50);not null;default:''"`
	Intensity   float64   `gorm:"not null;default:0"`
	Topic       string    `gorm:"type:varchar(100);not null;default:''"`
	Note        string    `gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (Annotation) TableName() string {
	return "annotations"
}

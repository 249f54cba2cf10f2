package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	InviteStatusPending  = "pending"
	InviteStatusSent     = "sent"
	InviteStatusAccepted = "accepted"
	InviteStatusFailed   = "failed"
)

type InviteLog struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Token      string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	ToEmail    string    `gorm:"type:varchar(255);not null;index"`
	TeamId     uuid.UUID `gorm:"type:uuid;not null;index"`
	InvitedBy  uuid.UUID `gorm:"type:uuid;not null"`
	Status     string    `gorm:"type:varchar(20);not null;default:'pending';index"`
	Error      string    `gorm:"type:text;not null;default:''"`
	SentAt     *time.Time
	AcceptedAt *time.Time
	AcceptedBy *uuid.UUID `gorm:"type:uuid"`
	CreatedAt  time.Time  `gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime"`
}

func (InviteLog) TableName() string {
	return "invite_logs"
}

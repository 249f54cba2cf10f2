package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChatSession struct {
	Id         uuid.UUID                   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId     uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Title      string                      `gorm:"type:text;not null;default:''"`
	Summary    string                      `gorm:"type:text;not null;default:''"`
	SharedWith datatypes.JSONSlice[string] `gorm:"type:jsonb;not null;default:'[]'"`
	CreatedAt  time.Time                   `gorm:"autoCreateTime;index"`
	UpdatedAt  time.Time                   `gorm:"autoUpdateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

func (s *ChatSession) IsSharedWith(userId uuid.UUID) bool {
	id := userId.String()
	for _, shared := range s.SharedWith {
		if shared == id {
			return true
		}
	}
	return false
}

// CanRead covers owners, collaborators the session was shared with, and
// reviewers (therapists/admins).
func (s *ChatSession) CanRead(userId uuid.UUID, role string) bool {
	if s.UserId == userId || s.IsSharedWith(userId) {
		return true
	}
	return role == RoleTherapist || role == RoleAdmin
}

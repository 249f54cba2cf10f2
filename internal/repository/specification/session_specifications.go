package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessibleBy matches sessions the user owns or that were shared with them.
type AccessibleBy struct {
	UserID uuid.UUID
}

func (s AccessibleBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ? OR shared_with @> ?::jsonb", s.UserID, `["`+s.UserID.String()+`"]`)
}

type BySourceType struct {
	SourceType string
}

func (s BySourceType) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_type = ?", s.SourceType)
}

type ByEmail struct {
	Email string
}

func (s ByEmail) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("LOWER(email) = LOWER(?)", s.Email)
}

type ByToken struct {
	Token string
}

func (s ByToken) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("token = ?", s.Token)
}

type ByName struct {
	Name string
}

func (s ByName) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("name = ?", s.Name)
}

type ByFilterHash struct {
	Hash string
}

func (s ByFilterHash) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("filter_hash = ?", s.Hash)
}

type ByJobStatuses struct {
	Statuses []string
}

func (s ByJobStatuses) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("job_status IN ?", s.Statuses)
}

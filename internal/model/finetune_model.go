package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobStatusPending = "pending"
	// JobStatusSubmitting marks a snapshot claimed by one kickoff while its
	// training file and job are created.
	JobStatusSubmitting = "submitting"
	JobStatusQueued     = "queued"
	JobStatusRunning    = "running"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

// IsTerminalJobStatus reports whether polling can stop.
func IsTerminalJobStatus(status string) bool {
	switch status {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

type FineTuneSnapshot struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name           string         `gorm:"type:varchar(255);not null;uniqueIndex:uq_snapshot_name_version,priority:1"`
	Version        int            `gorm:"not null;default:1;uniqueIndex:uq_snapshot_name_version,priority:2"`
	Filters        datatypes.JSON `gorm:"type:jsonb;not null"`
	FilterHash     string         `gorm:"type:char(64);not null;uniqueIndex"`
	RowCount       int            `gorm:"not null;default:0"`
	JobStatus      string         `gorm:"type:varchar(20);not null;default:'pending';index"`
	JobId          string         `gorm:"type:varchar(100);not null;default:''"`
	TrainingFileId string         `gorm:"type:varchar(100);not null;default:''"`
	FineTunedModel string         `gorm:"type:varchar(255);not null;default:''"`
	StorageURI     string         `gorm:"type:text;not null;default:''"`
	RetryCount     int            `gorm:"not null;default:0"`
	LastError      string         `gorm:"type:text;not null;default:''"`
	CreatedBy      uuid.UUID      `gorm:"type:uuid;not null"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
}

func (FineTuneSnapshot) TableName() string {
	return "finetune_snapshots"
}

// ExportLock blocks snapshot creation until ExpiresAt.
type ExportLock struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Scope     string    `gorm:"type:varchar(50);not null;default:'finetune';index"`
	LockedBy  uuid.UUID `gorm:"type:uuid;not null"`
	Reason    string    `gorm:"type:text;not null;default:''"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (ExportLock) TableName() string {
	return "export_locks"
}

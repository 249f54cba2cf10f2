package contract

import (
	"context"
	"errors"
	"time"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ErrSnapshotVersionTaken is returned by CreateIfAbsent when another
// snapshot with the same name already holds the version.
var ErrSnapshotVersionTaken = errors.New("snapshot version already taken")

type SnapshotRepository interface {
	// CreateIfAbsent inserts snapshot unless its filter_hash is already
	// taken. It reports whether the row was inserted.
	CreateIfAbsent(ctx context.Context, snapshot *model.FineTuneSnapshot) (bool, error)
	NextVersion(ctx context.Context, name string) (int, error)
	// ClaimKickoff moves a snapshot without a job from pending to
	// submitting, or takes over a submitting claim last touched before
	// staleBefore. It reports whether this caller holds the claim.
	ClaimKickoff(ctx context.Context, id uuid.UUID, staleBefore time.Time) (bool, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	IncrementRetry(ctx context.Context, id uuid.UUID, lastError string) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*model.FineTuneSnapshot, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.FineTuneSnapshot, error)
}

type ExportLockRepository interface {
	Create(ctx context.Context, lock *model.ExportLock) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*model.ExportLock, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.ExportLock, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteWhere(ctx context.Context, specs ...specification.Specification) (int64, error)
}

type TrainingRowRepository interface {
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.TrainingRow, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// Aggregate groups every matching row by emotion, with severity bucket
	// counts at the analytics thresholds.
	Aggregate(ctx context.Context, specs ...specification.Specification) ([]*model.EmotionAggregate, error)
}

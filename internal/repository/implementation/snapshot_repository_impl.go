package implementation

import (
	"context"
	"errors"
	"time"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/repository/contract"
	"therapy-chat-be/internal/repository/specification"
	"therapy-chat-be/pkg/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SnapshotRepositoryImpl struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) contract.SnapshotRepository {
	return &SnapshotRepositoryImpl{db: db}
}

func (r *SnapshotRepositoryImpl) CreateIfAbsent(ctx context.Context, snapshot *model.FineTuneSnapshot) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "filter_hash"}},
			DoNothing: true,
		}).
		Create(snapshot)
	if result.Error != nil {
		// filter_hash conflicts are absorbed above; anything left is (name, version).
		if database.IsUniqueViolation(result.Error) {
			return false, contract.ErrSnapshotVersionTaken
		}
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *SnapshotRepositoryImpl) NextVersion(ctx context.Context, name string) (int, error) {
	var current int
	err := r.db.WithContext(ctx).
		Model(&model.FineTuneSnapshot{}).
		Where("name = ?", name).
		Select("COALESCE(MAX(version), 0)").
		Scan(&current).Error
	if err != nil {
		return 0, err
	}
	return current + 1, nil
}

func (r *SnapshotRepositoryImpl) ClaimKickoff(ctx context.Context, id uuid.UUID, staleBefore time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.FineTuneSnapshot{}).
		Where("id = ? AND job_id = ''", id).
		Where("job_status = ? OR (job_status = ? AND updated_at < ?)",
			model.JobStatusPending, model.JobStatusSubmitting, staleBefore).
		Updates(map[string]interface{}{
			"job_status": model.JobStatusSubmitting,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *SnapshotRepositoryImpl) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&model.FineTuneSnapshot{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *SnapshotRepositoryImpl) IncrementRetry(ctx context.Context, id uuid.UUID, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&model.FineTuneSnapshot{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  lastError,
		}).Error
}

func (r *SnapshotRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*model.FineTuneSnapshot, error) {
	var m model.FineTuneSnapshot
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *SnapshotRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.FineTuneSnapshot, error) {
	var models []*model.FineTuneSnapshot
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}

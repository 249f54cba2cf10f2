package implementation

import (
	"context"
	"errors"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/repository/contract"
	"therapy-chat-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ExportLockRepositoryImpl struct {
	db *gorm.DB
}

func NewExportLockRepository(db *gorm.DB) contract.ExportLockRepository {
	return &ExportLockRepositoryImpl{db: db}
}

func (r *ExportLockRepositoryImpl) Create(ctx context.Context, lock *model.ExportLock) error {
	return r.db.WithContext(ctx).Create(lock).Error
}

func (r *ExportLockRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*model.ExportLock, error) {
	var m model.ExportLock
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *ExportLockRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.ExportLock, error) {
	var models []*model.ExportLock
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}

func (r *ExportLockRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&model.ExportLock{}, "id = ?", id)
	return result.RowsAffected > 0, result.Error
}

func (r *ExportLockRepositoryImpl) DeleteWhere(ctx context.Context, specs ...specification.Specification) (int64, error) {
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	result := query.Delete(&model.ExportLock{})
	return result.RowsAffected, result.Error
}

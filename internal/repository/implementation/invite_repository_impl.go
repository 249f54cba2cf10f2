package implementation

import (
	"context"
	"errors"
	"time"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/repository/contract"
	"therapy-chat-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InviteRepositoryImpl struct {
	db *gorm.DB
}

func NewInviteRepository(db *gorm.DB) contract.InviteRepository {
	return &InviteRepositoryImpl{db: db}
}

func (r *InviteRepositoryImpl) Create(ctx context.Context, invite *model.InviteLog) error {
	return r.db.WithContext(ctx).Create(invite).Error
}

func (r *InviteRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*model.InviteLog, error) {
	var m model.InviteLog
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (r *InviteRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.InviteLog, error) {
	var models []*model.InviteLog
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}

// MarkSent and MarkFailed only touch invites that were never delivered, so a
// sent or accepted invite keeps its status.
func (r *InviteRepositoryImpl) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.InviteLog{}).
		Where("id = ? AND status IN ?", id, []string{model.InviteStatusPending, model.InviteStatusFailed}).
		Updates(map[string]interface{}{
			"status":  model.InviteStatusSent,
			"sent_at": at,
			"error":   "",
		}).Error
}

func (r *InviteRepositoryImpl) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&model.InviteLog{}).
		Where("id = ? AND status IN ?", id, []string{model.InviteStatusPending, model.InviteStatusFailed}).
		Updates(map[string]interface{}{
			"status": model.InviteStatusFailed,
			"error":  reason,
		}).Error
}

func (r *InviteRepositoryImpl) Accept(ctx context.Context, token string, userId uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.InviteLog{}).
		Where("token = ? AND status IN ?", token, []string{model.InviteStatusPending, model.InviteStatusSent}).
		Updates(map[string]interface{}{
			"status":      model.InviteStatusAccepted,
			"accepted_at": at,
			"accepted_by": userId,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

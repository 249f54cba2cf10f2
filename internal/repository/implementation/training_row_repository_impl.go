package implementation

import (
	"context"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/repository/contract"
	"therapy-chat-be/internal/repository/specification"
	"therapy-chat-be/pkg/analytics"

	"gorm.io/gorm"
)

type TrainingRowRepositoryImpl struct {
	db *gorm.DB
}

func NewTrainingRowRepository(db *gorm.DB) contract.TrainingRowRepository {
	return &TrainingRowRepositoryImpl{db: db}
}

func (r *TrainingRowRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.TrainingRow, error) {
	var rows []*model.TrainingRow
	query := specification.Apply(r.db.WithContext(ctx).Model(&model.TrainingRow{}), specs...)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *TrainingRowRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := specification.Apply(r.db.WithContext(ctx).Model(&model.TrainingRow{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *TrainingRowRepositoryImpl) Aggregate(ctx context.Context, specs ...specification.Specification) ([]*model.EmotionAggregate, error) {
	var rows []*model.EmotionAggregate
	query := specification.Apply(r.db.WithContext(ctx).Model(&model.TrainingRow{}), specs...)
	err := query.
		Select(`emotion,
			COUNT(*) AS count,
			AVG(intensity) AS average_intensity,
			AVG(alignment_score) AS average_score,
			COUNT(*) FILTER (WHERE intensity >= ?) AS high,
			COUNT(*) FILTER (WHERE intensity >= ? AND intensity < ?) AS medium,
			COUNT(*) FILTER (WHERE intensity < ?) AS low`,
			analytics.HighThreshold, analytics.MediumThreshold, analytics.HighThreshold, analytics.MediumThreshold).
		Group("emotion").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

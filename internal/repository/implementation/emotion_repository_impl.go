package implementation

import (
	"context"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/repository/contract"
	"therapy-chat-be/internal/repository/specification"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EmotionLogRepositoryImpl struct {
	db *gorm.DB
}

func NewEmotionLogRepository(db *gorm.DB) contract.EmotionLogRepository {
	return &EmotionLogRepositoryImpl{db: db}
}

func (r *EmotionLogRepositoryImpl) Create(ctx context.Context, log *model.EmotionLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *EmotionLogRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.EmotionLog, error) {
	var models []*model.EmotionLog
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}

type AnnotationRepositoryImpl struct {
	db *gorm.DB
}

func NewAnnotationRepository(db *gorm.DB) contract.AnnotationRepository {
	return &AnnotationRepositoryImpl{db: db}
}

func (r *AnnotationRepositoryImpl) Upsert(ctx context.Context, annotation *model.Annotation) error {
	return r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "source_id"}, {Name: "source_type"}, {Name: "therapist_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"emotion":    annotation.Emotion,
					"tone":       annotation.Tone,
					"intensity":  annotation.Intensity,
					"topic":      annotation.Topic,
					"note":       annotation.Note,
					"session_id": annotation.SessionId,
					"updated_at": gorm.Expr("NOW()"),
				}),
			},
			clause.Returning{},
		).
		Create(annotation).Error
}

func (r *AnnotationRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.Annotation, error) {
	var models []*model.Annotation
	query := specification.Apply(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}

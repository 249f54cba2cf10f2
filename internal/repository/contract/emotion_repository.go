package contract

import (
	"context"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/repository/specification"
)

type EmotionLogRepository interface {
	Create(ctx context.Context, log *model.EmotionLog) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.EmotionLog, error)
}

type AnnotationRepository interface {
	// Upsert inserts or replaces the row keyed by
	// (source_id, source_type, therapist_id) and reloads annotation from it.
	Upsert(ctx context.Context, annotation *model.Annotation) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.Annotation, error)
}

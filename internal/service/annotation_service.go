package service

import (
	"context"
	"strings"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/mapper"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/realtime"
	"therapy-chat-be/internal/repository/specification"
	"therapy-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// Flusher drops cached export previews after labels change.
type Flusher interface {
	Flush()
}

type IAnnotationService interface {
	Upsert(ctx context.Context, caller serverutils.Identity, req *dto.UpsertAnnotationRequest) (*dto.AnnotationResponse, error)
	GetBySession(ctx context.Context, caller serverutils.Identity, sessionId uuid.UUID) ([]*dto.AnnotationResponse, error)
}

type annotationService struct {
	uowFactory unitofwork.RepositoryFactory
	feed       realtime.Publisher
	previews   Flusher
	mapper     *mapper.EmotionMapper
	logger     logger.ILogger
}

func NewAnnotationService(uowFactory unitofwork.RepositoryFactory, feed realtime.Publisher, previews Flusher, log logger.ILogger) IAnnotationService {
	return &annotationService{
		uowFactory: uowFactory,
		feed:       feed,
		previews:   previews,
		mapper:     mapper.NewEmotionMapper(),
		logger:     log,
	}
}

// Upsert keeps one annotation per therapist per source; a second write by
// the same therapist replaces the first.
func (s *annotationService) Upsert(ctx context.Context, caller serverutils.Identity, req *dto.UpsertAnnotationRequest) (*dto.AnnotationResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	sessionId, err := s.resolveSession(ctx, uow, req.SourceType, req.SourceId)
	if err != nil {
		return nil, err
	}
	if _, err := loadReadableSession(ctx, uow, caller, sessionId); err != nil {
		return nil, err
	}

	annotation := &model.Annotation{
		Id:          uuid.New(),
		SourceId:    req.SourceId,
		SourceType:  req.SourceType,
		TherapistId: caller.UserID,
		SessionId:   sessionId,
		Emotion:     strings.ToLower(strings.TrimSpace(req.Emotion)),
		Tone:        strings.ToLower(strings.TrimSpace(req.Tone)),
		Intensity:   req.Intensity,
		Topic:       strings.TrimSpace(req.Topic),
		Note:        strings.TrimSpace(req.Note),
	}
	if err := uow.AnnotationRepository().Upsert(ctx, annotation); err != nil {
		return nil, serverutils.Internal("Failed to save annotation", err)
	}

	res := s.mapper.ToAnnotation(annotation)
	publishRowChange(ctx, s.feed, s.logger, realtime.TableEmotionLogs, realtime.OpUpdate, sessionId, annotation.Id, res)
	if s.previews != nil {
		s.previews.Flush()
	}

	s.logger.Info("ANNOTATION", "Annotation saved", map[string]interface{}{
		"annotation_id": annotation.Id,
		"source_type":   annotation.SourceType,
		"therapist_id":  caller.UserID,
	})
	return res, nil
}

func (s *annotationService) GetBySession(ctx context.Context, caller serverutils.Identity, sessionId uuid.UUID) ([]*dto.AnnotationResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := loadReadableSession(ctx, uow, caller, sessionId); err != nil {
		return nil, err
	}

	items, err := uow.AnnotationRepository().FindAll(ctx,
		specification.BySessionID{SessionID: sessionId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, serverutils.Internal("Failed to load annotations", err)
	}
	return s.mapper.ToAnnotations(items), nil
}

func (s *annotationService) resolveSession(ctx context.Context, uow unitofwork.UnitOfWork, sourceType string, sourceId uuid.UUID) (uuid.UUID, error) {
	switch sourceType {
	case model.SourceTypeSession:
		return sourceId, nil
	case model.SourceTypeMessage:
		msg, err := uow.MessageRepository().FindOne(ctx, specification.ByID{ID: sourceId})
		if err != nil {
			return uuid.Nil, serverutils.Internal("Failed to load message", err)
		}
		if msg == nil {
			return uuid.Nil, serverutils.NotFound("Message not found")
		}
		return msg.SessionId, nil
	default:
		return uuid.Nil, serverutils.BadRequest("source_type must be message or session")
	}
}

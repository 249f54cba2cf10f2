package mapper

import (
	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
)

type EmotionMapper struct{}

func NewEmotionMapper() *EmotionMapper {
	return &EmotionMapper{}
}

func (m *EmotionMapper) ToAnnotation(a *model.Annotation) *dto.AnnotationResponse {
	if a == nil {
		return nil
	}
	return &dto.AnnotationResponse{
		Id:          a.Id,
		SourceId:    a.SourceId,
		SourceType:  a.SourceType,
		TherapistId: a.TherapistId,
		SessionId:   a.SessionId,
		Emotion:     a.Emotion,
		Tone:        a.Tone,
		Intensity:   a.Intensity,
		Topic:       a.Topic,
		Note:        a.Note,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func (m *EmotionMapper) ToAnnotations(items []*model.Annotation) []*dto.AnnotationResponse {
	res := make([]*dto.AnnotationResponse, 0, len(items))
	for _, a := range items {
		res = append(res, m.ToAnnotation(a))
	}
	return res
}

func (m *EmotionMapper) ToEmotionLog(e *model.EmotionLog) *dto.EmotionLogResponse {
	if e == nil {
		return nil
	}
	return &dto.EmotionLogResponse{
		Id:             e.Id,
		MessageId:      e.MessageId,
		Emotion:        e.Emotion,
		Tone:           e.Tone,
		Intensity:      e.Intensity,
		Topic:          e.Topic,
		AlignmentScore: e.AlignmentScore,
		Source:         e.Source,
		CreatedAt:      e.CreatedAt,
	}
}

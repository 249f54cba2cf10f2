package mapper

import (
	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

func (m *ChatMapper) ToSession(s *model.ChatSession) *dto.SessionResponse {
	if s == nil {
		return nil
	}
	shared := []string(s.SharedWith)
	if shared == nil {
		shared = []string{}
	}
	return &dto.SessionResponse{
		Id:         s.Id,
		UserId:     s.UserId,
		Title:      s.Title,
		Summary:    s.Summary,
		SharedWith: shared,
		CreatedAt:  s.CreatedAt,
		UpdatedAt:  s.UpdatedAt,
	}
}

func (m *ChatMapper) ToSessions(sessions []*model.ChatSession) []*dto.SessionResponse {
	res := make([]*dto.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		res = append(res, m.ToSession(s))
	}
	return res
}

func (m *ChatMapper) ToMessage(msg *model.Message) *dto.MessageResponse {
	if msg == nil {
		return nil
	}
	return &dto.MessageResponse{
		Id:        msg.Id,
		SessionId: msg.SessionId,
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	}
}

func (m *ChatMapper) ToMessages(messages []*model.Message) []*dto.MessageResponse {
	res := make([]*dto.MessageResponse, 0, len(messages))
	for _, msg := range messages {
		res = append(res, m.ToMessage(msg))
	}
	return res
}

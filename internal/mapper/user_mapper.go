package mapper

import (
	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
)

type UserMapper struct{}

func NewUserMapper() *UserMapper {
	return &UserMapper{}
}

func (m *UserMapper) ToProfile(u *model.User) *dto.UserProfileResponse {
	if u == nil {
		return nil
	}
	return &dto.UserProfileResponse{
		Id:        u.Id,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		AvatarURL: u.AvatarURL,
		TeamId:    u.TeamId,
		CreatedAt: u.CreatedAt,
	}
}

func (m *UserMapper) ToTeam(t *model.Team) *dto.TeamResponse {
	if t == nil {
		return nil
	}
	return &dto.TeamResponse{
		Id:        t.Id,
		Name:      t.Name,
		OwnerId:   t.OwnerId,
		CreatedAt: t.CreatedAt,
	}
}

func (m *UserMapper) ToInvite(i *model.InviteLog) *dto.InviteResponse {
	if i == nil {
		return nil
	}
	return &dto.InviteResponse{
		Id:        i.Id,
		ToEmail:   i.ToEmail,
		TeamId:    i.TeamId,
		Status:    i.Status,
		Error:     i.Error,
		SentAt:    i.SentAt,
		CreatedAt: i.CreatedAt,
	}
}

package contract

import (
	"context"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	SetTeam(ctx context.Context, userId uuid.UUID, teamId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*model.User, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.User, error)
}

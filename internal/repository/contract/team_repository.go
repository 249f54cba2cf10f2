package contract

import (
	"context"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type TeamRepository interface {
	Create(ctx context.Context, team *model.Team) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*model.Team, error)
	// AddMember is a no-op when the user already belongs to the team.
	AddMember(ctx context.Context, member *model.TeamMember) error
	IsMember(ctx context.Context, teamId, userId uuid.UUID) (bool, error)
}

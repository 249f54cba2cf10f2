package contract

import (
	"context"
	"time"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type InviteRepository interface {
	Create(ctx context.Context, invite *model.InviteLog) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*model.InviteLog, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.InviteLog, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	// Accept moves the invite holding token from pending or sent to
	// accepted. It reports whether a row changed.
	Accept(ctx context.Context, token string, userId uuid.UUID, at time.Time) (bool, error)
}

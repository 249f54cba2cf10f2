package contract

import (
	"context"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *model.ChatSession) error
	Update(ctx context.Context, session *model.ChatSession) error
	// SaveSummary stores summary and sets the title only when it is empty.
	SaveSummary(ctx context.Context, id uuid.UUID, summary string, title string) (bool, error)
	FindOne(ctx context.Context, specs ...specification.Specification) (*model.ChatSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.ChatSession, error)
}

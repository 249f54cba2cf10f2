package contract

import (
	"context"

	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*model.Message, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*model.Message, error)
	// FindRecent returns the newest limit messages of a session, oldest first.
	FindRecent(ctx context.Context, sessionId uuid.UUID, limit int) ([]*model.Message, error)
}

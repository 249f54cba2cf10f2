package unitofwork

import (
	"context"

	"therapy-chat-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	TeamRepository() contract.TeamRepository
	ChatSessionRepository() contract.ChatSessionRepository
	MessageRepository() contract.MessageRepository
	EmotionLogRepository() contract.EmotionLogRepository
	AnnotationRepository() contract.AnnotationRepository
	SnapshotRepository() contract.SnapshotRepository
	ExportLockRepository() contract.ExportLockRepository
	TrainingRowRepository() contract.TrainingRowRepository
	InviteRepository() contract.InviteRepository
}

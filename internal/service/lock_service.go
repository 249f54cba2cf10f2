package service

import (
	"context"
	"time"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/mapper"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/pkg/scheduler"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/repository/specification"
	"therapy-chat-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// LockScopeFineTune is the only lock scope snapshot creation checks.
const LockScopeFineTune = "finetune"

type ILockService interface {
	Create(ctx context.Context, caller serverutils.Identity, req *dto.CreateLockRequest) (*dto.LockResponse, error)
	Release(ctx context.Context, id uuid.UUID) error
	GetActive(ctx context.Context) ([]*dto.LockResponse, error)
	// Active returns the unexpired lock that ends last, or nil.
	Active(ctx context.Context) (*model.ExportLock, error)
	Sweep(ctx context.Context) (int64, error)
	StartSweeper(ctx context.Context, interval time.Duration) (*scheduler.Task, error)
}

type lockService struct {
	uowFactory unitofwork.RepositoryFactory
	defaultTTL time.Duration
	now        func() time.Time
	mapper     *mapper.ExportMapper
	logger     logger.ILogger
}

func NewLockService(uowFactory unitofwork.RepositoryFactory, defaultTTL time.Duration, log logger.ILogger) ILockService {
	if defaultTTL <= 0 {
		defaultTTL = 15 * time.Minute
	}
	return &lockService{
		uowFactory: uowFactory,
		defaultTTL: defaultTTL,
		now:        time.Now,
		mapper:     mapper.NewExportMapper(),
		logger:     log,
	}
}

func (s *lockService) Create(ctx context.Context, caller serverutils.Identity, req *dto.CreateLockRequest) (*dto.LockResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	ttl := s.defaultTTL
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}

	lock := &model.ExportLock{
		Id:        uuid.New(),
		Scope:     LockScopeFineTune,
		LockedBy:  caller.UserID,
		Reason:    req.Reason,
		ExpiresAt: s.now().Add(ttl).UTC(),
	}
	if err := uow.ExportLockRepository().Create(ctx, lock); err != nil {
		return nil, serverutils.Internal("Failed to create lock", err)
	}

	s.logger.Info("LOCK", "Export lock created", map[string]interface{}{
		"lock_id":    lock.Id,
		"locked_by":  caller.UserID,
		"expires_at": lock.ExpiresAt,
	})
	return s.mapper.ToLock(lock), nil
}

func (s *lockService) Release(ctx context.Context, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	deleted, err := uow.ExportLockRepository().Delete(ctx, id)
	if err != nil {
		return serverutils.Internal("Failed to release lock", err)
	}
	if !deleted {
		return serverutils.NotFound("Lock not found")
	}
	return nil
}

func (s *lockService) GetActive(ctx context.Context) ([]*dto.LockResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	locks, err := uow.ExportLockRepository().FindAll(ctx,
		specification.ExpiresAfter{At: s.now()},
		specification.OrderBy{Field: "expires_at", Desc: true},
	)
	if err != nil {
		return nil, serverutils.Internal("Failed to list locks", err)
	}

	res := make([]*dto.LockResponse, 0, len(locks))
	for _, l := range locks {
		res = append(res, s.mapper.ToLock(l))
	}
	return res, nil
}

func (s *lockService) Active(ctx context.Context) (*model.ExportLock, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.ExportLockRepository().FindOne(ctx,
		specification.Filter("scope", LockScopeFineTune),
		specification.ExpiresAfter{At: s.now()},
		specification.OrderBy{Field: "expires_at", Desc: true},
	)
}

// Sweep deletes every lock whose expiry has passed.
func (s *lockService) Sweep(ctx context.Context) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	n, err := uow.ExportLockRepository().DeleteWhere(ctx, specification.ExpiresBefore{At: s.now()})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("LOCK", "Expired locks swept", map[string]interface{}{"count": n})
	}
	return n, nil
}

// StartSweeper runs Sweep every interval until ctx is done.
func (s *lockService) StartSweeper(ctx context.Context, interval time.Duration) (*scheduler.Task, error) {
	task := scheduler.New("lock-sweeper",
		scheduler.Policy{Interval: interval, RunImmediately: true},
		func(ctx context.Context, attempt int) (bool, error) {
			_, err := s.Sweep(ctx)
			return false, err
		},
		scheduler.WithErrorHook(func(attempt int, err error) {
			s.logger.Error("LOCK", "Lock sweep failed", map[string]interface{}{"attempt": attempt, "error": err.Error()})
		}),
	)
	if err := task.Start(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

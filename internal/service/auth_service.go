package service

import (
	"context"
	"strings"
	"time"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/mapper"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/repository/specification"
	"therapy-chat-be/internal/repository/unitofwork"
	"therapy-chat-be/pkg/database"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type IAuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserProfileResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	Me(ctx context.Context, userId uuid.UUID) (*dto.UserProfileResponse, error)
}

type authService struct {
	uowFactory unitofwork.RepositoryFactory
	jwtSecret  string
	jwtTTL     time.Duration
	mapper     *mapper.UserMapper
	logger     logger.ILogger
}

func NewAuthService(uowFactory unitofwork.RepositoryFactory, jwtSecret string, jwtTTL time.Duration, log logger.ILogger) IAuthService {
	return &authService{
		uowFactory: uowFactory,
		jwtSecret:  jwtSecret,
		jwtTTL:     jwtTTL,
		mapper:     mapper.NewUserMapper(),
		logger:     log,
	}
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.UserProfileResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: email})
	if err != nil {
		return nil, serverutils.Internal("Failed to check email", err)
	}
	if existing != nil {
		return nil, serverutils.Conflict("Email already registered", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, serverutils.Internal("Failed to hash password", err)
	}

	user := &model.User{
		Id:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     req.FullName,
		Role:         model.RoleUser,
	}
	if err := uow.UserRepository().Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, serverutils.Conflict("Email already registered", nil)
		}
		return nil, serverutils.Internal("Failed to create user", err)
	}

	s.logger.Info("AUTH", "User registered", map[string]interface{}{"user_id": user.Id})
	return s.mapper.ToProfile(user), nil
}

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: strings.TrimSpace(req.Email)})
	if err != nil {
		return nil, serverutils.Internal("Failed to load user", err)
	}
	if user == nil {
		return nil, serverutils.Unauthorized("Invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, serverutils.Unauthorized("Invalid email or password")
	}

	token, err := serverutils.IssueToken(s.jwtSecret, user.Id, user.Role, s.jwtTTL)
	if err != nil {
		return nil, serverutils.Internal("Failed to issue token", err)
	}

	return &dto.LoginResponse{
		AccessToken: token,
		ExpiresAt:   time.Now().Add(s.jwtTTL).UTC(),
		User:        s.mapper.ToProfile(user),
	}, nil
}

func (s *authService) Me(ctx context.Context, userId uuid.UUID) (*dto.UserProfileResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, serverutils.Internal("Failed to load user", err)
	}
	if user == nil {
		return nil, serverutils.NotFound("User not found")
	}
	return s.mapper.ToProfile(user), nil
}

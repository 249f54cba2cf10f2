package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/mapper"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/repository/specification"
	"therapy-chat-be/internal/repository/unitofwork"
	"therapy-chat-be/pkg/events"

	"github.com/google/uuid"
)

const (
	TeamRoleOwner  = "owner"
	TeamRoleMember = "member"
)

type ITeamService interface {
	CreateTeam(ctx context.Context, caller serverutils.Identity, req *dto.CreateTeamRequest) (*dto.TeamResponse, error)
	Invite(ctx context.Context, caller serverutils.Identity, req *dto.InviteRequest) (*dto.InviteResponse, error)
	Resend(ctx context.Context, caller serverutils.Identity, inviteId uuid.UUID) (*dto.InviteResponse, error)
	Join(ctx context.Context, caller serverutils.Identity, req *dto.JoinTeamRequest) (*dto.JoinTeamResponse, error)
}

type teamService struct {
	uowFactory  unitofwork.RepositoryFactory
	inviteQueue IPublisherService
	publisher   EventPublisher
	now         func() time.Time
	mapper      *mapper.UserMapper
	logger      logger.ILogger
}

func NewTeamService(uowFactory unitofwork.RepositoryFactory, inviteQueue IPublisherService, publisher EventPublisher, log logger.ILogger) ITeamService {
	return &teamService{
		uowFactory:  uowFactory,
		inviteQueue: inviteQueue,
		publisher:   publisher,
		now:         time.Now,
		mapper:      mapper.NewUserMapper(),
		logger:      log,
	}
}

// NewInviteToken returns 32 random bytes, hex encoded.
func NewInviteToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *teamService) CreateTeam(ctx context.Context, caller serverutils.Identity, req *dto.CreateTeamRequest) (*dto.TeamResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, serverutils.Internal("Failed to begin transaction", err)
	}
	defer uow.Rollback()

	team := &model.Team{
		Id:      uuid.New(),
		Name:    strings.TrimSpace(req.Name),
		OwnerId: caller.UserID,
	}
	if err := uow.TeamRepository().Create(ctx, team); err != nil {
		return nil, serverutils.Internal("Failed to create team", err)
	}
	if err := uow.TeamRepository().AddMember(ctx, &model.TeamMember{TeamId: team.Id, UserId: caller.UserID, Role: TeamRoleOwner}); err != nil {
		return nil, serverutils.Internal("Failed to add team owner", err)
	}
	if err := uow.UserRepository().SetTeam(ctx, caller.UserID, team.Id); err != nil {
		return nil, serverutils.Internal("Failed to assign team", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, serverutils.Internal("Failed to commit team", err)
	}
	return s.mapper.ToTeam(team), nil
}

func (s *teamService) Invite(ctx context.Context, caller serverutils.Identity, req *dto.InviteRequest) (*dto.InviteResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	if err := s.checkCanInvite(ctx, uow, caller, req.TeamId); err != nil {
		return nil, err
	}

	token, err := NewInviteToken()
	if err != nil {
		return nil, serverutils.Internal("Failed to generate invite token", err)
	}

	invite := &model.InviteLog{
		Id:        uuid.New(),
		Token:     token,
		ToEmail:   strings.ToLower(strings.TrimSpace(req.Email)),
		TeamId:    req.TeamId,
		InvitedBy: caller.UserID,
		Status:    model.InviteStatusPending,
	}
	if err := uow.InviteRepository().Create(ctx, invite); err != nil {
		return nil, serverutils.Internal("Failed to create invite", err)
	}

	s.dispatch(ctx, invite.Id)
	s.logger.Info("TEAM", "Invite created", map[string]interface{}{"invite_id": invite.Id, "team_id": invite.TeamId})
	return s.mapper.ToInvite(invite), nil
}

// Resend re-queues delivery for invites that are pending or failed.
func (s *teamService) Resend(ctx context.Context, caller serverutils.Identity, inviteId uuid.UUID) (*dto.InviteResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	invite, err := uow.InviteRepository().FindOne(ctx, specification.ByID{ID: inviteId})
	if err != nil {
		return nil, serverutils.Internal("Failed to load invite", err)
	}
	if invite == nil {
		return nil, serverutils.NotFound("Invite not found")
	}
	if err := s.checkCanInvite(ctx, uow, caller, invite.TeamId); err != nil {
		return nil, err
	}
	if invite.Status != model.InviteStatusPending && invite.Status != model.InviteStatusFailed {
		return nil, serverutils.Conflict("Invite cannot be resent in status "+invite.Status, s.mapper.ToInvite(invite))
	}

	s.dispatch(ctx, invite.Id)
	return s.mapper.ToInvite(invite), nil
}

// Join accepts an invite by token. Only a pending or sent invite can be
// accepted; an unknown token is 404 and any other status is 409.
func (s *teamService) Join(ctx context.Context, caller serverutils.Identity, req *dto.JoinTeamRequest) (*dto.JoinTeamResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	token := strings.ToLower(req.Token)

	if err := uow.Begin(ctx); err != nil {
		return nil, serverutils.Internal("Failed to begin transaction", err)
	}
	defer uow.Rollback()

	accepted, err := uow.InviteRepository().Accept(ctx, token, caller.UserID, s.now().UTC())
	if err != nil {
		return nil, serverutils.Internal("Failed to accept invite", err)
	}

	invite, err := uow.InviteRepository().FindOne(ctx, specification.ByToken{Token: token})
	if err != nil {
		return nil, serverutils.Internal("Failed to load invite", err)
	}
	if invite == nil {
		return nil, serverutils.NotFound("Invite not found")
	}
	if !accepted {
		return nil, serverutils.Conflict("Invite is no longer valid", dto.JoinTeamResponse{TeamId: invite.TeamId, Status: invite.Status})
	}

	if err := uow.TeamRepository().AddMember(ctx, &model.TeamMember{TeamId: invite.TeamId, UserId: caller.UserID, Role: TeamRoleMember}); err != nil {
		return nil, serverutils.Internal("Failed to add team member", err)
	}
	if err := uow.UserRepository().SetTeam(ctx, caller.UserID, invite.TeamId); err != nil {
		return nil, serverutils.Internal("Failed to assign team", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, serverutils.Internal("Failed to commit invite", err)
	}

	if s.publisher != nil {
		evt := events.New(events.TypeInviteAccepted, map[string]interface{}{
			"user_id":     invite.InvitedBy.String(),
			"invite_id":   invite.Id.String(),
			"team_id":     invite.TeamId.String(),
			"accepted_by": caller.UserID.String(),
		})
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("TEAM", "Failed to publish invite accepted", map[string]interface{}{"invite_id": invite.Id, "error": err.Error()})
		}
	}

	return &dto.JoinTeamResponse{TeamId: invite.TeamId, Status: model.InviteStatusAccepted}, nil
}

// checkCanInvite allows admins, the team owner, and team members.
func (s *teamService) checkCanInvite(ctx context.Context, uow unitofwork.UnitOfWork, caller serverutils.Identity, teamId uuid.UUID) error {
	team, err := uow.TeamRepository().FindOne(ctx, specification.ByID{ID: teamId})
	if err != nil {
		return serverutils.Internal("Failed to load team", err)
	}
	if team == nil {
		return serverutils.NotFound("Team not found")
	}
	if caller.Role == model.RoleAdmin || team.OwnerId == caller.UserID {
		return nil
	}
	member, err := uow.TeamRepository().IsMember(ctx, teamId, caller.UserID)
	if err != nil {
		return serverutils.Internal("Failed to check team membership", err)
	}
	if !member {
		return serverutils.Forbidden("You are not a member of this team")
	}
	return nil
}

func (s *teamService) dispatch(ctx context.Context, inviteId uuid.UUID) {
	if s.inviteQueue == nil {
		return
	}
	payload, err := json.Marshal(dto.InviteCreatedJob{InviteId: inviteId})
	if err == nil {
		err = s.inviteQueue.Publish(ctx, payload)
	}
	if err != nil {
		s.logger.Warn("TEAM", "Failed to queue invite email", map[string]interface{}{"invite_id": inviteId, "error": err.Error()})
	}
}

package controller

import (
	"context"
	"strings"
	"testing"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockTeamService struct{ mock.Mock }

func (m *mockTeamService) CreateTeam(ctx context.Context, caller serverutils.Identity, req *dto.CreateTeamRequest) (*dto.TeamResponse, error) {
	args := m.Called(ctx, caller, req)
	res, _ := args.Get(0).(*dto.TeamResponse)
	return res, args.Error(1)
}

func (m *mockTeamService) Invite(ctx context.Context, caller serverutils.Identity, req *dto.InviteRequest) (*dto.InviteResponse, error) {
	args := m.Called(ctx, caller, req)
	res, _ := args.Get(0).(*dto.InviteResponse)
	return res, args.Error(1)
}

func (m *mockTeamService) Resend(ctx context.Context, caller serverutils.Identity, inviteId uuid.UUID) (*dto.InviteResponse, error) {
	args := m.Called(ctx, caller, inviteId)
	res, _ := args.Get(0).(*dto.InviteResponse)
	return res, args.Error(1)
}

func (m *mockTeamService) Join(ctx context.Context, caller serverutils.Identity, req *dto.JoinTeamRequest) (*dto.JoinTeamResponse, error) {
	args := m.Called(ctx, caller, req)
	res, _ := args.Get(0).(*dto.JoinTeamResponse)
	return res, args.Error(1)
}

func TestInviteValidation(t *testing.T) {
	teams := new(mockTeamService)
	app := newTestApp(NewTeamController(teams).RegisterRoutes)
	tok := token(t, uuid.New(), model.RoleTherapist)

	for name, body := range map[string]string{
		"bad email":    `{"email":"not-an-email","team_id":"` + uuid.NewString() + `"}`,
		"missing team": `{"email":"a@example.com"}`,
		"malformed":    `{"email":`,
	} {
		t.Run(name, func(t *testing.T) {
			status, _ := do(t, app, fiber.MethodPost, "/api/teams/invite", tok, body)
			assert.Equal(t, fiber.StatusBadRequest, status)
		})
	}
	teams.AssertNotCalled(t, "Invite", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateTeamRequiresTherapist(t *testing.T) {
	app := newTestApp(NewTeamController(new(mockTeamService)).RegisterRoutes)

	status, _ := do(t, app, fiber.MethodPost, "/api/teams", token(t, uuid.New(), model.RoleUser), `{"name":"Clinic"}`)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestJoinOutcomes(t *testing.T) {
	teams := new(mockTeamService)
	app := newTestApp(NewTeamController(teams).RegisterRoutes)
	tok := token(t, uuid.New(), model.RoleUser)

	unknown := strings.Repeat("a", 64)
	used := strings.Repeat("b", 64)
	valid := strings.Repeat("c", 64)
	teamID := uuid.New()

	teams.On("Join", mock.Anything, mock.Anything, &dto.JoinTeamRequest{Token: unknown}).
		Return(nil, serverutils.NotFound("Invite not found"))
	teams.On("Join", mock.Anything, mock.Anything, &dto.JoinTeamRequest{Token: used}).
		Return(nil, serverutils.Conflict("Invite is no longer valid", dto.JoinTeamResponse{TeamId: teamID, Status: model.InviteStatusAccepted}))
	teams.On("Join", mock.Anything, mock.Anything, &dto.JoinTeamRequest{Token: valid}).
		Return(&dto.JoinTeamResponse{TeamId: teamID, Status: model.InviteStatusAccepted}, nil)

	status, _ := do(t, app, fiber.MethodPost, "/api/teams/join", tok, `{"token":"`+unknown+`"}`)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = do(t, app, fiber.MethodPost, "/api/teams/join", tok, `{"token":"`+used+`"}`)
	assert.Equal(t, fiber.StatusConflict, status)

	status, env := do(t, app, fiber.MethodPost, "/api/teams/join", tok, `{"token":"`+valid+`"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), teamID.String())

	status, _ = do(t, app, fiber.MethodPost, "/api/teams/join", tok, `{"token":"short"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

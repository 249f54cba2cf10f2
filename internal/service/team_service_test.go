package service

import (
	"context"
	"strings"
	"testing"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInviteToken(t *testing.T) {
	a, err := NewInviteToken()
	require.NoError(t, err)
	b, err := NewInviteToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, strings.ToLower(a), a)
}

func TestJoinTeam(t *testing.T) {
	teamID := uuid.New()
	inviter := uuid.New()
	pending := strings.Repeat("a", 64)
	failed := strings.Repeat("f", 64)

	uow := &fakeUoW{
		invites: &fakeInviteRepo{byToken: map[string]*model.InviteLog{
			pending: {Id: uuid.New(), Token: pending, TeamId: teamID, InvitedBy: inviter, Status: model.InviteStatusSent},
			failed:  {Id: uuid.New(), Token: failed, TeamId: teamID, InvitedBy: inviter, Status: model.InviteStatusFailed},
		}},
		teams: &fakeTeamRepo{},
		users: &fakeUserRepo{},
	}
	pub := &recordingPublisher{}
	svc := NewTeamService(uow, nil, pub, logger.NewNop())
	joiner := serverutils.Identity{UserID: uuid.New(), Role: model.RoleUser}
	ctx := context.Background()

	_, err := svc.Join(ctx, joiner, &dto.JoinTeamRequest{Token: strings.Repeat("0", 64)})
	assert.Equal(t, 404, serverutils.StatusOf(err))

	_, err = svc.Join(ctx, joiner, &dto.JoinTeamRequest{Token: failed})
	assert.Equal(t, 409, serverutils.StatusOf(err))

	res, err := svc.Join(ctx, joiner, &dto.JoinTeamRequest{Token: strings.ToUpper(pending)})
	require.NoError(t, err)
	assert.Equal(t, teamID, res.TeamId)
	assert.Equal(t, model.InviteStatusAccepted, res.Status)
	assert.True(t, uow.committed)
	require.Len(t, uow.teams.members, 1)
	assert.Equal(t, TeamRoleMember, uow.teams.members[0].Role)
	assert.Equal(t, teamID, uow.users.teams[joiner.UserID])

	evts := pub.Events()
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeInviteAccepted, evts[0].EventType())
	assert.Equal(t, inviter.String(), events.RecipientID(evts[0]))

	// A second use of the same token is a conflict.
	_, err = svc.Join(ctx, joiner, &dto.JoinTeamRequest{Token: pending})
	assert.Equal(t, 409, serverutils.StatusOf(err))
}

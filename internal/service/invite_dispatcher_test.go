package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentInvite struct {
	to, team, inviter, token string
}

type fakeEmailService struct {
	err  error
	sent []sentInvite
}

func (f *fakeEmailService) SendInvite(to, team, inviter, token string) error {
	f.sent = append(f.sent, sentInvite{to: to, team: team, inviter: inviter, token: token})
	return f.err
}

func jobMessage(t *testing.T, job interface{}) *message.Message {
	t.Helper()
	payload, err := json.Marshal(job)
	require.NoError(t, err)
	return message.NewMessage(watermill.NewUUID(), payload)
}

func assertAcked(t *testing.T, msg *message.Message) {
	t.Helper()
	select {
	case <-msg.Acked():
	default:
		t.Fatal("message was not acked")
	}
}

func TestInviteDispatcher(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	team := &model.Team{Id: uuid.New(), Name: "Care Team"}
	inviter := &model.User{Id: uuid.New(), FullName: "Dr. Lee"}

	tests := []struct {
		name       string
		status     string
		emailErr   error
		wantStatus string
		wantError  string
		wantEvent  string
		wantSends  int
	}{
		{name: "pending to sent", status: model.InviteStatusPending, wantStatus: model.InviteStatusSent, wantEvent: events.TypeInviteSent, wantSends: 1},
		{name: "pending to failed", status: model.InviteStatusPending, emailErr: errors.New("smtp down"), wantStatus: model.InviteStatusFailed, wantError: "smtp down", wantEvent: events.TypeInviteFailed, wantSends: 1},
		{name: "failed invite is resent", status: model.InviteStatusFailed, wantStatus: model.InviteStatusSent, wantEvent: events.TypeInviteSent, wantSends: 1},
		{name: "accepted invite is skipped", status: model.InviteStatusAccepted, wantStatus: model.InviteStatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invite := &model.InviteLog{
				Id:        uuid.New(),
				Token:     "TOKEN123",
				ToEmail:   "new@example.com",
				TeamId:    team.Id,
				InvitedBy: inviter.Id,
				Status:    tt.status,
			}
			uow := &fakeUoW{
				invites: &fakeInviteRepo{byToken: map[string]*model.InviteLog{invite.Token: invite}},
				teams:   &fakeTeamRepo{byID: map[uuid.UUID]*model.Team{team.Id: team}},
				users:   &fakeUserRepo{byID: map[uuid.UUID]*model.User{inviter.Id: inviter}},
			}
			email := &fakeEmailService{err: tt.emailErr}
			pub := &recordingPublisher{}
			d := NewInviteDispatcher(nil, "invites", uow, email, pub, logger.NewNop()).(*inviteDispatcher)
			d.now = func() time.Time { return now }

			msg := jobMessage(t, dto.InviteCreatedJob{InviteId: invite.Id})
			d.processMessage(context.Background(), msg)

			assertAcked(t, msg)
			assert.Equal(t, tt.wantStatus, invite.Status)
			assert.Equal(t, tt.wantError, invite.Error)
			require.Len(t, email.sent, tt.wantSends)

			if tt.wantEvent == "" {
				assert.Empty(t, pub.Events())
				return
			}
			assert.Equal(t, sentInvite{to: "new@example.com", team: "Care Team", inviter: "Dr. Lee", token: "TOKEN123"}, email.sent[0])

			evts := pub.Events()
			require.Len(t, evts, 1)
			assert.Equal(t, tt.wantEvent, evts[0].EventType())
			assert.Equal(t, inviter.Id.String(), events.RecipientID(evts[0]))
			if tt.wantStatus == model.InviteStatusSent {
				require.NotNil(t, invite.SentAt)
				assert.Equal(t, now, *invite.SentAt)
			} else {
				assert.Equal(t, "smtp down", evts[0].Payload()["error"])
			}
		})
	}
}

func TestInviteDispatcherFallbackNames(t *testing.T) {
	invite := &model.InviteLog{Id: uuid.New(), Token: "T", ToEmail: "x@example.com", TeamId: uuid.New(), InvitedBy: uuid.New(), Status: model.InviteStatusPending}
	uow := &fakeUoW{
		invites: &fakeInviteRepo{byToken: map[string]*model.InviteLog{invite.Token: invite}},
		teams:   &fakeTeamRepo{},
		users:   &fakeUserRepo{},
	}
	email := &fakeEmailService{}
	d := NewInviteDispatcher(nil, "invites", uow, email, nil, logger.NewNop()).(*inviteDispatcher)

	d.processMessage(context.Background(), jobMessage(t, dto.InviteCreatedJob{InviteId: invite.Id}))

	require.Len(t, email.sent, 1)
	assert.Equal(t, "your team", email.sent[0].team)
	assert.Equal(t, "A colleague", email.sent[0].inviter)
}

func TestInviteDispatcherDropsAfterRetries(t *testing.T) {
	invite := &model.InviteLog{Id: uuid.New(), Token: "T", ToEmail: "x@example.com", Status: model.InviteStatusPending}
	uow := &fakeUoW{
		invites: &fakeInviteRepo{byToken: map[string]*model.InviteLog{invite.Token: invite}, markErr: errors.New("db gone")},
		teams:   &fakeTeamRepo{},
		users:   &fakeUserRepo{},
	}
	email := &fakeEmailService{}
	d := NewInviteDispatcher(nil, "invites", uow, email, nil, logger.NewNop()).(*inviteDispatcher)
	d.retry.InitialInterval = time.Millisecond
	d.retry.MaxInterval = time.Millisecond

	msg := jobMessage(t, dto.InviteCreatedJob{InviteId: invite.Id})
	d.processMessage(context.Background(), msg)

	assertAcked(t, msg)
	assert.Len(t, email.sent, d.retry.MaxRetries+1)
	assert.Equal(t, model.InviteStatusPending, invite.Status)
}

func TestInviteDispatcherIgnoresInvalidPayload(t *testing.T) {
	email := &fakeEmailService{}
	d := NewInviteDispatcher(nil, "invites", &fakeUoW{}, email, nil, logger.NewNop()).(*inviteDispatcher)

	msg := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	d.processMessage(context.Background(), msg)

	assertAcked(t, msg)
	assert.Empty(t, email.sent)
}

package service

import (
	"context"
	"encoding/json"
	"time"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/model"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/pkg/mailer"
	"therapy-chat-be/internal/repository/specification"
	"therapy-chat-be/internal/repository/unitofwork"
	"therapy-chat-be/pkg/events"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
)

type inviteDispatcher struct {
	subscriber message.Subscriber
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	email      mailer.IEmailService
	publisher  EventPublisher
	retry      middleware.Retry
	now        func() time.Time
	logger     logger.ILogger
}

// NewInviteDispatcher sends the invite email for every invite.created job
// and records the outcome on the invite.
func NewInviteDispatcher(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	email mailer.IEmailService,
	publisher EventPublisher,
	log logger.ILogger,
) IConsumerService {
	return &inviteDispatcher{
		subscriber: subscriber,
		topicName:  topicName,
		uowFactory: uowFactory,
		email:      email,
		publisher:  publisher,
		retry:      newHandlerRetry(log, "INVITE"),
		now:        time.Now,
		logger:     log,
	}
}

func (d *inviteDispatcher) Consume(ctx context.Context) error {
	messages, err := d.subscriber.Subscribe(ctx, d.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			d.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (d *inviteDispatcher) processMessage(ctx context.Context, msg *message.Message) {
	handleWithRetry(msg, d.retry, d.logger, "INVITE", func(m *message.Message) error {
		return d.dispatch(ctx, m)
	})
}

// dispatch returns an error only when the invite could not be loaded or its
// outcome could not be recorded.
func (d *inviteDispatcher) dispatch(ctx context.Context, msg *message.Message) error {
	var payload dto.InviteCreatedJob
	if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.InviteId == uuid.Nil {
		d.logger.Warn("INVITE", "Dropping invalid invite payload", map[string]interface{}{"uuid": msg.UUID})
		return nil
	}

	uow := d.uowFactory.NewUnitOfWork(ctx)

	invite, err := uow.InviteRepository().FindOne(ctx, specification.ByID{ID: payload.InviteId})
	if err != nil {
		d.logger.Error("INVITE", "Failed to load invite", map[string]interface{}{"invite_id": payload.InviteId, "error": err.Error()})
		return err
	}
	if invite == nil || (invite.Status != model.InviteStatusPending && invite.Status != model.InviteStatusFailed) {
		return nil
	}

	teamName := "your team"
	team, err := uow.TeamRepository().FindOne(ctx, specification.ByID{ID: invite.TeamId})
	if err == nil && team != nil {
		teamName = team.Name
	}
	inviterName := "A colleague"
	inviter, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: invite.InvitedBy})
	if err == nil && inviter != nil && inviter.FullName != "" {
		inviterName = inviter.FullName
	}

	// Delivery errors are recorded on the invite; resend retries.
	if sendErr := d.email.SendInvite(invite.ToEmail, teamName, inviterName, invite.Token); sendErr != nil {
		d.logger.Error("INVITE", "Invite email failed", map[string]interface{}{"invite_id": invite.Id, "error": sendErr.Error()})
		if err := uow.InviteRepository().MarkFailed(ctx, invite.Id, sendErr.Error()); err != nil {
			d.logger.Error("INVITE", "Failed to mark invite failed", map[string]interface{}{"invite_id": invite.Id, "error": err.Error()})
			return err
		}
		d.notify(ctx, events.TypeInviteFailed, invite, sendErr.Error())
		return nil
	}

	if err := uow.InviteRepository().MarkSent(ctx, invite.Id, d.now().UTC()); err != nil {
		d.logger.Error("INVITE", "Failed to mark invite sent", map[string]interface{}{"invite_id": invite.Id, "error": err.Error()})
		return err
	}
	d.notify(ctx, events.TypeInviteSent, invite, "")
	d.logger.Info("INVITE", "Invite email sent", map[string]interface{}{"invite_id": invite.Id})
	return nil
}

func (d *inviteDispatcher) notify(ctx context.Context, eventType string, invite *model.InviteLog, reason string) {
	if d.publisher == nil {
		return
	}
	data := map[string]interface{}{
		"user_id":   invite.InvitedBy.String(),
		"invite_id": invite.Id.String(),
		"team_id":   invite.TeamId.String(),
		"to_email":  invite.ToEmail,
	}
	if reason != "" {
		data["error"] = reason
	}
	if err := d.publisher.Publish(ctx, events.New(eventType, data)); err != nil {
		d.logger.Warn("INVITE", "Failed to publish invite event", map[string]interface{}{"invite_id": invite.Id, "error": err.Error()})
	}
}

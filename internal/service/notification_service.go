package service

import (
	"context"

	"therapy-chat-be/internal/dto"
	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/websocket"
	"therapy-chat-be/pkg/events"
	pktNats "therapy-chat-be/pkg/nats"

	"github.com/google/uuid"
)

const notificationDurable = "notification-relay"

// NotificationDelivery pushes a frame to every socket a user has open.
// Implemented by the websocket Hub.
type NotificationDelivery interface {
	SendToUser(userID uuid.UUID, data []byte)
}

// EventSubscriber is satisfied by the NATS subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, subject, durableName string, handler pktNats.EventHandler) (func(), error)
}

type NotificationService struct {
	subscriber EventSubscriber
	delivery   NotificationDelivery
	logger     logger.ILogger
	stop       func()
}

func NewNotificationService(sub EventSubscriber, delivery NotificationDelivery, log logger.ILogger) *NotificationService {
	return &NotificationService{
		subscriber: sub,
		delivery:   delivery,
		logger:     log,
	}
}

// Start relays every notify.* event to its recipient's notification socket.
func (s *NotificationService) Start(ctx context.Context) error {
	stop, err := s.subscriber.Subscribe(ctx, pktNats.SubjectPrefix+".>", notificationDurable, s.HandleEvent)
	if err != nil {
		s.logger.Error("NotificationService", "Failed to start notification subscriber", map[string]interface{}{"error": err.Error()})
		return err
	}
	s.stop = stop
	s.logger.Info("NotificationService", "Notification service started", map[string]interface{}{"subject": pktNats.SubjectPrefix + ".>"})
	return nil
}

func (s *NotificationService) Stop() {
	if s.stop != nil {
		s.stop()
	}
}

// HandleEvent drops events without a recipient instead of redelivering them.
func (s *NotificationService) HandleEvent(ctx context.Context, event events.Event) error {
	recipient := events.RecipientID(event)
	userID, err := uuid.Parse(recipient)
	if err != nil {
		s.logger.Warn("NotificationService", "Event has no recipient", map[string]interface{}{"type": event.EventType()})
		return nil
	}

	frame := websocket.EncodeFrame(websocket.FrameNotification, dto.NotificationMessage{
		Type:       event.EventType(),
		Data:       event.Payload(),
		OccurredAt: event.Timestamp(),
	})
	s.delivery.SendToUser(userID, frame)

	s.logger.Debug("NotificationService", "Notification delivered", map[string]interface{}{"type": event.EventType(), "user_id": userID})
	return nil
}

package handler

import (
	"context"
	"time"

	"therapy-chat-be/internal/pkg/logger"
	"therapy-chat-be/internal/pkg/serverutils"
	"therapy-chat-be/internal/realtime"
	"therapy-chat-be/internal/service"
	internalWS "therapy-chat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	localIdentity  = "ws_identity"
	localSessionID = "ws_session_id"
	readyTimeout   = 10 * time.Second
)

// RealtimeHandler upgrades the session and notification sockets.
type RealtimeHandler struct {
	hub      *internalWS.Hub
	feed     *realtime.Feed
	sessions service.ISessionService
	auth     service.IAuthService
	secret   string
	logger   logger.ILogger
}

func NewRealtimeHandler(hub *internalWS.Hub, feed *realtime.Feed, sessions service.ISessionService, auth service.IAuthService, secret string, log logger.ILogger) *RealtimeHandler {
	return &RealtimeHandler{
		hub:      hub,
		feed:     feed,
		sessions: sessions,
		auth:     auth,
		secret:   secret,
		logger:   log,
	}
}

func (h *RealtimeHandler) RegisterRoutes(r fiber.Router) {
	ws := r.Group("/ws")
	ws.Get("/sessions/:id", h.ServeSession)
	ws.Get("/notifications", h.ServeNotifications)
}

// authenticate reads the token from ?token= or the Authorization header;
// browsers cannot set headers on a websocket handshake.
func (h *RealtimeHandler) authenticate(c *fiber.Ctx) (serverutils.Identity, error) {
	tokenStr := serverutils.BearerToken(c)
	if tokenStr == "" {
		return serverutils.Identity{}, serverutils.Unauthorized("Missing token (query 'token' or Authorization header)")
	}
	identity, err := serverutils.ParseToken(h.secret, tokenStr)
	if err != nil {
		h.logger.Warn("RealtimeHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err.Error()})
		return serverutils.Identity{}, serverutils.Unauthorized("Invalid token")
	}
	return *identity, nil
}

// ServeSession joins the caller to the session's presence channel. Once the
// row-change subscription is live the socket receives a ready frame; after
// that, therapists receive row_change frames for the session.
func (h *RealtimeHandler) ServeSession(c *fiber.Ctx) error {
	identity, err := h.authenticate(c)
	if err != nil {
		return err
	}
	sessionID, err := serverutils.ParamUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.sessions.Authorize(c.UserContext(), identity, sessionID); err != nil {
		return err
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	c.Locals(localIdentity, identity)
	c.Locals(localSessionID, sessionID)
	return websocket.New(h.runSession)(c)
}

func (h *RealtimeHandler) runSession(conn *websocket.Conn) {
	identity := conn.Locals(localIdentity).(serverutils.Identity)
	sessionID := conn.Locals(localSessionID).(uuid.UUID)

	client := internalWS.NewClient(h.hub, conn, identity.UserID, identity.Role, internalWS.SessionChannel(sessionID))
	h.fillProfile(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	push := func(change realtime.RowChange) {
		h.hub.Push(client, internalWS.EncodeFrame(internalWS.FrameRowChange, change))
	}
	sub := h.feed.Subscribe(ctx, sessionID, identity.Role, realtime.Callbacks{
		OnMessage:    push,
		OnEmotionLog: push,
	})
	defer sub.Close()

	h.logger.Info("RealtimeHandler", "Session socket opened", map[string]interface{}{
		"user_id":    identity.UserID,
		"session_id": sessionID,
	})

	internalWS.ServeWs(h.hub, client, func() {
		go func() {
			waitCtx, waitCancel := context.WithTimeout(ctx, readyTimeout)
			defer waitCancel()
			if err := sub.Wait(waitCtx); err != nil {
				h.logger.Warn("RealtimeHandler", "Row-change subscription failed", map[string]interface{}{
					"session_id": sessionID,
					"error":      err.Error(),
				})
				h.hub.Push(client, internalWS.EncodeFrame(internalWS.FrameError, "realtime unavailable"))
				return
			}
			h.hub.Push(client, internalWS.EncodeFrame(internalWS.FrameReady, fiber.Map{"session_id": sessionID}))
		}()
	})

	h.logger.Info("RealtimeHandler", "Session socket closed", map[string]interface{}{
		"user_id":    identity.UserID,
		"session_id": sessionID,
	})
}

// ServeNotifications streams fine-tune and invite notifications for the
// caller.
func (h *RealtimeHandler) ServeNotifications(c *fiber.Ctx) error {
	identity, err := h.authenticate(c)
	if err != nil {
		return err
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	c.Locals(localIdentity, identity)
	return websocket.New(func(conn *websocket.Conn) {
		identity := conn.Locals(localIdentity).(serverutils.Identity)
		client := internalWS.NewClient(h.hub, conn, identity.UserID, identity.Role, internalWS.UserChannel(identity.UserID))

		h.logger.Info("RealtimeHandler", "Notification socket opened", map[string]interface{}{"user_id": identity.UserID})
		internalWS.ServeWs(h.hub, client)
		h.logger.Info("RealtimeHandler", "Notification socket closed", map[string]interface{}{"user_id": identity.UserID})
	})(c)
}

func (h *RealtimeHandler) fillProfile(client *internalWS.Client) {
	if h.auth == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	profile, err := h.auth.Me(ctx, client.UserID)
	if err != nil || profile == nil {
		return
	}
	client.Name = profile.FullName
	client.AvatarURL = profile.AvatarURL
}

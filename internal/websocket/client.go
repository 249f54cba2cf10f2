package websocket

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	// ID identifies this connection in the presence store.
	ID      string
	UserID  uuid.UUID
	Role    string
	Channel string

	// Name and AvatarURL fill presence fields the client leaves empty.
	Name      string
	AvatarURL string

	joinedAt time.Time

	Send chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, role, channel string) *Client {
	return &Client{
		Hub:      hub,
		Conn:     conn,
		ID:       uuid.NewString(),
		UserID:   userID,
		Role:     role,
		Channel:  channel,
		joinedAt: time.Now().UTC(),
		Send:     make(chan []byte, sendBuffer),
	}
}

type inboundFrame struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	Activity  string `json:"activity"`
}

// handleFrame applies one client frame. Unknown types are ignored.
func (c *Client) handleFrame(raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.Hub.Push(c, EncodeFrame(FrameError, "malformed frame"))
		return
	}

	switch frame.Type {
	case "track":
		meta := PresenceMeta{
			UserID:    c.UserID.String(),
			Name:      frame.Name,
			AvatarURL: frame.AvatarURL,
			Activity:  frame.Activity,
			OnlineAt:  c.joinedAt,
		}
		if meta.Name == "" {
			meta.Name = c.Name
		}
		if meta.AvatarURL == "" {
			meta.AvatarURL = c.AvatarURL
		}
		c.Hub.Track(c, meta)
	case "untrack":
		c.Hub.Untrack(c)
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Client", "Unexpected close", map[string]interface{}{
					"user_id": c.UserID,
					"error":   err.Error(),
				})
			}
			break
		}
		c.handleFrame(message)
	}
}

// writePump pumps messages from the hub to the websocket connection, one
// frame per message.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

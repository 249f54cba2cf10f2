package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"therapy-chat-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// PresenceDebounce coalesces bursts of joins, leaves and track updates
	// into one presence frame per client.
	PresenceDebounce = 100 * time.Millisecond

	clusterChannel = "cluster_events"

	FramePresence     = "presence"
	FrameRowChange    = "row_change"
	FrameReady        = "ready"
	FrameNotification = "notification"
	FrameError        = "error"
)

func SessionChannel(sessionID uuid.UUID) string {
	return "session:" + sessionID.String()
}

func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}

type Frame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

func EncodeFrame(frameType string, data interface{}) []byte {
	out, _ := json.Marshal(Frame{Type: frameType, Data: data})
	return out
}

type clusterEvent struct {
	Origin  string          `json:"origin"`
	Channel string          `json:"channel"`
	Kind    string          `json:"kind"`
	Message json.RawMessage `json:"message,omitempty"`
}

const (
	kindMessage  = "message"
	kindPresence = "presence"
)

// Hub routes frames to clients by channel name ("session:<id>",
// "user:<id>"). With Redis configured, frames and presence changes are
// relayed to the other instances over the cluster_events channel.
type Hub struct {
	id string

	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}

	presence PresenceStore
	debounce time.Duration
	timersMu sync.Mutex
	timers   map[string]*time.Timer

	rdb    *redis.Client
	logger logger.ILogger
}

type HubOption func(*Hub)

func WithDebounce(d time.Duration) HubOption {
	return func(h *Hub) {
		h.debounce = d
	}
}

func NewHub(rdb *redis.Client, presence PresenceStore, log logger.ILogger, opts ...HubOption) *Hub {
	if presence == nil {
		presence = NewMemoryPresenceStore()
	}
	h := &Hub{
		id:       uuid.NewString(),
		channels: make(map[string]map[*Client]struct{}),
		presence: presence,
		debounce: PresenceDebounce,
		timers:   make(map[string]*time.Timer),
		rdb:      rdb,
		logger:   log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run relays cluster events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}
	<-ctx.Done()

	h.timersMu.Lock()
	for channel, t := range h.timers {
		t.Stop()
		delete(h.timers, channel)
	}
	h.timersMu.Unlock()
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.channels[c.Channel] == nil {
		h.channels[c.Channel] = make(map[*Client]struct{})
	}
	h.channels[c.Channel][c] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("Hub", "Client registered", map[string]interface{}{
		"user_id": c.UserID,
		"channel": c.Channel,
	})
	h.schedulePresence(c.Channel)
}

// Unregister removes c, closes its send buffer and drops its presence.
// Calling it twice is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	clients, ok := h.channels[c.Channel]
	if ok {
		if _, present := clients[c]; present {
			delete(clients, c)
			close(c.Send)
		} else {
			ok = false
		}
		if len(clients) == 0 {
			delete(h.channels, c.Channel)
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	h.Untrack(c)
	h.logger.Info("Hub", "Client unregistered", map[string]interface{}{
		"user_id": c.UserID,
		"channel": c.Channel,
	})
}

// Track records c's presence metadata and schedules a presence frame.
func (h *Hub) Track(c *Client, meta PresenceMeta) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.presence.Track(ctx, c.Channel, c.ID, meta); err != nil {
		h.logger.Warn("Hub", "Presence track failed", map[string]interface{}{"channel": c.Channel, "error": err.Error()})
		return
	}
	h.presenceChanged(c.Channel)
}

func (h *Hub) Untrack(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.presence.Untrack(ctx, c.Channel, c.ID); err != nil {
		h.logger.Warn("Hub", "Presence untrack failed", map[string]interface{}{"channel": c.Channel, "error": err.Error()})
	}
	h.presenceChanged(c.Channel)
}

func (h *Hub) presenceChanged(channel string) {
	h.schedulePresence(channel)
	h.publishCluster(clusterEvent{Channel: channel, Kind: kindPresence})
}

func (h *Hub) schedulePresence(channel string) {
	h.timersMu.Lock()
	defer h.timersMu.Unlock()
	h.armPresenceLocked(channel)
}

// armPresenceLocked restarts the debounce for channel; timersMu must be held.
// A timer that already fired is replaced rather than reset, and its pending
// callback skips the broadcast because it is no longer the channel's timer.
func (h *Hub) armPresenceLocked(channel string) {
	if t, ok := h.timers[channel]; ok && t.Stop() {
		t.Reset(h.debounce)
		return
	}

	var t *time.Timer
	t = time.AfterFunc(h.debounce, func() {
		h.timersMu.Lock()
		current := h.timers[channel] == t
		if current {
			delete(h.timers, channel)
		}
		h.timersMu.Unlock()
		if current {
			h.broadcastPresence(channel)
		}
	})
	h.timers[channel] = t
}

func (h *Hub) broadcastPresence(channel string) {
	h.mu.RLock()
	_, local := h.channels[channel]
	h.mu.RUnlock()
	if !local {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	metas, err := h.presence.List(ctx, channel)
	if err != nil {
		h.logger.Warn("Hub", "Presence list failed", map[string]interface{}{"channel": channel, "error": err.Error()})
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[channel] {
		state := DerivePresence(c.UserID.String(), metas)
		h.trySend(c, EncodeFrame(FramePresence, state))
	}
}

// SendToChannel delivers data to every client on channel, on this and the
// other instances.
func (h *Hub) SendToChannel(channel string, data []byte) {
	h.deliverLocal(channel, data)
	h.publishCluster(clusterEvent{Channel: channel, Kind: kindMessage, Message: data})
}

func (h *Hub) SendToUser(userID uuid.UUID, data []byte) {
	h.SendToChannel(UserChannel(userID), data)
}

// Push sends data to c alone. It is dropped if c has gone away.
func (h *Hub) Push(c *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.channels[c.Channel][c]; ok {
		h.trySend(c, data)
	}
}

func (h *Hub) ClientCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) deliverLocal(channel string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[channel] {
		h.trySend(c, data)
	}
}

// trySend must be called with h.mu held.
func (h *Hub) trySend(c *Client, data []byte) {
	select {
	case c.Send <- data:
	default:
		h.logger.Warn("Hub", "Client Send buffer full, dropping message", map[string]interface{}{
			"user_id": c.UserID,
			"channel": c.Channel,
		})
	}
}

func (h *Hub) publishCluster(ev clusterEvent) {
	if h.rdb == nil {
		return
	}
	ev.Origin = h.id
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := h.rdb.Publish(context.Background(), clusterChannel, payload).Err(); err != nil {
		h.logger.Warn("Hub", "Cluster publish failed", map[string]interface{}{"error": err.Error()})
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev clusterEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.logger.Warn("Hub", "Cluster event parse error", map[string]interface{}{"error": err.Error()})
				continue
			}
			if ev.Origin == h.id {
				continue
			}
			switch ev.Kind {
			case kindMessage:
				h.deliverLocal(ev.Channel, ev.Message)
			case kindPresence:
				if h.ClientCount(ev.Channel) > 0 {
					h.schedulePresence(ev.Channel)
				}
			}
		}
	}
}

package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceStore holds each channel's presence entries keyed by connection.
type PresenceStore interface {
	Track(ctx context.Context, channel, connID string, meta PresenceMeta) error
	Untrack(ctx context.Context, channel, connID string) error
	List(ctx context.Context, channel string) (map[string]PresenceMeta, error)
}

type MemoryPresenceStore struct {
	mu       sync.RWMutex
	channels map[string]map[string]PresenceMeta
}

func NewMemoryPresenceStore() *MemoryPresenceStore {
	return &MemoryPresenceStore{channels: make(map[string]map[string]PresenceMeta)}
}

func (s *MemoryPresenceStore) Track(_ context.Context, channel, connID string, meta PresenceMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channels[channel] == nil {
		s.channels[channel] = make(map[string]PresenceMeta)
	}
	s.channels[channel][connID] = meta
	return nil
}

func (s *MemoryPresenceStore) Untrack(_ context.Context, channel, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels[channel], connID)
	if len(s.channels[channel]) == 0 {
		delete(s.channels, channel)
	}
	return nil
}

func (s *MemoryPresenceStore) List(_ context.Context, channel string) (map[string]PresenceMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]PresenceMeta, len(s.channels[channel]))
	for k, v := range s.channels[channel] {
		out[k] = v
	}
	return out, nil
}

// RedisPresenceStore keeps one hash per channel so every instance sees the
// same participants. The hash expires after ttl without a Track.
type RedisPresenceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisPresenceStore(rdb *redis.Client, ttl time.Duration) *RedisPresenceStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisPresenceStore{rdb: rdb, ttl: ttl}
}

func presenceKey(channel string) string {
	return "presence:" + channel
}

func (s *RedisPresenceStore) Track(ctx context.Context, channel, connID string, meta PresenceMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	key := presenceKey(channel)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, connID, data)
	pipe.Expire(ctx, key, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisPresenceStore) Untrack(ctx context.Context, channel, connID string) error {
	return s.rdb.HDel(ctx, presenceKey(channel), connID).Err()
}

func (s *RedisPresenceStore) List(ctx context.Context, channel string) (map[string]PresenceMeta, error) {
	raw, err := s.rdb.HGetAll(ctx, presenceKey(channel)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]PresenceMeta, len(raw))
	for connID, v := range raw {
		var meta PresenceMeta
		if err := json.Unmarshal([]byte(v), &meta); err != nil {
			continue
		}
		out[connID] = meta
	}
	return out, nil
}

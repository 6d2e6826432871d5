package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgellow/resumescan/internal/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)
var _ Watcher = (*RedisStore)(nil)

// RedisStore keeps a client context's keys in one Redis hash. Every write is
// announced on a pub/sub channel so other processes can follow along.
type RedisStore struct {
	client  redis.UniversalClient
	hash    string
	channel string
	// origin tags this instance's announcements so Watch can skip them
	origin string
}

// redisChange is the pub/sub payload
type redisChange struct {
	Origin  string `json:"origin"`
	Key     Key    `json:"key"`
	Value   string `json:"value,omitempty"`
	Removed bool   `json:"removed,omitempty"`
}

// NewRedisStore connects using a redis:// URL
func NewRedisStore(ctx context.Context, url, contextID string) (*RedisStore, error) {
	if contextID == "" {
		return nil, fmt.Errorf("contextID is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	log.LogInfoWithFields("storage", "Connected to Redis", map[string]any{
		"addr": opts.Addr,
		"db":   opts.DB,
	})
	return NewRedisStoreWithClient(client, contextID), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client redis.UniversalClient, contextID string) *RedisStore {
	prefix := "resumescan:ctx:" + contextID
	return &RedisStore{
		client:  client,
		hash:    prefix,
		channel: prefix + ":changes",
		origin:  uuid.NewString(),
	}
}

func (s *RedisStore) Get(ctx context.Context, key Key) (string, error) {
	v, err := s.client.HGet(ctx, s.hash, string(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis hget %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key Key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	msg, err := json.Marshal(redisChange{Origin: s.origin, Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("encoding change: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.hash, string(key), value)
		pipe.Publish(ctx, s.channel, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key Key) error {
	n, err := s.client.HDel(ctx, s.hash, string(key)).Result()
	if err != nil {
		return fmt.Errorf("redis hdel %s: %w", key, err)
	}
	if n == 0 {
		return nil
	}

	msg, err := json.Marshal(redisChange{Origin: s.origin, Key: key, Removed: true})
	if err != nil {
		return fmt.Errorf("encoding change: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, msg).Err(); err != nil {
		log.LogWarnWithFields("storage", "Failed to announce removal", map[string]any{
			"key":   string(key),
			"error": err.Error(),
		})
	}
	return nil
}

// Watch subscribes to the context's change channel and reports writes made
// through other RedisStore instances. The subscription is confirmed before
// Watch returns, so no later write is missed.
func (s *RedisStore) Watch(ctx context.Context) (<-chan Change, error) {
	sub := s.client.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", s.channel, err)
	}

	out := make(chan Change, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var c redisChange
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil || !c.Key.Valid() {
					log.LogWarnWithFields("storage", "Ignoring malformed change notification", map[string]any{
						"channel": s.channel,
					})
					continue
				}
				if c.Origin == s.origin {
					continue
				}
				select {
				case out <- Change{Key: c.Key, Value: c.Value, Removed: c.Removed}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close releases the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}

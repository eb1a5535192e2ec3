package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an inactive session survives before Redis reclaims
// it. Every write refreshes it.
const DefaultTTL = 24 * time.Hour

// RedisStore is a Store backed by Redis. It uses three keys per conversation:
//
//	<prefix>chat:<id>:state             => engine state string
//	<prefix>chat:<id>:context           => JSON-encoded context map
//	<prefix>chat:<id>:last_interaction  => unix milliseconds
//
// All three carry the same TTL, refreshed on every write.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. prefix is optional but recommended
// (e.g. "creditbot:"). A non-positive ttl falls back to DefaultTTL.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *RedisStore) keyState(chatID string) string {
	return s.prefix + "chat:" + chatID + ":state"
}

func (s *RedisStore) keyContext(chatID string) string {
	return s.prefix + "chat:" + chatID + ":context"
}

func (s *RedisStore) keyLastInteraction(chatID string) string {
	return s.prefix + "chat:" + chatID + ":last_interaction"
}

func (s *RedisStore) Get(ctx context.Context, chatID string) (Session, error) {
	// Single MGET so state and last_interaction come from one point in time.
	vals, err := s.client.MGet(ctx,
		s.keyState(chatID),
		s.keyContext(chatID),
		s.keyLastInteraction(chatID),
	).Result()
	if err != nil {
		return Session{}, fmt.Errorf("session get %s: %w", chatID, err)
	}

	sess := Session{
		State:   StateStart,
		Context: map[string]string{},
	}

	if v, ok := vals[0].(string); ok && v != "" {
		sess.State = State(v)
	}
	if v, ok := vals[1].(string); ok && v != "" {
		if err := json.Unmarshal([]byte(v), &sess.Context); err != nil {
			return Session{}, fmt.Errorf("session context decode %s: %w", chatID, err)
		}
	}
	if v, ok := vals[2].(string); ok && v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Session{}, fmt.Errorf("session last_interaction decode %s: %w", chatID, err)
		}
		sess.LastInteractionAt = time.UnixMilli(ms)
	}

	return sess, nil
}

func (s *RedisStore) SetState(ctx context.Context, chatID string, state State) error {
	if err := s.client.Set(ctx, s.keyState(chatID), string(state), s.ttl).Err(); err != nil {
		return fmt.Errorf("session set state %s: %w", chatID, err)
	}
	return nil
}

func (s *RedisStore) SetContext(ctx context.Context, chatID string, data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("session context encode %s: %w", chatID, err)
	}
	if err := s.client.Set(ctx, s.keyContext(chatID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("session set context %s: %w", chatID, err)
	}
	return nil
}

func (s *RedisStore) Touch(ctx context.Context, chatID string) (time.Time, error) {
	now := time.Now().Truncate(time.Millisecond)
	err := s.client.Set(ctx, s.keyLastInteraction(chatID), now.UnixMilli(), s.ttl).Err()
	if err != nil {
		return time.Time{}, fmt.Errorf("session touch %s: %w", chatID, err)
	}
	return now, nil
}

func (s *RedisStore) Clear(ctx context.Context, chatID string) error {
	err := s.client.Del(ctx,
		s.keyState(chatID),
		s.keyContext(chatID),
		s.keyLastInteraction(chatID),
	).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session clear %s: %w", chatID, err)
	}
	return nil
}

package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by Redis:
//
//	<prefix>auth:token:<SCOPE>  => credential string, EX effective TTL
//	<prefix>lock:token:<SCOPE>  => lease owner id, EX lease TTL, written NX
//
// The lease is acquired with SET NX so exactly one concurrent caller wins,
// and released with a delete-if-owner script so a worker that lost its lease
// to expiry cannot release a successor's lease.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore. prefix is optional but recommended
// (e.g. "creditbot:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) keyToken(scope string) string {
	return s.prefix + "auth:token:" + NormalizeScope(scope)
}

func (s *RedisStore) keyLease(scope string) string {
	return s.prefix + "lock:token:" + NormalizeScope(scope)
}

func (s *RedisStore) GetToken(ctx context.Context, scope string) (string, error) {
	val, err := s.client.Get(ctx, s.keyToken(scope)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("token get %s: %w", scope, err)
	}
	return val, nil
}

func (s *RedisStore) SaveToken(ctx context.Context, scope, token string, ttl time.Duration) error {
	err := s.client.Set(ctx, s.keyToken(scope), token, EffectiveTTL(ttl)).Err()
	if err != nil {
		return fmt.Errorf("token save %s: %w", scope, err)
	}
	return nil
}

func (s *RedisStore) AcquireLease(ctx context.Context, scope, owner string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, errors.New("lease ttl must be > 0")
	}
	ok, err := s.client.SetNX(ctx, s.keyLease(scope), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("token lease acquire %s: %w", scope, err)
	}
	return ok, nil
}

// releaseLeaseLua deletes the lease only while it still belongs to the
// caller. Returns 1 if released, 0 otherwise.
var releaseLeaseLua = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
	return 0
end
if cur == ARGV[1] then
	redis.call('DEL', KEYS[1])
	return 1
end
return 0
`)

func (s *RedisStore) ReleaseLease(ctx context.Context, scope, owner string) error {
	// Idempotent: a lease that expired or was taken over is left alone.
	err := releaseLeaseLua.Run(ctx, s.client, []string{s.keyLease(scope)}, owner).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("token lease release %s: %w", scope, err)
	}
	return nil
}

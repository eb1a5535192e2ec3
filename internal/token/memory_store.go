package token

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a goroutine-safe Store backed by maps, honoring TTLs
// against the wall clock. Meant for tests and local development.
type InMemoryStore struct {
	mu     sync.Mutex
	tokens map[string]memoryEntry
	leases map[string]memoryEntry
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tokens: make(map[string]memoryEntry),
		leases: make(map[string]memoryEntry),
	}
}

var _ Store = (*InMemoryStore)(nil)

func (s *InMemoryStore) GetToken(ctx context.Context, scope string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.tokens[NormalizeScope(scope)]
	if !ok || time.Now().After(e.expiresAt) {
		return "", nil
	}
	return e.value, nil
}

func (s *InMemoryStore) SaveToken(ctx context.Context, scope, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[NormalizeScope(scope)] = memoryEntry{
		value:     token,
		expiresAt: time.Now().Add(EffectiveTTL(ttl)),
	}
	return nil
}

func (s *InMemoryStore) AcquireLease(ctx context.Context, scope, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeScope(scope)
	if e, ok := s.leases[key]; ok && time.Now().Before(e.expiresAt) {
		return false, nil
	}
	s.leases[key] = memoryEntry{
		value:     owner,
		expiresAt: time.Now().Add(ttl),
	}
	return true, nil
}

func (s *InMemoryStore) ReleaseLease(ctx context.Context, scope, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := NormalizeScope(scope)
	if e, ok := s.leases[key]; ok && e.value == owner {
		delete(s.leases, key)
	}
	return nil
}

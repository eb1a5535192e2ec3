package session

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore is a goroutine-safe Store backed by a map.
// It ignores TTLs entirely and is meant for tests and local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
}

type memorySession struct {
	state             State
	context           map[string]string
	lastInteractionAt time.Time
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*memorySession),
	}
}

var _ Store = (*InMemoryStore)(nil)

func (s *InMemoryStore) Get(ctx context.Context, chatID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.sessions[chatID]
	if !ok {
		return Session{State: StateStart, Context: map[string]string{}}, nil
	}

	sess := Session{
		State:             StateStart,
		Context:           map[string]string{},
		LastInteractionAt: m.lastInteractionAt,
	}
	if m.state != "" {
		sess.State = m.state
	}
	for k, v := range m.context {
		sess.Context[k] = v
	}
	return sess, nil
}

func (s *InMemoryStore) SetState(ctx context.Context, chatID string, state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.get(chatID).state = state
	return nil
}

func (s *InMemoryStore) SetContext(ctx context.Context, chatID string, data map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make(map[string]string, len(data))
	for k, v := range data {
		cp[k] = v
	}
	s.get(chatID).context = cp
	return nil
}

func (s *InMemoryStore) Touch(ctx context.Context, chatID string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Truncate(time.Millisecond)
	s.get(chatID).lastInteractionAt = now
	return now, nil
}

func (s *InMemoryStore) Clear(ctx context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, chatID)
	return nil
}

// get returns the session entry for chatID, creating it if needed.
// Callers must hold s.mu.
func (s *InMemoryStore) get(chatID string) *memorySession {
	m, ok := s.sessions[chatID]
	if !ok {
		m = &memorySession{context: map[string]string{}}
		s.sessions[chatID] = m
	}
	return m
}

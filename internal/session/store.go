// internal/session/store.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps conversation state per user. MemoryStore ties a user to one
// process; RedisStore lets several instances share state.
type Store interface {
	Get(ctx context.Context, userID string) (State, error)
	Set(ctx context.Context, userID string, s State) error
	Clear(ctx context.Context, userID string) error
}

type MemoryStore struct {
	mu     sync.Mutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Get(ctx context.Context, userID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.states[userID]
	if !ok {
		return State{Mode: ModeIdle}, nil
	}
	return s.clone(), nil
}

func (m *MemoryStore) Set(ctx context.Context, userID string, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.Empty() {
		delete(m.states, userID)
		return nil
	}
	m.states[userID] = s.clone()
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, userID)
	return nil
}

const sessionNamespace = "wallet-session"

type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) key(userID string) string {
	return sessionNamespace + ":" + userID
}

func (r *RedisStore) Get(ctx context.Context, userID string) (State, error) {
	raw, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{Mode: ModeIdle}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to load session: %w", err)
	}

	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, fmt.Errorf("failed to decode session: %w", err)
	}
	return s.clone(), nil
}

func (r *RedisStore) Set(ctx context.Context, userID string, s State) error {
	if s.Empty() {
		return r.Clear(ctx, userID)
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := r.client.Set(ctx, r.key(userID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

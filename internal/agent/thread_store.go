// internal/agent/thread_store.go
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"agent-wallet-service/pkg/cache"
)

const (
	threadNamespace = "agent_thread"

	// DefaultThreadTTL bounds how long an idle conversation is remembered.
	DefaultThreadTTL = 7 * 24 * time.Hour

	// maxThreadMessages caps the history replayed to the model.
	maxThreadMessages = 40
)

// Message is one persisted conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ThreadStore keeps conversation history keyed by thread id. Load returns an
// empty slice for unknown threads.
type ThreadStore interface {
	Load(ctx context.Context, threadID string) ([]Message, error)
	Save(ctx context.Context, threadID string, messages []Message) error
}

func trimHistory(messages []Message) []Message {
	if len(messages) <= maxThreadMessages {
		return messages
	}
	return messages[len(messages)-maxThreadMessages:]
}

// ============================================================================
// IN-MEMORY
// ============================================================================

type MemoryThreadStore struct {
	mu      sync.RWMutex
	threads map[string][]Message
}

func NewMemoryThreadStore() *MemoryThreadStore {
	return &MemoryThreadStore{threads: make(map[string][]Message)}
}

func (s *MemoryThreadStore) Load(_ context.Context, threadID string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.threads[threadID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryThreadStore) Save(_ context.Context, threadID string, messages []Message) error {
	trimmed := trimHistory(messages)
	cp := make([]Message, len(trimmed))
	copy(cp, trimmed)

	s.mu.Lock()
	s.threads[threadID] = cp
	s.mu.Unlock()
	return nil
}

// ============================================================================
// REDIS
// ============================================================================

type RedisThreadStore struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewRedisThreadStore(c *cache.Cache, ttl time.Duration) *RedisThreadStore {
	if ttl <= 0 {
		ttl = DefaultThreadTTL
	}
	return &RedisThreadStore{cache: c, ttl: ttl}
}

func (s *RedisThreadStore) Load(ctx context.Context, threadID string) ([]Message, error) {
	var msgs []Message
	err := s.cache.GetJSON(ctx, threadNamespace, threadID, &msgs)
	if errors.Is(err, cache.ErrMiss) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *RedisThreadStore) Save(ctx context.Context, threadID string, messages []Message) error {
	return s.cache.SetJSON(ctx, threadNamespace, threadID, trimHistory(messages), s.ttl)
}

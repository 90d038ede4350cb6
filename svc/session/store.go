package session

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"pastrio/pkg/domain"
)

// Store is the server-side session capability: an opaque token maps to a
// minimal payload. Backends are interchangeable adapters; the auth gate only
// sees this interface.
type Store interface {
	// Get returns the payload for a live token, or nil when the token is
	// unknown or expired. A hit slides the inactivity window forward.
	Get(ctx context.Context, token string) (*domain.SessionData, error)
	Set(ctx context.Context, token string, data domain.SessionData, ttl time.Duration) error
	Destroy(ctx context.Context, token string) error
}

type entry struct {
	data domain.SessionData
	exp  time.Time
	ttl  time.Duration
}

// MemoryStore keeps sessions in a bounded LRU. Suitable for single-process
// deployments only; multi-process deployments use the Redis backend.
type MemoryStore struct {
	c  *lru.Cache[string, entry]
	mu sync.Mutex
}

func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		return nil, errors.New("session cache size must be positive")
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryStore{c: c}, nil
}

func (m *MemoryStore) Get(ctx context.Context, token string) (*domain.SessionData, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.c.Get(token)
	if !ok {
		return nil, nil
	}
	if time.Now().After(e.exp) {
		m.c.Remove(token)
		return nil, nil
	}
	e.exp = time.Now().Add(e.ttl)
	m.c.Add(token, e)
	d := e.data
	return &d, nil
}

func (m *MemoryStore) Set(ctx context.Context, token string, data domain.SessionData, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Add(token, entry{
		data: data,
		exp:  time.Now().Add(ttl),
		ttl:  ttl,
	})
	return nil
}

func (m *MemoryStore) Destroy(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.c.Remove(token)
	return nil
}

package db

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pastrio/svc/util"
)

// Manager owns the lazily-established store handle. Concurrent callers racing
// to connect all resolve from one attempt: the open is deduplicated through a
// singleflight group instead of a shared global connection promise.
type Manager struct {
	path         string
	maxOpenConns int
	maxIdleConns int
	queryTimeout time.Duration

	mu    sync.RWMutex
	store *Store
	sf    singleflight.Group
}

func NewManager(path string, maxOpenConns, maxIdleConns int, queryTimeout time.Duration) *Manager {
	return &Manager{
		path:         path,
		maxOpenConns: maxOpenConns,
		maxIdleConns: maxIdleConns,
		queryTimeout: queryTimeout,
	}
}

// Get returns the connected store, establishing it on first use. A failed
// attempt is not cached; the next caller retries.
func (m *Manager) Get(ctx context.Context) (*Store, error) {
	m.mu.RLock()
	s := m.store
	m.mu.RUnlock()
	if s != nil {
		return s, nil
	}
	v, err, shared := m.sf.Do("connect", func() (interface{}, error) {
		store, err := NewStoreWithConfig(m.path, m.maxOpenConns, m.maxIdleConns, m.queryTimeout)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.store = store
		m.mu.Unlock()
		return store, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		util.Debug().Str("path", m.path).Msg("connect attempt shared across callers")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return v.(*Store), nil
}

// Connect eagerly establishes the handle; startup uses this so a dead store
// is fatal to process start rather than to the first request.
func (m *Manager) Connect(ctx context.Context) (*Store, error) {
	return m.Get(ctx)
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	err := m.store.Close()
	m.store = nil
	return err
}

package session

import (
	"context"
	"time"

	"pastrio/pkg/domain"
	"pastrio/svc/db"
)

// RedisStore adapts the shared Redis client to the Store capability so
// sessions survive process restarts and are visible across replicas.
type RedisStore struct {
	rdb *db.Redis
	ttl time.Duration
}

func NewRedisStore(rdb *db.Redis, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, token string) (*domain.SessionData, error) {
	d, err := r.rdb.GetSession(ctx, token)
	if err != nil || d == nil {
		return d, err
	}
	// Sliding window: a hit renews the inactivity deadline.
	if err := r.rdb.TouchSession(ctx, token, r.ttl); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *RedisStore) Set(ctx context.Context, token string, data domain.SessionData, ttl time.Duration) error {
	return r.rdb.SetSession(ctx, token, data, ttl)
}

func (r *RedisStore) Destroy(ctx context.Context, token string) error {
	return r.rdb.DeleteSession(ctx, token)
}

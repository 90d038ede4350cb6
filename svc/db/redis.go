package db

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"pastrio/cfg"
	"pastrio/pkg/domain"
)

// Redis backs the shared session store and the distributed rate-limit
// counters in multi-process deployments. Single-process deployments run
// without it.
type Redis struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedis(url string, c *cfg.Cfg) (*Redis, error) {
	opt, err := redisOptions(url, c)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Wrap(err, "ping redis")
	}
	return &Redis{
		client:  client,
		timeout: c.RedisTimeout,
	}, nil
}

// redisOptions builds client options from the URL plus config overrides. A
// rediss:// URL already carries TLS; REDIS_TLS=true forces it for plain URLs
// (managed providers that terminate TLS in front of a redis:// endpoint).
func redisOptions(url string, c *cfg.Cfg) (*redis.Options, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	opt.PoolSize = 50
	opt.MinIdleConns = 10
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.MaxRetries = 3
	opt.MinRetryBackoff = 8 * time.Millisecond
	opt.MaxRetryBackoff = 512 * time.Millisecond
	if c.RedisUsername != "" {
		opt.Username = c.RedisUsername
	}
	if c.RedisPassword.Value() != "" {
		opt.Password = c.RedisPassword.Value()
	}
	if c.RedisTLS && opt.TLSConfig == nil {
		opt.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opt, nil
}

const sessionKeyPrefix = "sess:"

func (r *Redis) GetSession(ctx context.Context, token string) (*domain.SessionData, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	data, err := r.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get session")
	}
	var d domain.SessionData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(err, "unmarshal session")
	}
	return &d, nil
}

func (r *Redis) SetSession(ctx context.Context, token string, d domain.SessionData, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	data, err := json.Marshal(d)
	if err != nil {
		return errors.Wrap(err, "marshal session")
	}
	return errors.Wrap(r.client.Set(ctx, sessionKeyPrefix+token, data, ttl).Err(), "set session")
}

// TouchSession slides the inactivity window forward on access.
func (r *Redis) TouchSession(ctx context.Context, token string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return errors.Wrap(r.client.Expire(ctx, sessionKeyPrefix+token, ttl).Err(), "touch session")
}

func (r *Redis) DeleteSession(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return errors.Wrap(r.client.Del(ctx, sessionKeyPrefix+token).Err(), "delete session")
}

// RateLimit counts a hit against key inside the window and returns the
// current usage. The check-and-increment runs as one Lua script so multiple
// processes cannot over-admit.
func (r *Redis) RateLimit(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	script := redis.NewScript(`
		local current = redis.call("GET", KEYS[1])
		if current == false then
			current = 0
		else
			current = tonumber(current)
		end
		if current >= tonumber(ARGV[2]) then
			return current
		end
		local new_val = redis.call("INCR", KEYS[1])
		if new_val == 1 then
			redis.call("PEXPIRE", KEYS[1], ARGV[1])
		end
		return new_val
	`)
	usage, err := script.Run(ctx, r.client, []string{key}, int(window.Milliseconds()), limit).Int()
	if err != nil {
		return 0, errors.Wrap(err, "rate limit lua")
	}
	return usage, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

package db

import (
	"testing"

	"pastrio/cfg"
)

func TestRedisOptionsFromURL(t *testing.T) {
	c := &cfg.Cfg{}
	opt, err := redisOptions("redis://localhost:6379/2", c)
	if err != nil {
		t.Fatalf("redisOptions failed: %v", err)
	}
	if opt.Addr != "localhost:6379" || opt.DB != 2 {
		t.Errorf("addr/db = %q/%d", opt.Addr, opt.DB)
	}
	if opt.TLSConfig != nil {
		t.Error("plain redis:// URL got a TLS config")
	}
}

func TestRedisOptionsTLS(t *testing.T) {
	// rediss:// carries TLS in the URL itself.
	opt, err := redisOptions("rediss://localhost:6380", &cfg.Cfg{})
	if err != nil {
		t.Fatalf("redisOptions failed: %v", err)
	}
	if opt.TLSConfig == nil {
		t.Error("rediss:// URL did not enable TLS")
	}

	// REDIS_TLS=true forces it for a plain URL.
	opt, err = redisOptions("redis://localhost:6379", &cfg.Cfg{RedisTLS: true})
	if err != nil {
		t.Fatalf("redisOptions failed: %v", err)
	}
	if opt.TLSConfig == nil {
		t.Error("RedisTLS not honored for redis:// URL")
	}
}

func TestRedisOptionsCredentialOverrides(t *testing.T) {
	c := &cfg.Cfg{RedisUsername: "app", RedisPassword: cfg.NewSecret("hunter2")}
	opt, err := redisOptions("redis://localhost:6379", c)
	if err != nil {
		t.Fatalf("redisOptions failed: %v", err)
	}
	if opt.Username != "app" || opt.Password != "hunter2" {
		t.Errorf("credentials = %q/%q", opt.Username, opt.Password)
	}
}

func TestRedisOptionsBadURL(t *testing.T) {
	if _, err := redisOptions("http://localhost", &cfg.Cfg{}); err == nil {
		t.Error("non-redis URL accepted")
	}
}

package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pastrio/cfg"
	"pastrio/pkg/secrets"
	"pastrio/svc/api"
	"pastrio/svc/auth"
	"pastrio/svc/db"
	"pastrio/svc/lim"
	"pastrio/svc/session"
	"pastrio/svc/svc"
	"pastrio/svc/util"
)

func main() {
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		util.Fatal().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.Validate(c); err != nil {
		util.Fatal().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	defer c.Wipe()
	util.InitLog(c.LogLevel, c.Environment == "development")
	util.Info().Msg("starting pastrio")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := secrets.NewAdapter(ctx)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to initialize secrets provider")
		os.Exit(1)
	}
	sessionSecret := c.SessionSecret.Value()
	if sessionSecret == "" {
		sessionSecret, err = provider.GetSecret(ctx, "SESSION_SECRET")
		if err != nil && c.Environment == "production" {
			util.Fatal().Err(err).Msg("SESSION_SECRET unavailable")
			os.Exit(1)
		}
	}
	pepper := c.Pepper.Value()
	if pepper == "" {
		if v, err := provider.GetSecret(ctx, "PEPPER"); err == nil {
			pepper = v
		}
	}
	c.SessionSecret = cfg.NewSecret(sessionSecret)

	manager := db.NewManager(c.DatabasePath, c.DBMaxOpenConns, c.DBMaxIdleConns, c.DBQueryTimeout)
	store, err := manager.Connect(ctx)
	if err != nil {
		// A dead store at startup is fatal; mid-request failures surface
		// as 500s without crashing the process.
		util.Fatal().Err(err).Msg("failed to connect to database")
		os.Exit(1)
	}
	defer manager.Close()
	util.Info().Str("path", c.DatabasePath).Msg("database connected")

	var rdb *db.Redis
	if c.RedisURL != "" {
		rdb, err = db.NewRedis(c.RedisURL, c)
		if err != nil {
			if c.SessionBackend == "redis" {
				util.Fatal().Err(err).Msg("redis required for SESSION_BACKEND=redis")
				os.Exit(1)
			}
			util.Warn().Err(err).Msg("redis unavailable, continuing without it")
		} else {
			util.Info().Msg("redis connected")
		}
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var sessions session.Store
	if c.SessionBackend == "redis" {
		sessions = session.NewRedisStore(rdb, c.SessionTTL)
		util.Info().Msg("redis session store initialized")
	} else {
		sessions, err = session.NewMemoryStore(c.SessionCacheSize)
		if err != nil {
			util.Fatal().Err(err).Msg("failed to create session store")
			os.Exit(1)
		}
		util.Info().Int("size", c.SessionCacheSize).Msg("in-memory session store initialized")
	}

	hasher, err := auth.NewHasher(c.Argon2Time, c.Argon2Memory, c.Argon2Parallelism, c.Argon2KeyLen, []byte(pepper))
	if err != nil {
		util.Fatal().Err(err).Msg("failed to initialize hasher")
		os.Exit(1)
	}

	pasteSvc := svc.NewPaste(store, c)
	authSvc := svc.NewAuth(store, sessions, hasher, c.SessionTTL)

	limiter := lim.New(c.RateLimit.RPM, c.RateLimit.Burst, rdb, c.TrustedProxies)
	defer limiter.Stop()
	util.Info().
		Int("rpm", c.RateLimit.RPM).
		Int("burst", c.RateLimit.Burst).
		Msg("rate limiter initialized")

	server := api.NewServer(c, pasteSvc, authSvc, limiter, store, rdb)

	quitWAL := make(chan struct{})
	go db.StartWALMaintenance(store.DB(), quitWAL)

	if err := svc.StartCleaner(ctx, store, c.PurgeInterval); err != nil {
		util.Error().Err(err).Msg("failed to start expiry sweep")
	}

	if c.Environment == "development" {
		go func() {
			util.Info().Msg("starting pprof server on :6060")
			if err := http.ListenAndServe(":6060", nil); err != nil {
				util.Warn().Err(err).Msg("pprof server failed")
			}
		}()
	}

	util.Info().Str("port", c.Port).Str("environment", c.Environment).Msg("server starting")
	go func() {
		if err := server.Start(); err != nil {
			util.Fatal().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	util.Info().Msg("shutting down gracefully...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		util.Error().Err(err).Msg("server shutdown error")
	}
	close(quitWAL)
	cancel()
	util.Info().Msg("shutdown complete")
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"

	"pastrio/cfg"
	"pastrio/svc/db"
	"pastrio/svc/lim"
	"pastrio/svc/svc"
	"pastrio/svc/util"
)

type Server struct {
	router     *chi.Mux
	cfg        *cfg.Cfg
	store      *db.Store
	rdb        *db.Redis
	httpServer *http.Server
}

func NewServer(c *cfg.Cfg, pasteSvc *svc.Paste, authSvc *svc.Auth, limiter *lim.Limiter, store *db.Store, rdb *db.Redis) *Server {
	r := chi.NewRouter()
	codec := NewCookieCodec(c.SessionSecret.Value())
	mw := NewMw(limiter, authSvc, c, codec)
	s := &Server{
		router: r,
		cfg:    c,
		store:  store,
		rdb:    rdb,
		httpServer: &http.Server{
			Addr:           ":" + c.Port,
			Handler:        r,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 256 * 1024,
		},
	}

	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Get("/health", s.Health)
		r.Get("/ready", s.Ready)
	})
	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Handle("/metrics", mw.BasicAuthMetrics(promhttp.Handler()))
	})
	r.Mount("/debug", middleware.Profiler())

	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Use(mw.RequestID)
		r.Use(hlog.NewHandler(util.GetLogger()))
		r.Use(hlog.AccessHandler(func(req *http.Request, status, size int, dur time.Duration) {
			hlog.FromRequest(req).Info().
				Str("method", req.Method).
				Str("url", req.URL.String()).
				Int("status", status).
				Int("size", size).
				Dur("duration", dur).
				Str("request_id", util.GetRequestID(req.Context())).
				Msg("http request")
		}))
		r.Use(mw.ContextTimeout)
		r.Use(mw.SecurityHeaders)

		hdl := &Hdl{paste: pasteSvc, cfg: c}
		authHdl := &AuthHdl{auth: authSvc, cfg: c, codec: codec}

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			renderIndex(w)
		})

		r.Get("/register", authHdl.RegisterPage)
		r.Get("/login", authHdl.LoginPage)
		r.With(mw.RateLimit("auth")).Post("/register", authHdl.Register)
		r.With(mw.RateLimit("auth")).Post("/login", authHdl.Login)
		r.Post("/logout", authHdl.Logout)

		r.With(mw.RateLimit("create")).Post("/api/paste/create", hdl.CreatePaste)
		r.With(mw.RateLimit("view")).Get("/api/paste/{hash}/json", hdl.GetPasteJSON)
		r.With(mw.RequireAuth).Get("/api/me", authHdl.Me)

		// Catch-all paste route last so static routes above win.
		r.With(mw.RateLimit("view")).Get("/{hash}", hdl.ViewPaste)
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Start() error {
	util.Info().Str("port", s.cfg.Port).Msg("starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		util.Error().Err(err).Str("port", s.cfg.Port).Msg("server failed to start")
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

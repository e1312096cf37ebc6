// Package server wires the blog together and runs it.
//
// It is the composition root: configuration comes in, and out come a store,
// the session machinery, the services, the handlers and a chi router with
// every route registered. Nothing else in the module constructs these.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sakif/flatblog/internal/auth"
	"github.com/sakif/flatblog/internal/clock"
	"github.com/sakif/flatblog/internal/config"
	"github.com/sakif/flatblog/internal/handler"
	"github.com/sakif/flatblog/internal/middleware"
	"github.com/sakif/flatblog/internal/repository"
	"github.com/sakif/flatblog/internal/service"
	"github.com/sakif/flatblog/web"
)

// sessionPruneInterval is how often expired sessions are swept out of memory.
const sessionPruneInterval = time.Minute

// Server owns the store and the session store for its whole lifetime. Start
// closes the store on the way out.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	store    repository.Store
	sessions *auth.SessionStore
}

// New opens the configured store, seeds it on first run and builds the
// router. On error nothing is left open.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := OpenStore(cfg.Storage)
	if err != nil {
		return nil, err
	}

	s, err := newServer(cfg, logger, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

func newServer(cfg *config.Config, logger *slog.Logger, store repository.Store) (*Server, error) {
	passwords, err := auth.NewPasswordServiceWithCost(cfg.Password.Cost)
	if err != nil {
		return nil, err
	}

	if err := service.Bootstrap(context.Background(), store, passwords); err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	tokens, err := auth.NewTokenService(cfg.Session.Secret, cfg.Session.TTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	clk := clock.NewRealClock()
	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		sessions: auth.NewSessionStore(cfg.Session.TTL, clk),
	}

	sessionManager := auth.NewSessionManager(tokens, s.sessions, cfg.Session.SecureCookie, logger)
	posts := service.NewPostService(store, clk, logger)
	identity := service.NewIdentityService(store, passwords, s.sessions, logger)

	if err := s.setupRoutes(sessionManager, posts, identity); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// setupRoutes registers middleware and routes.
//
// ROUTES:
//
//	GET       /               post list
//	GET       /animated       post list, animated
//	GET       /post/{id}      one post
//	GET,POST  /create         new post form (login required)
//	GET       /delete/{id}    delete own post (login required)
//	GET,POST  /register       sign-up form
//	GET,POST  /login          login form
//	GET       /logout         log out
//	GET       /api/posts      JSON list
//	GET       /api/posts/{id} JSON post
//	GET       /api/me         JSON current user
//	GET       /static/*       embedded CSS
//	GET       /healthz        liveness probe
//	GET       /metrics        Prometheus metrics (if enabled)
//
// chi requires every Use before the first route on a router, so the
// global middleware comes first.
func (s *Server) setupRoutes(
	sessionManager *auth.SessionManager,
	posts *service.PostService,
	identity *service.IdentityService,
) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	if s.config.Metrics.Enabled {
		metrics := middleware.NewMetrics()
		metrics.Registry().MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "flatblog",
				Name:      "sessions",
				Help:      "Sessions held in memory, including expired ones not yet pruned",
			},
			func() float64 { return float64(s.sessions.Len()) },
		))
		s.router.Use(metrics.Middleware)
		s.router.Handle("/metrics", metrics.Handler())
	}

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})

	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.Static())))

	view, err := handler.NewView(web.Templates(), s.sessions, s.logger)
	if err != nil {
		return fmt.Errorf("creating view: %w", err)
	}
	blog := handler.NewBlogHandler(posts, view, s.logger)
	account := handler.NewAccountHandler(identity, sessionManager, view, s.logger)
	api := handler.NewAPIHandler(posts, identity, s.logger)

	// Everything below needs a session, if only to carry flash messages.
	s.router.Group(func(r chi.Router) {
		r.Use(sessionManager.LoadSession)

		r.Get("/", blog.HandleIndex)
		r.Get("/animated", blog.HandleAnimated)
		r.Get("/post/{id:[0-9]+}", blog.HandlePost)

		r.Get("/register", account.HandleRegisterForm)
		r.Post("/register", account.HandleRegister)
		r.Get("/login", account.HandleLoginForm)
		r.Post("/login", account.HandleLogin)
		r.Get("/logout", account.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser(http.HandlerFunc(blog.RequireLogin)))

			r.Get("/create", blog.HandleCreateForm)
			r.Post("/create", blog.HandleCreate)
			r.Get("/delete/{id:[0-9]+}", blog.HandleDelete)
		})

		r.Route("/api", func(r chi.Router) {
			r.Get("/posts", api.HandleListPosts)
			r.Get("/posts/{id}", api.HandleGetPost)
			r.Get("/me", api.HandleMe)
		})
	})

	return nil
}

// Handler returns the router. Tests drive it through httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store. Start calls it itself; only callers that never
// Start need it.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully: stop
// accepting connections, give in-flight requests 30 seconds, close the store.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	pruneCtx, stopPruning := context.WithCancel(context.Background())
	defer stopPruning()
	go s.pruneSessions(pruneCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("storage", s.config.Storage.Backend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) pruneSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.sessions.Prune(); n > 0 {
				s.logger.Debug("pruned expired sessions", slog.Int("count", n))
			}
		}
	}
}

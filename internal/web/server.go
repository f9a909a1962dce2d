// Package web provides the HTTP server and handlers for the CRUD interface.
package web

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/JonMunkholm/crud/internal/config"
	"github.com/JonMunkholm/crud/internal/crud"
	webmw "github.com/JonMunkholm/crud/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for the registered resources.
type Server struct {
	registry *crud.Registry
	cfg      *config.Config
	router   *chi.Mux
	server   *http.Server
	flash    *flashStore

	limiters []*rateLimiter
	stop     context.CancelFunc
}

// NewServer creates a new Server instance. It returns an error only when
// no session key is configured and a random one cannot be generated.
func NewServer(registry *crud.Registry, cfg *config.Config) (*Server, error) {
	key := cfg.SessionKeyBytes()
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
		slog.Warn("SESSION_KEY not set, flash messages will not survive restarts")
	}

	s := &Server{
		registry: registry,
		cfg:      cfg,
		router:   chi.NewRouter(),
		flash:    newFlashStore(key, cfg.Security.SecureCookies),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if !s.cfg.Rate.Enabled {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel

	all := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
	mutations := newRateLimiter(s.cfg.Rate.MutationLimit, time.Minute)
	s.limiters = []*rateLimiter{all, mutations}
	for _, rl := range s.limiters {
		go rl.cleanup(ctx)
	}

	s.router.Use(all.middleware(s, nil))
	s.router.Use(mutations.middleware(s, func(r *http.Request) bool {
		return r.Method == http.MethodPost
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleDashboard)

	s.router.Route("/{resource}", func(r chi.Router) {
		r.Get("/", s.handle(crud.OpIndex))
		r.Get("/"+crud.OpList, s.handle(crud.OpList))
		r.Get("/"+crud.OpRead, s.handle(crud.OpRead))
		for _, op := range []string{crud.OpCreate, crud.OpEdit, crud.OpDelete} {
			r.Get("/"+op, s.handle(op))
			r.Post("/"+op, s.handle(op))
		}
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", addr, "resources", s.registry.Len())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stop != nil {
		s.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// Pages carry one inline stylesheet and no scripts.
			if enableCSP {
				w.Header().Set("Content-Security-Policy",
					"default-src 'self'; script-src 'none'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'")
			}

			next.ServeHTTP(w, r)
		})
	}
}

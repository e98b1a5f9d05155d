package adapthttp

import (
	"context"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"sugar/internal/app"
	"sugar/internal/metrics"
)

// OIDCConfig holds the single sign-on settings. The zero value disables SSO.
type OIDCConfig struct {
	Enabled      bool
	Verifier     *oidc.IDTokenVerifier
	OAuth2Config *oauth2.Config
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the application services the adapter drives.
type Services struct {
	Readings *app.ReadingService
	Details  *app.DetailsService
	Charts   *app.ChartsService
	Auth     *app.AuthService
	Tokens   *app.TokenService
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	readings *app.ReadingService
	details  *app.DetailsService
	charts   *app.ChartsService
	authSvc  *app.AuthService
	tokens   *app.TokenService

	oidcConfig       OIDCConfig
	trustForwardAuth bool
	pinger           Pinger
	log              *zap.Logger
	metrics          *metrics.Metrics
}

// New creates a Server wired to the given application services.
func New(svc Services) *Server {
	return &Server{
		readings: svc.Readings,
		details:  svc.Details,
		charts:   svc.Charts,
		authSvc:  svc.Auth,
		tokens:   svc.Tokens,
		log:      zap.NewNop(),
	}
}

// WithOIDC enables single sign-on.
func (s *Server) WithOIDC(cfg OIDCConfig) *Server {
	s.oidcConfig = cfg
	return s
}

// WithForwardAuth makes the server trust the Remote-User header set by an
// authenticating reverse proxy.
func (s *Server) WithForwardAuth(trust bool) *Server {
	s.trustForwardAuth = trust
	return s
}

// WithPinger makes /api/health check the store.
func (s *Server) WithPinger(p Pinger) *Server {
	s.pinger = p
	return s
}

// WithLogger sets the request and error logger.
func (s *Server) WithLogger(l *zap.Logger) *Server {
	s.log = l
	return s
}

// WithMetrics records request latency and auth failures.
func (s *Server) WithMetrics(m *metrics.Metrics) *Server {
	s.metrics = m
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware)
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(withNoCache)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/config", s.handleConfig)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/setup", s.handleSetupUser)
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)
			r.Post("/token", s.handleToken)
			r.Get("/sso/login", s.handleSSOLogin)
			r.Get("/sso/callback", s.handleSSOCallback)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/readings", func(r chi.Router) {
				r.Get("/", s.handleListReadings)
				r.Post("/", s.handleCreateReading)
				r.Get("/span/{daysAgo}", s.handleSpanReadings)
				r.Get("/daily", s.handleChartsDaily)
				r.Get("/{id}", s.handleGetReading)
				r.Put("/{id}", s.handleUpdateReading)
				r.Delete("/{id}", s.handleDeleteReading)
			})

			r.Get("/me/details", s.handleGetDetails)
			r.Put("/me/details", s.handleSaveDetails)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Package api serves the loan lifecycle over HTTP with the routes the
// browser client expects.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/sells-group/loan-desk/internal/auth"
	"github.com/sells-group/loan-desk/internal/config"
	"github.com/sells-group/loan-desk/internal/lifecycle"
	"github.com/sells-group/loan-desk/internal/monitoring"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server is the loan desk HTTP API.
type Server struct {
	engine  *lifecycle.Engine
	auth    *auth.Authenticator
	metrics *monitoring.Metrics
	cfg     config.ServerConfig
	login   *rate.Limiter
}

// NewServer creates a server. metrics may be nil.
func NewServer(engine *lifecycle.Engine, authn *auth.Authenticator, metrics *monitoring.Metrics, cfg config.ServerConfig) *Server {
	limit := rate.Inf
	if cfg.LoginRate > 0 {
		limit = rate.Limit(cfg.LoginRate)
	}
	burst := cfg.LoginBurst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		engine:  engine,
		auth:    authn,
		metrics: metrics,
		cfg:     cfg,
		login:   rate.NewLimiter(limit, burst),
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/request-loan", s.handleRequestLoan)
		r.Post("/evaluate-eligibility", s.handleEvaluate)
		r.Post("/generate-quote", s.handleGenerateQuote)
		r.Post("/accept-offer", s.handleAcceptOffer)
		r.Post("/disburse-loan", s.handleDisburse)
		r.Get("/db", s.handleDumpState)
	})

	if s.cfg.Metrics && s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	return r
}

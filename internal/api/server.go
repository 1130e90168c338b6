// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

// Package api exposes the auth core over HTTP with a JSON envelope.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/samber/oops"

	"github.com/mentorlik/mentorlik/internal/auth"
)

// Metrics receives request and auth outcomes. *observability.Metrics
// satisfies it.
type Metrics interface {
	ObserveHTTP(route string, status int, seconds float64)
	RecordAuthAttempt(role, operation string, ok bool)
}

type noopMetrics struct{}

func (noopMetrics) ObserveHTTP(string, int, float64)       {}
func (noopMetrics) RecordAuthAttempt(string, string, bool) {}

// Config tunes the HTTP surface.
type Config struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// DefaultConfig returns the settings used when fields are zero.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"http://localhost:4200"},
		MaxBodyBytes:   1 << 20,
		RequestTimeout: 30 * time.Second,
	}
}

// Deps are the auth components the API drives.
type Deps struct {
	Router       *auth.Router
	Verification *auth.VerificationService
	Refresher    *auth.Refresher
	Signer       *auth.TokenSigner
	Metrics      Metrics
	Logger       *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	cfg          Config
	router       *auth.Router
	verification *auth.VerificationService
	refresher    *auth.Refresher
	signer       *auth.TokenSigner
	metrics      Metrics
	logger       *slog.Logger
}

// New creates a Server. Zero Config fields take DefaultConfig values.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Router == nil {
		return nil, oops.Errorf("auth router is required")
	}
	if deps.Verification == nil {
		return nil, oops.Errorf("verification service is required")
	}
	if deps.Refresher == nil {
		return nil, oops.Errorf("refresher is required")
	}
	if deps.Signer == nil {
		return nil, oops.Errorf("token signer is required")
	}

	def := DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = def.AllowedOrigins
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}

	s := &Server{
		cfg:          cfg,
		router:       deps.Router,
		verification: deps.Verification,
		refresher:    deps.Refresher,
		signer:       deps.Signer,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "api")
	return s, nil
}

// Handler returns the routed handler with its middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, s.logger, http.StatusNotFound,
			Response{Status: StatusError, Code: "NOT_FOUND", Message: "no such endpoint", Path: r.URL.Path})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, s.logger, http.StatusMethodNotAllowed,
			Response{Status: StatusError, Code: "METHOD_NOT_ALLOWED", Message: "method not allowed", Path: r.URL.Path})
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login/{role}", s.handleLogin)
		r.Post("/register/{role}", s.handleRegister)
		r.Get("/verify", s.handleVerify)
		r.Post("/resend-verification/{role}", s.handleResend)
		r.Post("/refresh", s.handleRefresh)
		r.With(s.requireBearer).Get("/me", s.handleMe)
	})
	return r
}

// NewHTTPServer wraps Handler in an http.Server with conservative timeouts.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

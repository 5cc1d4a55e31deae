// Package server exposes the generator over an HTTP JSON API.
package server

import (
	"blogsmith/internal/app"
	"blogsmith/internal/auth"
	"blogsmith/internal/config"
	"blogsmith/internal/logger"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	app        *app.App
	config     config.Server
	tokens     *auth.TokenVerifier // nil when auth is disabled
	startedAt  time.Time
}

// New creates a new HTTP server instance. When backend.jwt_secret is set,
// every /api route requires a bearer token signed with it.
func New(a *app.App) *Server {
	cfg := a.Config.Server
	s := &Server{
		router:    chi.NewRouter(),
		app:       a,
		config:    cfg,
		startedAt: time.Now(),
	}
	if secret := a.Config.Backend.JWTSecret; secret != "" {
		tv := auth.NewTokenVerifier(secret)
		s.tokens = &tv
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(noCache)
		if s.tokens != nil {
			r.Use(auth.Middleware(*s.tokens))
		}

		// quick calls
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(15 * time.Second))

			r.Get("/session", s.handleSession)
			r.Post("/generate", s.handleGenerate)
			r.Post("/stop", s.handleStop)
			r.Post("/reset", s.handleReset)
			r.Get("/article", s.handleArticlePage)
			r.Get("/similarity", s.handleSimilarity)

			r.Route("/ledger/{kind}", func(r chi.Router) {
				r.Get("/", s.handleLedger)
				r.Delete("/", s.handleClearLedger)
				r.Get("/check", s.handleCheckLedger)
			})

			r.Get("/settings/duplicates", s.handleGetDuplicates)
			r.Put("/settings/duplicates", s.handleSetDuplicates)

			r.Get("/credentials", s.handleListCredentials)
			r.Put("/credentials/{provider}", s.handleSetCredential)
		})

		// manual steps wait on the providers
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(3 * time.Minute))

			r.Post("/topics", s.handleGenerateTopics)
			r.Post("/topics/select", s.handleSelectTopic)
			r.Post("/article", s.handleGenerateArticle)
			r.Post("/image", s.handleGenerateImage)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	logger.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout.String(),
		"write_timeout", s.config.WriteTimeout.String(),
		"auth", s.tokens != nil,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}

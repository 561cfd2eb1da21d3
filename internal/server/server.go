// Package server provides the HTTP surface of the model router
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/model-router/router/internal/auth"
	"github.com/model-router/router/internal/character"
	"github.com/model-router/router/internal/dispatcher"
	"github.com/model-router/router/internal/health"
	"github.com/model-router/router/internal/ratelimit"
	"github.com/model-router/router/internal/registry"
	"github.com/model-router/router/internal/storage"
	"github.com/model-router/router/pkg/types"
	"github.com/model-router/router/pkg/utils"
)

// Server wires the router components behind an HTTP API.
type Server struct {
	config     *types.Config
	engine     *gin.Engine
	httpServer *http.Server
	logger     *utils.Logger

	registry   *registry.Registry
	dispatcher *dispatcher.Dispatcher
	monitor    *health.Monitor
	limiter    ratelimit.Limiter
	characters *character.Service
	apiKeys    *auth.APIKeyService
	jwtService *auth.JWTService
	requestLog *storage.RequestLogRepository
}

// Options carries the component dependencies for a Server.
type Options struct {
	Config     *types.Config
	Logger     *utils.Logger
	Registry   *registry.Registry
	Dispatcher *dispatcher.Dispatcher
	Monitor    *health.Monitor
	Limiter    ratelimit.Limiter
	Characters *character.Service
	APIKeys    *auth.APIKeyService
	JWTService *auth.JWTService
	RequestLog *storage.RequestLogRepository
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	if opts.Config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(requestIDMiddleware())
	engine.Use(requestLoggingMiddleware(opts.Logger))

	s := &Server{
		config:     opts.Config,
		engine:     engine,
		logger:     opts.Logger,
		registry:   opts.Registry,
		dispatcher: opts.Dispatcher,
		monitor:    opts.Monitor,
		limiter:    opts.Limiter,
		characters: opts.Characters,
		apiKeys:    opts.APIKeys,
		jwtService: opts.JWTService,
		requestLog: opts.RequestLog,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthStatus)

	v1 := s.engine.Group("/v1")
	v1.Use(apiKeyMiddleware(s.apiKeys, s.config.Auth.RequireAPIKey))
	if s.config.RateLimit.Enabled && s.limiter != nil {
		v1.Use(rateLimitMiddleware(s.limiter, s.logger))
	}
	{
		v1.POST("/generate", s.generate)
		v1.POST("/batch/generate", s.batchGenerate)
		v1.POST("/character/interact", s.characterInteract)
		v1.GET("/models", s.listModels)

		characters := v1.Group("/characters")
		{
			characters.POST("", s.createCharacter)
			characters.GET("", s.listCharacters)
			characters.GET("/:name", s.getCharacter)
			characters.PUT("/:name", s.updateCharacter)
			characters.DELETE("/:name", s.deleteCharacter)
		}
	}

	admin := s.engine.Group("/v1/admin")
	admin.Use(adminAuthMiddleware(s.jwtService))
	{
		admin.POST("/keys", s.issueAPIKey)
		admin.DELETE("/keys/:id", s.revokeAPIKey)
		admin.GET("/providers", s.adminProviders)
		admin.POST("/providers/check", s.triggerHealthCheck)
		admin.POST("/providers/:name/check", s.triggerProviderCheck)
		admin.GET("/stats", s.requestStats)
	}
}

// Engine exposes the gin engine for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting model router server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down model router server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/djeeyo/nmreggae/config"
	"github.com/djeeyo/nmreggae/internal/api/handlers"
	"github.com/djeeyo/nmreggae/internal/api/middleware"
	"github.com/djeeyo/nmreggae/internal/auth"
	"github.com/djeeyo/nmreggae/internal/metrics"
	"github.com/djeeyo/nmreggae/internal/services"
	"github.com/djeeyo/nmreggae/internal/tracing"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ServiceName is reported by the health endpoint
const ServiceName = "nmreggae"

// Dependencies are the collaborators the server routes to
type Dependencies struct {
	Events  *services.EventService
	Auth    *auth.Authenticator
	Tracer  tracing.Tracer
	Metrics *metrics.Metrics
	DBPing  handlers.Pinger
}

// Server represents the HTTP server
type Server struct {
	config     config.Config
	deps       Dependencies
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, deps Dependencies) *Server {
	server := &Server{
		config: cfg,
		deps:   deps,
	}

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	server.router = server.setupRouter()

	server.httpServer = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
	}

	return server
}

// Router exposes the gin engine, mainly for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	s.setupMiddleware(router)
	s.setupRoutes(router)
	return router
}

func (s *Server) setupMiddleware(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())

	if s.deps.Tracer != nil {
		if app := s.deps.Tracer.Application(); app != nil {
			router.Use(middleware.NewRelicMiddleware(app))
		}
	}
	if s.config.Server.MetricsEnabled && s.deps.Metrics != nil {
		router.Use(middleware.Metrics(s.deps.Metrics))
	}
	if s.config.Server.CorsEnabled {
		router.Use(middleware.CORS(s.config.Server.CorsOrigins))
	}
}

func (s *Server) setupRoutes(router *gin.Engine) {
	health := handlers.NewHealthHandler(ServiceName, s.deps.DBPing)
	router.GET("/health", health.HealthCheck)

	if s.config.Server.MetricsEnabled && s.deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.deps.Metrics.Handler()))
	}

	api := router.Group("/api")

	eventHandler := handlers.NewEventHandler(s.deps.Events)
	eventHandler.RegisterRoutes(api)

	adminHandler := handlers.NewAdminHandler(s.deps.Events, s.deps.Auth)
	admin := api.Group("/admin", middleware.BodyLimit(s.config.Admin.MaxUploadBytes))
	admin.POST("/login", adminHandler.Login)

	protected := admin.Group("", middleware.AdminAuth(s.deps.Auth))
	protected.POST("/csv-upload", adminHandler.UploadCSV)
	protected.GET("/backup", adminHandler.Backup)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}

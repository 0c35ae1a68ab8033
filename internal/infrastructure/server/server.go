package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/whattodo/core/docs"
	httpHandlers "github.com/whattodo/core/internal/adapters/http"
	"github.com/whattodo/core/internal/application/services"
	"github.com/whattodo/core/internal/domain/entities"
	"github.com/whattodo/core/internal/infrastructure/config"
	"github.com/whattodo/core/internal/infrastructure/logger"
	"github.com/whattodo/core/internal/infrastructure/metrics"
)

// Deps are the application services the server exposes.
type Deps struct {
	Documents *services.DocumentService
	Auth      *services.AuthService
	// Remote is nil when remote sync is disabled.
	Remote  *services.RemoteSync
	Metrics *metrics.Metrics
}

// Server represents the HTTP server
type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger *logger.Logger
	deps   Deps
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New creates a new server instance
func New(cfg *config.Config, deps Deps, appLogger *logger.Logger) (*Server, error) {
	if deps.Documents == nil || deps.Auth == nil {
		return nil, errors.New("server requires the document and auth services")
	}

	e := echo.New()

	// Set custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.App.IsDevelopment()
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Server.IdleTimeout = cfg.Server.IdleTimeout

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	server := &Server{
		echo:   e,
		config: cfg,
		logger: appLogger.WithComponent("http"),
		deps:   deps,
	}

	// Setup middleware
	server.setupMiddleware()

	// Setup metrics
	if cfg.Metrics.Enabled && deps.Metrics != nil {
		server.setupMetrics()
	}

	// Setup routes
	server.setupRoutes(
		httpHandlers.NewDocumentHandler(deps.Documents, appLogger.WithComponent("documents-http")),
		httpHandlers.NewSessionHandler(deps.Auth, deps.Remote, appLogger.WithComponent("session-http")),
	)

	return server, nil
}

// Echo exposes the underlying router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(documentHandler *httpHandlers.DocumentHandler, sessionHandler *httpHandlers.SessionHandler) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)

	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	v1.GET("/document", documentHandler.GetDocument)
	v1.POST("/document/reload", documentHandler.ReloadDocument)

	taskGroup := v1.Group("/tasks")
	taskGroup.POST("", documentHandler.CreateTask)
	taskGroup.PUT("/:id", documentHandler.UpdateTask)
	taskGroup.DELETE("/:id", documentHandler.DeleteTask)
	taskGroup.POST("/:id/today", documentHandler.MoveTaskToToday)

	labelGroup := v1.Group("/labels")
	labelGroup.POST("", documentHandler.CreateLabel)
	labelGroup.PUT("/:id", documentHandler.UpdateLabel)
	labelGroup.DELETE("/:id", documentHandler.DeleteLabel)

	v1.PUT("/notes/:date", documentHandler.UpdateNote)
	v1.PUT("/filters", documentHandler.UpdateFilters)

	storageGroup := v1.Group("/storage")
	storageGroup.DELETE("", documentHandler.ClearStorage)
	storageGroup.POST("/upload", documentHandler.UploadStorage)

	sessionGroup := v1.Group("/session")
	sessionGroup.GET("", sessionHandler.GetSession)
	sessionGroup.POST("", sessionHandler.SignIn)
	sessionGroup.DELETE("", sessionHandler.SignOut)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	s.echo.Use(s.deps.Metrics.Middleware())
	s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	snap := s.deps.Documents.Snapshot()
	session := s.deps.Auth.Current()

	checks := map[string]interface{}{
		"storage": map[string]interface{}{
			"status":       "ok",
			"busy":         s.deps.Documents.Busy(),
			"queue_length": s.deps.Documents.QueueLen(),
			"usage_ratio":  snap.UsageRatio,
			"tasks":        snap.Document.TaskCount(),
		},
		"remote": map[string]interface{}{
			"enabled":   s.deps.Remote != nil,
			"signed_in": session.SignedIn,
		},
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
		},
	})
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	return s.echo.Shutdown(ctx)
}

// customErrorHandler handles HTTP errors
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		var he *echo.HTTPError
		var ve validator.ValidationErrors
		switch {
		case errors.As(err, &he):
			code = he.Code
			msg = map[string]interface{}{"message": he.Message}
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		case errors.As(err, &ve):
			code = http.StatusBadRequest
			msg = map[string]string{"message": "validation failed", "details": ve.Error()}
		case errors.Is(err, entities.ErrTaskNotFound), errors.Is(err, entities.ErrLabelNotFound):
			code = http.StatusNotFound
			msg = map[string]string{"message": err.Error()}
		case errors.Is(err, entities.ErrInvalidToken):
			code = http.StatusUnauthorized
			msg = map[string]string{"message": "invalid session token"}
		case errors.Is(err, entities.ErrRemoteDisabled):
			code = http.StatusConflict
			msg = map[string]string{"message": err.Error()}
		case services.IsStorageError(err):
			code = http.StatusInternalServerError
			msg = map[string]string{"message": "storage unavailable"}
		default:
			msg = map[string]string{"message": http.StatusText(code)}
		}

		if code == http.StatusInternalServerError {
			logger.Errorw("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		// Send response
		if !c.Response().Committed {
			if c.Request().Method == echo.HEAD {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, msg)
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err)
			}
		}
	}
}

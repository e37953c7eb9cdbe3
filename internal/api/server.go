package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"phraseindex/internal/logging"
	"phraseindex/internal/pipeline"
	"phraseindex/internal/queue"
	"phraseindex/internal/scheduler"
	"phraseindex/internal/services"
	"phraseindex/internal/workflow"
)

// Processor runs a single video on demand.
type Processor interface {
	Run(ctx context.Context, ref pipeline.VideoRef) (pipeline.Result, error)
}

// StatusReporter exposes workflow diagnostics.
type StatusReporter interface {
	Status(ctx context.Context) workflow.StatusSummary
}

// Options wires the server to the rest of the system. Workflow is optional.
type Options struct {
	Bind         string
	Store        *queue.Store
	Processor    Processor
	Scheduler    *scheduler.Scheduler
	Workflow     StatusReporter
	StuckTimeout time.Duration
	Logger       *slog.Logger
}

// Server is the admin HTTP server.
type Server struct {
	opts   Options
	echo   *echo.Echo
	logger *slog.Logger
	now    func() time.Time

	listener net.Listener
	server   *http.Server
}

// New builds the server and registers its routes.
func New(opts Options) *Server {
	s := &Server{
		opts:   opts,
		echo:   echo.New(),
		logger: logging.NewComponentLogger(opts.Logger, "api"),
		now:    time.Now,
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	s.echo.Use(s.requestContext)
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []logging.Attr{
				logging.String("method", v.Method),
				logging.String("uri", v.URI),
				logging.Int("status", v.Status),
				logging.Duration("latency", v.Latency),
				logging.String(logging.FieldCorrelationID, v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, logging.Error(v.Error))
			}
			s.logger.Debug("api request", logging.Args(attrs...)...)
			return nil
		},
	}))
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/health", s.health)

	videos := e.Group("/api/videos")
	videos.GET("", s.listVideos)
	videos.POST("", s.addVideo)
	videos.POST("/:id/process", s.processVideo)
	videos.GET("/:id/status", s.videoStatus)
	videos.POST("/:id/retry", s.retryVideo)

	q := e.Group("/api/queue")
	q.GET("/status", s.queueStatus)
	q.POST("/cleanup", s.queueCleanup)
	q.POST("/reset", s.queueReset)
	q.POST("/clear", s.queueClear)

	recovery := e.Group("/api/recovery")
	recovery.POST("/reset-stuck", s.resetStuck)
	recovery.POST("/clear-phrases", s.clearPhrases)
}

// requestContext stamps the request ID onto the request context for logging.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if id != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(services.WithRequestID(req.Context(), id)))
		}
		return next(c)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured bind address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.opts.Bind)
	if bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Manual processing runs synchronously.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	s.logger.Info("api server listening", logging.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// errorStatus maps error markers to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, queue.ErrDuplicateVideo):
		return http.StatusConflict
	case errors.Is(err, services.ErrQuota):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrTransient):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c echo.Context, err error) error {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(c.Request().Context(), s.logger).Error("api request failed", logging.Error(err))
	}
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}

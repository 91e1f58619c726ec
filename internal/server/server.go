// Package server assembles the echo instance and runs it until its context
// is cancelled.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"supaconnect/internal/handlers"
	"supaconnect/internal/metrics"
	"supaconnect/internal/routes"
	"supaconnect/internal/security"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	echo *echo.Echo
	addr string
}

// NewServer wires middleware and routes. rateLimitPerMinute bounds the
// management API calls each client IP can trigger.
func NewServer(addr string, h *handlers.Handlers, rateLimitPerMinute int64) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURIPath:   true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				slog.Error("Request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Info("Request handled", attrs...)
			return nil
		},
	}))

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	limiter := security.NewRateLimiter(rateLimitPerMinute)
	routes.SetupRoutes(e, h, security.RateLimitMiddleware(limiter))

	return &Server{echo: e, addr: addr}
}

// Handler exposes the router, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is done, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening", "addr", s.addr)
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

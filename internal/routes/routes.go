package routes

import (
	"github.com/labstack/echo/v4"

	"supaconnect/internal/auth"
	"supaconnect/internal/handlers"
)

// SetupRoutes registers every endpoint on e. rateLimit guards the routes
// that call the management API on behalf of the user.
func SetupRoutes(e *echo.Echo, h *handlers.Handlers, rateLimit echo.MiddlewareFunc) {
	// Public routes
	e.GET("/", handlers.Index)
	e.GET("/health", handlers.HealthCheck)

	requireToken := auth.RequireAccessToken(h.Sessions)

	// OAuth routes
	connect := e.Group("/connect-supabase")
	connect.GET("/login", h.Login)
	connect.GET("/oauth2/callback", h.Callback)
	connect.POST("/logout", h.Logout)
	connect.GET("/projects", h.ListProjects, requireToken, rateLimit)

	// Protected routes
	migrate := e.Group("/migrate", requireToken)
	migrate.GET("", h.ListProjects, rateLimit)
	migrate.GET("/preview", h.Preview, rateLimit)

	// Job routes
	migrate.POST("/preview/jobs", h.CreateJob, rateLimit)
	migrate.GET("/preview/jobs/:id", h.GetJob)

	// Snapshot history
	migrate.GET("/projects/:ref/snapshots", h.GetSnapshots)
	migrate.GET("/snapshots/:snapshotId", h.GetSnapshotDetail)

	notifications := e.Group("/notifications", requireToken)
	notifications.GET("", h.GetNotifications)
	notifications.POST("/:id/read", h.MarkNotificationRead)
}

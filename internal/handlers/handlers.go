// Package handlers implements the HTTP endpoints of the service.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"supaconnect/internal/auth"
	"supaconnect/internal/db"
	"supaconnect/internal/management"
	"supaconnect/internal/notification"
	"supaconnect/internal/preview"
	"supaconnect/internal/queue"
	"supaconnect/internal/session"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ProjectLister interface {
	ListProjects(ctx context.Context, accessToken string) ([]management.Project, error)
}

type Previewer interface {
	Preview(ctx context.Context, accessToken string, req preview.Request, extra ...preview.Recorder) (*preview.Response, error)
}

type JobStore interface {
	CreateJob(ctx context.Context, owner, sourceRef, destRef string, categories []string) (*db.Job, error)
	GetJob(ctx context.Context, id string) (*db.Job, error)
	Fail(ctx context.Context, id string, message string) error
}

type JobQueue interface {
	EnqueuePreview(ctx context.Context, payload queue.PreviewPayload) (string, error)
}

type SnapshotReader interface {
	ListSnapshots(ctx context.Context, projectRef, category string, page, pageSize int) (*db.SnapshotPage, error)
	GetSnapshot(ctx context.Context, snapshotID string) (*db.Snapshot, error)
}

// Handlers carries the dependencies of every endpoint. Jobs, Queue and
// Snapshots are nil when no database is configured; their endpoints then
// answer 503.
type Handlers struct {
	Sessions  *session.Manager
	OAuth     *auth.Provider
	Projects  ProjectLister
	Previews  Previewer
	Jobs      JobStore
	Queue     JobQueue
	Sealer    session.Sealer
	Snapshots SnapshotReader
	Notifier  notification.Notifier
}

func (h *Handlers) notifier() notification.Notifier {
	if h.Notifier == nil {
		return notification.NopService{}
	}
	return h.Notifier
}

func Index(c echo.Context) error {
	return c.HTML(http.StatusOK, "<h1>Hello World!</h1>")
}

func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func errorJSON(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}

func getPage(c echo.Context) int {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func getPageSize(c echo.Context) int {
	size, err := strconv.Atoi(c.QueryParam("page_size"))
	if err != nil || size < 1 {
		return defaultPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}

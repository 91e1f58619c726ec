package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"supaconnect/internal/auth"
	"supaconnect/internal/category"
	"supaconnect/internal/db"
	"supaconnect/internal/preview"
	"supaconnect/internal/queue"
	"supaconnect/internal/security"
)

// Preview compares the configuration of two projects for the categories
// switched on in the query string.
func (h *Handlers) Preview(c echo.Context) error {
	flags, err := parseFlags(c)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request: "+err.Error())
	}

	req := preview.Request{
		SourceID:   c.QueryParam("source_id"),
		DestID:     c.QueryParam("dest_id"),
		Categories: category.Select(flags),
	}

	resp, err := h.Previews.Preview(c.Request().Context(), auth.AccessToken(c), req, h.sessionRecorder(c))
	if err != nil {
		perr := preview.AsError(err)
		return errorJSON(c, perr.StatusCode(), perr.Message)
	}
	return c.JSON(http.StatusOK, resp)
}

// sessionRecorder keeps the latest source configuration of each category in
// the caller's session.
func (h *Handlers) sessionRecorder(c echo.Context) preview.Recorder {
	sess := auth.SessionFrom(c)
	return preview.RecorderFunc(func(ctx context.Context, snap preview.Snapshot) error {
		if sess == nil || snap.Side != preview.SideSource {
			return nil
		}
		return sess.SetSnapshot(ctx, snap.Category.Name, snap.Content)
	})
}

func parseFlags(c echo.Context) (map[string]bool, error) {
	flags := make(map[string]bool)
	for _, flag := range category.Flags() {
		raw := c.QueryParam(flag)
		if raw == "" {
			continue
		}
		on, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be a boolean", flag)
		}
		flags[flag] = on
	}
	return flags, nil
}

type CreateJobRequest struct {
	SourceID   string   `json:"source_id" validate:"required,projectref"`
	DestID     string   `json:"dest_id" validate:"required,projectref"`
	Categories []string `json:"categories" validate:"required,min=1,dive,required"`
}

// CreateJob queues a preview to run in the background. The result is
// fetched later with GetJob.
func (h *Handlers) CreateJob(c echo.Context) error {
	if h.Jobs == nil || h.Queue == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "Preview jobs are not available")
	}

	var req CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request")
	}
	if err := security.Validate.Struct(req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request: "+security.Describe(err))
	}

	names := make([]string, 0, len(req.Categories))
	for _, name := range req.Categories {
		cat, ok := category.Lookup(name)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, fmt.Sprintf("Unknown category %q", name))
		}
		names = append(names, cat.Name)
	}

	ctx := c.Request().Context()
	sess := auth.SessionFrom(c)

	sealed, err := h.Sealer.Seal(ctx, []byte(auth.AccessToken(c)))
	if err != nil {
		slog.Error("Failed to seal access token", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Session error: "+err.Error())
	}

	job, err := h.Jobs.CreateJob(ctx, sess.ID, req.SourceID, req.DestID, names)
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "Failed to create preview job")
	}

	_, err = h.Queue.EnqueuePreview(ctx, queue.PreviewPayload{
		JobID:       job.ID,
		Owner:       sess.ID,
		SourceID:    req.SourceID,
		DestID:      req.DestID,
		Categories:  names,
		SealedToken: sealed,
	})
	if err != nil {
		slog.Error("Failed to enqueue preview job", "error", err, "job_id", job.ID)
		if ferr := h.Jobs.Fail(ctx, job.ID, "Failed to enqueue preview job"); ferr != nil {
			slog.Error("Failed to mark job failed", "error", ferr, "job_id", job.ID)
		}
		return errorJSON(c, http.StatusInternalServerError, "Failed to enqueue preview job")
	}

	return c.JSON(http.StatusAccepted, job)
}

// GetJob returns a preview job of the caller's session.
func (h *Handlers) GetJob(c echo.Context) error {
	if h.Jobs == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "Preview jobs are not available")
	}

	job, err := h.Jobs.GetJob(c.Request().Context(), c.Param("id"))
	if errors.Is(err, db.ErrJobNotFound) {
		return errorJSON(c, http.StatusNotFound, "Job not found")
	}
	if err != nil {
		slog.Error("Failed to fetch preview job", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to fetch preview job")
	}

	// other sessions' jobs are reported as missing
	if sess := auth.SessionFrom(c); sess == nil || job.Owner != sess.ID {
		return errorJSON(c, http.StatusNotFound, "Job not found")
	}
	return c.JSON(http.StatusOK, job)
}

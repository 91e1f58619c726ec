package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"supaconnect/internal/auth"
	"supaconnect/internal/category"
	"supaconnect/internal/db"
	"supaconnect/internal/management"
	"supaconnect/internal/security"
)

var errProjectHidden = errors.New("project not visible to this session")

// GetSnapshots lists the stored configuration history of a project,
// optionally narrowed to one category.
func (h *Handlers) GetSnapshots(c echo.Context) error {
	if h.Snapshots == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "Snapshot history is not available")
	}

	ref := c.Param("ref")
	if err := security.Validate.Var(ref, "projectref"); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid project reference")
	}

	var categoryName string
	if raw := c.QueryParam("category"); raw != "" {
		cat, ok := category.Lookup(raw)
		if !ok {
			return errorJSON(c, http.StatusBadRequest, "Unknown category")
		}
		categoryName = cat.Name
	}

	if err := h.checkProjectVisible(c, ref); err != nil {
		return h.projectAccessError(c, err, "Project not found")
	}

	page, err := h.Snapshots.ListSnapshots(c.Request().Context(), ref, categoryName, getPage(c), getPageSize(c))
	if err != nil {
		return errorJSON(c, http.StatusInternalServerError, "Failed to fetch snapshots")
	}
	return c.JSON(http.StatusOK, page)
}

// GetSnapshotDetail retrieves a single snapshot with its masked content.
// Snapshots of projects the caller cannot see answer 404.
func (h *Handlers) GetSnapshotDetail(c echo.Context) error {
	if h.Snapshots == nil {
		return errorJSON(c, http.StatusServiceUnavailable, "Snapshot history is not available")
	}

	snapshotID := c.Param("snapshotId")
	snapshot, err := h.Snapshots.GetSnapshot(c.Request().Context(), snapshotID)
	if errors.Is(err, db.ErrSnapshotNotFound) {
		return errorJSON(c, http.StatusNotFound, "Snapshot not found")
	}
	if err != nil {
		slog.Error("Failed to fetch snapshot", "error", err, "snapshot_id", snapshotID)
		return errorJSON(c, http.StatusInternalServerError, "Failed to fetch snapshot")
	}

	if err := h.checkProjectVisible(c, snapshot.ProjectRef); err != nil {
		return h.projectAccessError(c, err, "Snapshot not found")
	}
	return c.JSON(http.StatusOK, snapshot)
}

// checkProjectVisible returns errProjectHidden unless ref is one of the
// projects the session's access token can list.
func (h *Handlers) checkProjectVisible(c echo.Context, ref string) error {
	projects, err := h.Projects.ListProjects(c.Request().Context(), auth.AccessToken(c))
	if err != nil {
		return err
	}
	for _, p := range projects {
		if p.Ref == ref || (p.Ref == "" && p.ID == ref) {
			return nil
		}
	}
	return errProjectHidden
}

func (h *Handlers) projectAccessError(c echo.Context, err error, notFound string) error {
	if errors.Is(err, errProjectHidden) {
		return errorJSON(c, http.StatusNotFound, notFound)
	}
	slog.Error("Failed to list projects", "error", err)
	var apiErr *management.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		return errorJSON(c, http.StatusUnauthorized, "Unauthorized")
	}
	return errorJSON(c, http.StatusInternalServerError, "Failed to list projects")
}

package handlers

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"supaconnect/internal/auth"
	"supaconnect/internal/management"
	"supaconnect/internal/session"
)

const (
	loginPath    = "/connect-supabase/login"
	projectsPath = "/connect-supabase/projects"
	migratePath  = "/migrate"
)

const redirectPage = `<!DOCTYPE html>
<html>
<head>
    <meta http-equiv="refresh" content="0;url=` + migratePath + `">
    <title>Redirecting...</title>
</head>
<body>
    <p>Authentication successful! Redirecting to your projects...</p>
    <p>If you are not redirected, <a href="` + migratePath + `">click here</a>.</p>
</body>
</html>
`

// Login starts the OAuth flow, or skips it when the session already holds
// an access token.
func (h *Handlers) Login(c echo.Context) error {
	ctx := c.Request().Context()

	sess, err := h.Sessions.Ensure(c)
	if err != nil {
		slog.Error("Failed to start session", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Session error: "+err.Error())
	}

	authorized, err := sess.HasAccessToken(ctx)
	if err != nil {
		slog.Error("Failed to read session", "error", err, "session_id", sess.ID)
		return errorJSON(c, http.StatusInternalServerError, "Session error: "+err.Error())
	}
	if authorized {
		slog.Debug("Access token found in session, skipping OAuth flow", "session_id", sess.ID)
		return c.Redirect(http.StatusSeeOther, projectsPath)
	}

	authz, err := h.OAuth.Begin()
	if err != nil {
		slog.Error("Failed to begin OAuth flow", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Failed to start login")
	}
	if err := sess.SetOAuthState(ctx, authz.State); err != nil {
		slog.Error("Failed to store OAuth state", "error", err, "session_id", sess.ID)
		return errorJSON(c, http.StatusInternalServerError, "Session error: "+err.Error())
	}

	slog.Info("OAuth state stored, redirecting to authorize", "session_id", sess.ID)
	return c.Redirect(http.StatusSeeOther, authz.URL)
}

// Callback completes the OAuth flow and stores the access token in the session.
func (h *Handlers) Callback(c echo.Context) error {
	ctx := c.Request().Context()
	code := c.QueryParam("code")
	state := c.QueryParam("state")

	if code == "" || state == "" {
		return errorPage(c, http.StatusBadRequest, "Missing code or state parameter.")
	}

	sess, err := h.Sessions.Load(c)
	if err != nil {
		slog.Warn("OAuth callback without session", "error", err)
		return errorPage(c, http.StatusBadRequest, "No session data found.")
	}

	stored, err := sess.OAuthState(ctx)
	if errors.Is(err, session.ErrNotFound) {
		return errorPage(c, http.StatusBadRequest, "No session data found.")
	}
	if err != nil {
		slog.Error("Failed to read OAuth state", "error", err, "session_id", sess.ID)
		return errorPage(c, http.StatusInternalServerError, "Session error.")
	}

	// the handshake data is single use
	if err := sess.ClearOAuthState(ctx); err != nil {
		slog.Warn("Failed to clear OAuth state", "error", err, "session_id", sess.ID)
	}

	if err := auth.Validate(stored, state); err != nil {
		slog.Warn("OAuth state validation failed", "error", err, "session_id", sess.ID)
		return errorPage(c, http.StatusBadRequest, callbackMessage(err))
	}

	token, err := h.OAuth.Exchange(ctx, code, stored.PKCEVerifier)
	if err != nil {
		slog.Error("Failed to exchange token", "error", err, "session_id", sess.ID)
		return errorPage(c, http.StatusBadGateway, fmt.Sprintf("Failed to exchange token: %s.", err))
	}

	if err := sess.SetAccessToken(ctx, token.AccessToken); err != nil {
		slog.Error("Failed to store access token", "error", err, "session_id", sess.ID)
		return errorPage(c, http.StatusInternalServerError, "Failed to store access token.")
	}

	slog.Info("OAuth flow completed", "session_id", sess.ID)
	return c.HTML(http.StatusOK, redirectPage)
}

func callbackMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingVerifier):
		return "No PKCE verifier found in session."
	case errors.Is(err, auth.ErrMissingState):
		return "No CSRF token found in session."
	case errors.Is(err, auth.ErrStateMismatch):
		return "CSRF token mismatch."
	default:
		return err.Error()
	}
}

func errorPage(c echo.Context, status int, message string) error {
	return c.HTML(status, fmt.Sprintf(
		`<h1>Error</h1><p>%s Please try logging in again.</p><p><a href="%s">Back to Login</a></p>`,
		html.EscapeString(message), loginPath))
}

func (h *Handlers) Logout(c echo.Context) error {
	if err := h.Sessions.Destroy(c); err != nil {
		slog.Error("Failed to destroy session", "error", err)
		return errorJSON(c, http.StatusInternalServerError, "Session error: "+err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ListProjects returns the projects visible to the session's access token.
func (h *Handlers) ListProjects(c echo.Context) error {
	projects, err := h.Projects.ListProjects(c.Request().Context(), auth.AccessToken(c))
	if err != nil {
		slog.Error("Failed to list projects", "error", err)
		var apiErr *management.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return errorJSON(c, http.StatusUnauthorized, "Unauthorized")
		}
		return errorJSON(c, http.StatusInternalServerError, "Failed to list projects: "+err.Error())
	}
	if projects == nil {
		projects = []management.Project{}
	}
	return c.JSON(http.StatusOK, projects)
}

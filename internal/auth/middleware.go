package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"supaconnect/internal/session"
)

const (
	accessTokenKey = "access_token"
	sessionKey     = "auth_session"
)

// RequireAccessToken rejects requests whose session holds no management API
// token. The token and session are then available through AccessToken and
// SessionFrom.
func RequireAccessToken(manager *session.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, err := manager.Load(c)
			if errors.Is(err, session.ErrNoSession) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			if err != nil {
				slog.Error("Failed to load session", "error", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Session error: " + err.Error()})
			}

			token, err := sess.AccessToken(c.Request().Context())
			switch {
			case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrUnsealFailed):
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			case err != nil:
				slog.Error("Failed to get token from session", "error", err, "session_id", sess.ID)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Session error: " + err.Error()})
			}

			c.Set(accessTokenKey, token)
			c.Set(sessionKey, sess)
			return next(c)
		}
	}
}

func AccessToken(c echo.Context) string {
	token, _ := c.Get(accessTokenKey).(string)
	return token
}

func SessionFrom(c echo.Context) *session.Session {
	sess, _ := c.Get(sessionKey).(*session.Session)
	return sess
}

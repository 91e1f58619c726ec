package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supaconnect/internal/session"
)

func newManager() *session.Manager {
	return session.NewManager(session.NewMemoryStore(time.Hour), session.DeriveSecretboxSealer("test"), session.ManagerOptions{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		TTL:    time.Hour,
	})
}

// loginCookie starts a session, optionally stores a token, and returns its cookie.
func loginCookie(t *testing.T, manager *session.Manager, token string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	sess, err := manager.Ensure(c)
	require.NoError(t, err)
	if token != "" {
		require.NoError(t, sess.SetAccessToken(context.Background(), token))
	}
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == session.CookieName {
			return cookie
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func serve(manager *session.Manager, cookie *http.Cookie) *httptest.ResponseRecorder {
	e := echo.New()
	e.GET("/protected", func(c echo.Context) error {
		return c.String(http.StatusOK, AccessToken(c)+"|"+SessionFrom(c).ID)
	}, RequireAccessToken(manager))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireAccessToken_NoSession(t *testing.T) {
	rec := serve(newManager(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
}

func TestRequireAccessToken_SessionWithoutToken(t *testing.T) {
	manager := newManager()
	rec := serve(manager, loginCookie(t, manager, ""))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAccessToken_Authorized(t *testing.T) {
	manager := newManager()
	rec := serve(manager, loginCookie(t, manager, "sbp_token"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sbp_token|")
}

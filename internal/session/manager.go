package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	CookieName = "sc_session"

	contextKey = "session"
)

type ManagerOptions struct {
	Secret       []byte
	TTL          time.Duration
	CookieSecure bool
}

// Manager binds browser requests to server-side sessions. The cookie holds
// an HS256 JWT whose jti is the session id.
type Manager struct {
	store  Store
	sealer Sealer
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewManager(store Store, sealer Sealer, opts ManagerOptions) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Manager{
		store:  store,
		sealer: sealer,
		secret: opts.Secret,
		ttl:    opts.TTL,
		secure: opts.CookieSecure,
		now:    time.Now,
	}
}

// Session is a handle on one server-side session.
type Session struct {
	ID string

	store  Store
	sealer Sealer
}

// Open returns a handle for a known session id, e.g. from a job payload.
func (m *Manager) Open(id string) *Session {
	return &Session{ID: id, store: m.store, sealer: m.sealer}
}

// Load returns the request's session, or ErrNoSession when the cookie is
// missing, malformed or expired.
func (m *Manager) Load(c echo.Context) (*Session, error) {
	if sess, ok := c.Get(contextKey).(*Session); ok {
		return sess, nil
	}

	cookie, err := c.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrNoSession
	}

	claims, err := m.parseToken(cookie.Value)
	if err != nil {
		return nil, ErrNoSession
	}
	id := claims.ID

	if err := m.store.Touch(c.Request().Context(), id); err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}

	// Sliding expiry: re-issue the cookie once less than half its life is left.
	if claims.ExpiresAt != nil && claims.ExpiresAt.Sub(m.now()) < m.ttl/2 {
		token, err := m.issueToken(id)
		if err != nil {
			return nil, err
		}
		c.SetCookie(m.cookie(token, int(m.ttl.Seconds())))
	}

	sess := m.Open(id)
	c.Set(contextKey, sess)
	return sess, nil
}

// Ensure returns the request's session, starting a new one and setting the
// cookie when there is none.
func (m *Manager) Ensure(c echo.Context) (*Session, error) {
	sess, err := m.Load(c)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrNoSession) {
		return nil, err
	}

	id := uuid.NewString()
	token, err := m.issueToken(id)
	if err != nil {
		return nil, err
	}
	c.SetCookie(m.cookie(token, int(m.ttl.Seconds())))

	sess = m.Open(id)
	c.Set(contextKey, sess)
	return sess, nil
}

// Destroy removes the request's session and expires its cookie.
func (m *Manager) Destroy(c echo.Context) error {
	sess, err := m.Load(c)
	c.SetCookie(m.cookie("", -1))
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		return err
	}
	return m.store.Destroy(c.Request().Context(), sess.ID)
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *Manager) issueToken(id string) (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

func (m *Manager) parseToken(raw string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(claims.ID); err != nil {
		return nil, errors.New("session token carries an invalid id")
	}
	return claims, nil
}

func (s *Session) Get(ctx context.Context, key string) (string, error) {
	return s.store.Get(ctx, s.ID, key)
}

func (s *Session) Set(ctx context.Context, key, value string) error {
	return s.store.Set(ctx, s.ID, key, value)
}

func (s *Session) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.ID, key)
}

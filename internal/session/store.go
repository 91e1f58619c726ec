// Package session keeps per-browser state (OAuth handshake data and the
// management API access token) server-side, keyed by a signed cookie.
package session

import (
	"context"
	"errors"
)

var (
	ErrNotFound  = errors.New("session: key not found")
	ErrNoSession = errors.New("session: no valid session cookie")
)

// Store holds string values per session. Implementations expire a session
// once it has been idle for their TTL.
type Store interface {
	Get(ctx context.Context, sessionID, key string) (string, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Delete(ctx context.Context, sessionID, key string) error
	Destroy(ctx context.Context, sessionID string) error
	Touch(ctx context.Context, sessionID string) error
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	KeyAccessToken = "supabase_access_token"
	KeyOAuthData   = "oauth_data"

	snapshotKeyPrefix = "snapshot:"
)

// OAuthState is the authorization-code handshake data kept between the
// login redirect and the callback.
type OAuthState struct {
	PKCEVerifier string `json:"pkce_verifier_secret,omitempty"`
	CSRFToken    string `json:"csrf_token_secret,omitempty"`
}

// AccessToken returns the unsealed management API token, or ErrNotFound.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	sealed, err := s.Get(ctx, KeyAccessToken)
	if err != nil {
		return "", err
	}
	token, err := s.sealer.Open(ctx, sealed)
	if err != nil {
		return "", err
	}
	return string(token), nil
}

func (s *Session) SetAccessToken(ctx context.Context, token string) error {
	sealed, err := s.sealer.Seal(ctx, []byte(token))
	if err != nil {
		return err
	}
	return s.Set(ctx, KeyAccessToken, sealed)
}

// HasAccessToken reports whether a token is stored without unsealing it.
func (s *Session) HasAccessToken(ctx context.Context) (bool, error) {
	_, err := s.Get(ctx, KeyAccessToken)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Session) OAuthState(ctx context.Context) (*OAuthState, error) {
	raw, err := s.Get(ctx, KeyOAuthData)
	if err != nil {
		return nil, err
	}
	var state OAuthState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("failed to decode oauth state: %w", err)
	}
	return &state, nil
}

func (s *Session) SetOAuthState(ctx context.Context, state OAuthState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode oauth state: %w", err)
	}
	return s.Set(ctx, KeyOAuthData, string(raw))
}

func (s *Session) ClearOAuthState(ctx context.Context) error {
	return s.Delete(ctx, KeyOAuthData)
}

// SetSnapshot keeps the latest raw source configuration of a category.
func (s *Session) SetSnapshot(ctx context.Context, category string, content []byte) error {
	return s.Set(ctx, snapshotKeyPrefix+category, string(content))
}

func (s *Session) Snapshot(ctx context.Context, category string) ([]byte, error) {
	raw, err := s.Get(ctx, snapshotKeyPrefix+category)
	if err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

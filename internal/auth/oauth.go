package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"supaconnect/internal/session"
	"supaconnect/utils"
)

const stateLength = 32

var (
	ErrMissingVerifier = errors.New("no PKCE verifier found in session")
	ErrMissingState    = errors.New("no CSRF token found in session")
	ErrStateMismatch   = errors.New("CSRF token mismatch")
)

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthorizeURL string
	TokenURL     string

	// HTTPClient is used for the token exchange when set.
	HTTPClient *http.Client
}

// Provider runs the authorization-code flow with PKCE (S256) against the
// management API's OAuth endpoints.
type Provider struct {
	oauth      *oauth2.Config
	httpClient *http.Client
}

func NewProvider(cfg Config) *Provider {
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: cfg.HTTPClient,
	}
}

type Authorization struct {
	URL   string
	State session.OAuthState
}

// Begin creates a CSRF state and PKCE verifier and returns the authorize URL
// the browser should be sent to.
func (p *Provider) Begin() (*Authorization, error) {
	state, err := utils.GenerateRandomAlphaNumeric(stateLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	return &Authorization{
		URL: p.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)),
		State: session.OAuthState{
			PKCEVerifier: verifier,
			CSRFToken:    state,
		},
	}, nil
}

// Validate checks stored handshake data against the state returned to the callback.
func Validate(stored *session.OAuthState, returnedState string) error {
	if stored == nil || stored.PKCEVerifier == "" {
		return ErrMissingVerifier
	}
	if stored.CSRFToken == "" {
		return ErrMissingState
	}
	if stored.CSRFToken != returnedState {
		return ErrStateMismatch
	}
	return nil
}

// Exchange trades an authorization code for an access token.
func (p *Provider) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}

	token, err := p.oauth.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, fmt.Errorf("HTTP %d - %s", retrieveErr.Response.StatusCode, string(retrieveErr.Body))
		}
		return nil, err
	}

	if token.RefreshToken != "" {
		slog.Debug("Refresh token received with access token", "expires_at", token.Expiry)
	}
	return token, nil
}

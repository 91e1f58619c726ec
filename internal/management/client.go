package management

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"supaconnect/internal/category"
	"supaconnect/internal/metrics"
)

const (
	DefaultBaseURL      = "https://api.supabase.com/v1"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 8 << 20

	// maxErrorBodyBytes caps how much of an error response is kept in APIError.
	maxErrorBodyBytes = 4 << 10
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrBodyTooLarge = errors.New("management API response exceeds size limit")
)

// APIError is returned for non-2xx management API responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP request failed with status %d: %s", e.StatusCode, e.Body)
}

// Is makes a 401 response match ErrUnauthorized.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

type Options struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxBodyBytes      int64
	HTTPClient        *http.Client
}

// Client performs bearer-authorized reads against the management API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	maxBodyBytes int64
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		burst = max(1, int(opts.RequestsPerSecond))
	}

	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		httpClient:   httpClient,
		limiter:      rate.NewLimiter(limit, burst),
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

// Get fetches path (relative to the base URL) and returns the raw body.
func (c *Client) Get(ctx context.Context, accessToken, path string) ([]byte, error) {
	if accessToken == "" {
		return nil, ErrUnauthorized
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveManagementRequest(0, time.Since(start))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	metrics.ObserveManagementRequest(resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		text := string(body)
		if err != nil {
			text = fmt.Sprintf("Error reading response body: %v", err)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: text}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrBodyTooLarge, c.maxBodyBytes, path)
	}

	return body, nil
}

// FetchSnapshot returns the raw configuration of one category for a project.
func (c *Client) FetchSnapshot(ctx context.Context, accessToken string, cat category.Category, projectRef string) ([]byte, error) {
	return c.Get(ctx, accessToken, cat.Path(projectRef))
}

type Project struct {
	ID             string `json:"id"`
	Ref            string `json:"ref,omitempty"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Region         string `json:"region"`
	Status         string `json:"status,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// ListProjects returns the projects the access token can see.
func (c *Client) ListProjects(ctx context.Context, accessToken string) ([]Project, error) {
	body, err := c.Get(ctx, accessToken, "/projects")
	if err != nil {
		return nil, err
	}

	var projects []Project
	if err := json.Unmarshal(body, &projects); err != nil {
		return nil, fmt.Errorf("error decoding response: %w", err)
	}
	return projects, nil
}

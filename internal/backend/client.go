// Package backend is the JSON client for the Resume Scanner REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgellow/resumescan/internal/log"
	"github.com/dgellow/resumescan/internal/urlutil"
	"golang.org/x/time/rate"
)

const (
	PathLogin          = "/auth/login"
	PathRegister       = "/auth/register"
	PathMe             = "/auth/me"
	PathGoogle         = "/auth/google"
	PathLinkedIn       = "/auth/linkedin"
	PathForgotPassword = "/auth/forgot-password"
	PathResetPassword  = "/auth/reset-password"
	PathProfile        = "/api/profile"

	maxResponseBytes = 1 << 20
)

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit caps outgoing requests. Bursts of reconciliation after
// cross-context changes are smoothed instead of hammering the backend.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	if _, err := urlutil.JoinPath(baseURL, PathMe); err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges email and password for a session token
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, PathLogin, "", creds, &resp); err != nil {
		return nil, err
	}
	return &resp, requireSuccess(resp.Success, resp.Message)
}

// Register creates an account. The backend does not issue a token here.
func (c *Client) Register(ctx context.Context, creds Credentials) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodPost, PathRegister, "", creds, &resp); err != nil {
		return nil, err
	}
	return &resp, requireSuccess(resp.Success, resp.Message)
}

// Me returns the user the token belongs to
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodGet, PathMe, token, nil, &resp); err != nil {
		return nil, err
	}
	if err := requireSuccess(resp.Success, resp.Message); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, &APIError{Kind: KindInvalidResponse, Status: http.StatusOK, Message: "failed to parse response: missing user"}
	}
	return resp.User, nil
}

// ExchangeGoogle trades a Google authorization code for a session
func (c *Client) ExchangeGoogle(ctx context.Context, ex CodeExchange) (*AuthResponse, error) {
	return c.exchange(ctx, PathGoogle, ex)
}

// ExchangeLinkedIn trades a LinkedIn authorization code for a session
func (c *Client) ExchangeLinkedIn(ctx context.Context, ex CodeExchange) (*AuthResponse, error) {
	return c.exchange(ctx, PathLinkedIn, ex)
}

func (c *Client) exchange(ctx context.Context, path string, ex CodeExchange) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, path, "", ex, &resp); err != nil {
		return nil, err
	}
	if err := requireSuccess(resp.Success, resp.Message); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, &APIError{Kind: KindInvalidResponse, Status: http.StatusOK, Message: "failed to parse response: missing token"}
	}
	return &resp, nil
}

// ForgotPassword asks the backend to email reset instructions
func (c *Client) ForgotPassword(ctx context.Context, email string) (*StatusResponse, error) {
	var resp StatusResponse
	body := map[string]string{"email": email}
	if err := c.do(ctx, http.MethodPost, PathForgotPassword, "", body, &resp); err != nil {
		return nil, err
	}
	return &resp, requireSuccess(resp.Success, resp.Message)
}

// ResetPassword sets a new password using a reset token
func (c *Client) ResetPassword(ctx context.Context, reset PasswordReset) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodPost, PathResetPassword, "", reset, &resp); err != nil {
		return nil, err
	}
	return &resp, requireSuccess(resp.Success, resp.Message)
}

// UpdateProfile saves profile fields for the token's user
func (c *Client) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, http.MethodPut, PathProfile, token, update, &resp); err != nil {
		return nil, err
	}
	return &resp, requireSuccess(resp.Success, resp.Message)
}

func requireSuccess(success bool, message string) error {
	if success {
		return nil
	}
	if message == "" {
		message = "request was not successful"
	}
	return &APIError{Kind: KindRejected, Status: http.StatusOK, Message: message}
}

// do sends one request and decodes the JSON body into out
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &APIError{Kind: KindNetwork, Message: "request cancelled", Err: err}
		}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.LogDebugWithFields("backend", "Request failed", map[string]any{
			"method": method,
			"path":   path,
			"error":  err.Error(),
		})
		return &APIError{Kind: KindNetwork, Message: "network error: unable to reach server", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &APIError{Kind: KindNetwork, Status: resp.StatusCode, Message: "network error: reading response", Err: err}
	}

	log.LogTraceWithFields("backend", "Response received", map[string]any{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	if resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return &APIError{Kind: KindInvalidResponse, Status: resp.StatusCode, Message: "failed to parse response: empty body"}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{
			Kind:    KindInvalidResponse,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("failed to parse response: %v", err),
			Err:     err,
		}
	}
	return nil
}

func statusError(status int, data []byte) *APIError {
	var kind Kind
	switch {
	case status == http.StatusUnauthorized:
		kind = KindUnauthorized
	case status >= 500:
		kind = KindServer
	default:
		kind = KindRejected
	}

	// Prefer the backend's own message; FastAPI validation errors use "detail"
	var payload struct {
		Message string `json:"message"`
		Detail  any    `json:"detail"`
	}
	message := ""
	if json.Unmarshal(data, &payload) == nil {
		message = payload.Message
		if message == "" {
			if s, ok := payload.Detail.(string); ok {
				message = s
			}
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &APIError{Kind: kind, Status: status, Message: message}
}

// Package logout ends a session locally and, where the provider allows it, remotely.
package logout

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dgellow/resumescan/internal/authmethod"
	"github.com/dgellow/resumescan/internal/browser"
	"github.com/dgellow/resumescan/internal/ioutil"
	"github.com/dgellow/resumescan/internal/log"
	"github.com/dgellow/resumescan/internal/storage"
)

const (
	// LinkedInInvalidateURL revokes a LinkedIn access token
	LinkedInInvalidateURL = "https://api.linkedin.com/uas/oauth/invalidateToken"
	// LinkedInManualLogoutURL is where the user finishes a LinkedIn logout themselves
	LinkedInManualLogoutURL = "https://www.linkedin.com/m/logout"
)

// Result describes how a logout went. Local state is cleared before the
// remote step runs, so LocalCleared is normally true even when Success is false.
type Result struct {
	Success            bool
	Message            string
	Error              string
	RequiresUserAction bool
	ManualLogoutURL    string
	LocalCleared       bool
	Method             authmethod.Method
}

// Coordinator runs provider-specific cleanup after clearing local state
type Coordinator struct {
	store         storage.Store
	tracker       *authmethod.Tracker
	httpClient    *http.Client
	invalidateURL string
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithHTTPClient replaces the client used for token invalidation
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Coordinator) {
		c.httpClient = hc
	}
}

// WithInvalidateURL points LinkedIn invalidation elsewhere, e.g. a test server
func WithInvalidateURL(u string) Option {
	return func(c *Coordinator) {
		c.invalidateURL = u
	}
}

// NewCoordinator creates a coordinator over store
func NewCoordinator(store storage.Store, tracker *authmethod.Tracker, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:         store,
		tracker:       tracker,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		invalidateURL: LinkedInInvalidateURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Logout clears every stored key, then runs the cleanup for the method that
// produced the session. It never returns a Go error.
func (c *Coordinator) Logout(ctx context.Context) Result {
	method := c.currentMethod(ctx)
	var linkedInToken, sessionToken string
	if method == authmethod.MethodLinkedIn {
		var err error
		if linkedInToken, err = storage.GetOptional(ctx, c.store, storage.KeyLinkedInToken); err != nil {
			log.LogWarnWithFields("logout", "Failed to read LinkedIn token before logout", map[string]any{
				"error": err.Error(),
			})
		}
		if sessionToken, err = storage.GetOptional(ctx, c.store, storage.KeyToken); err != nil {
			log.LogWarnWithFields("logout", "Failed to read session token before logout", map[string]any{
				"error": err.Error(),
			})
		}
	}

	cleared := c.clearLocal(ctx)

	log.LogInfoWithFields("logout", "Logging out", map[string]any{
		"method":        string(method),
		"local_cleared": cleared,
	})

	var result Result
	switch method {
	case authmethod.MethodGoogle:
		result = Result{Success: true, Message: "Signed out of Google session"}
	case authmethod.MethodLinkedIn:
		result = c.logoutLinkedIn(ctx, linkedInToken, sessionToken)
	case authmethod.MethodEmail:
		result = Result{Success: true, Message: "Signed out"}
	default:
		result = Result{Success: true, Message: "No active session"}
	}

	result.Method = method
	result.LocalCleared = cleared
	return result
}

// ForceLogout clears every stored key and nothing else. It never fails;
// removal errors are logged.
func (c *Coordinator) ForceLogout(ctx context.Context) Result {
	cleared := c.clearLocal(ctx)
	log.LogInfoWithFields("logout", "Forced logout", map[string]any{
		"local_cleared": cleared,
	})
	return Result{Success: true, Message: "Local session cleared", LocalCleared: cleared}
}

// OpenManualLogout opens LinkedIn's logout page next to the application
func (c *Coordinator) OpenManualLogout(nav browser.Navigator) error {
	if err := nav.OpenNewTab(LinkedInManualLogoutURL); err != nil {
		return fmt.Errorf("opening LinkedIn logout page: %w", err)
	}
	return nil
}

func (c *Coordinator) currentMethod(ctx context.Context) authmethod.Method {
	if rec := c.tracker.Get(ctx); rec != nil {
		return rec.Type
	}
	return c.tracker.Detect(ctx)
}

func (c *Coordinator) clearLocal(ctx context.Context) bool {
	if err := storage.RemoveAll(ctx, c.store, storage.AllKeys()...); err != nil {
		log.LogErrorWithFields("logout", "Failed to clear local auth data", map[string]any{
			"error": err.Error(),
		})
		return false
	}
	return true
}

// logoutLinkedIn revokes the LinkedIn token when it is LinkedIn's own. A
// token equal to the session token is the backend's credential kept only as a
// marker and is never sent to LinkedIn.
func (c *Coordinator) logoutLinkedIn(ctx context.Context, token, sessionToken string) Result {
	manual := Result{
		Success:            false,
		RequiresUserAction: true,
		ManualLogoutURL:    LinkedInManualLogoutURL,
		Message:            "You have been signed out locally. Sign out of LinkedIn to finish.",
	}

	if token == "" {
		manual.Error = "no LinkedIn token to invalidate"
		return manual
	}
	if token == sessionToken {
		log.LogDebugWithFields("logout", "No LinkedIn access token stored; skipping invalidation", nil)
		return manual
	}

	if err := c.invalidateLinkedIn(ctx, token); err != nil {
		log.LogWarnWithFields("logout", "LinkedIn token invalidation failed", map[string]any{
			"token": log.MaskToken(token),
			"error": err.Error(),
		})
		manual.Error = err.Error()
		return manual
	}

	return Result{Success: true, Message: "Signed out of LinkedIn"}
}

func (c *Coordinator) invalidateLinkedIn(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.invalidateURL, nil)
	if err != nil {
		return fmt.Errorf("creating invalidation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invalidation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("invalidation rejected with status %d: %s", resp.StatusCode, ioutil.Snippet(resp.Body, 512))
	}
	return nil
}

// Package session holds the signed-in user for one client context and
// exposes the sign-in and sign-out operations built on the lower layers.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/dgellow/resumescan/internal/authmethod"
	"github.com/dgellow/resumescan/internal/backend"
	"github.com/dgellow/resumescan/internal/idp"
	"github.com/dgellow/resumescan/internal/log"
	"github.com/dgellow/resumescan/internal/logout"
	"github.com/dgellow/resumescan/internal/metrics"
	"github.com/dgellow/resumescan/internal/storage"
	"golang.org/x/sync/singleflight"
)

// ErrNotSignedIn is returned by operations that need a session token
var ErrNotSignedIn = errors.New("not signed in")

// Backend is the subset of backend calls the session makes itself
type Backend interface {
	Register(ctx context.Context, creds backend.Credentials) (*backend.StatusResponse, error)
	Me(ctx context.Context, token string) (*backend.User, error)
	ForgotPassword(ctx context.Context, email string) (*backend.StatusResponse, error)
	ResetPassword(ctx context.Context, reset backend.PasswordReset) (*backend.StatusResponse, error)
	UpdateProfile(ctx context.Context, token string, update backend.ProfileUpdate) (*backend.StatusResponse, error)
}

// Logouter ends sessions
type Logouter interface {
	Logout(ctx context.Context) logout.Result
	ForceLogout(ctx context.Context) logout.Result
}

var _ Backend = (*backend.Client)(nil)
var _ Logouter = (*logout.Coordinator)(nil)

// Deps are the collaborators a Session is built from
type Deps struct {
	Store    storage.Store
	Tracker  *authmethod.Tracker
	Backend  Backend
	Email    idp.CredentialAdapter
	Google   idp.Adapter
	LinkedIn idp.RedirectAdapter
	Logout   Logouter
	// Metrics is optional
	Metrics metrics.Recorder
	// Now is optional and defaults to time.Now
	Now func() time.Time
	// EnforceExpiry clears auth data older than the tracker's TTL during Initialize
	EnforceExpiry bool
	// OnUserChange is called with a copy of the new user whenever it changes
	OnUserChange func(u *backend.User)
}

// Session is the current-user state of one client context. It is safe for
// concurrent use.
type Session struct {
	deps Deps

	mu       sync.RWMutex
	user     *backend.User
	loading  bool
	linkedIn idp.RedirectState
	// held is the token this session last wrote or confirmed with the backend
	held string

	refresh singleflight.Group
}

// New validates deps and creates a Session. Nothing is read until Initialize.
func New(deps Deps) (*Session, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("session: store is required")
	case deps.Tracker == nil:
		return nil, fmt.Errorf("session: tracker is required")
	case deps.Backend == nil:
		return nil, fmt.Errorf("session: backend is required")
	case deps.Email == nil || deps.Google == nil || deps.LinkedIn == nil:
		return nil, fmt.Errorf("session: all three sign-in adapters are required")
	case deps.Logout == nil:
		return nil, fmt.Errorf("session: logout coordinator is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Session{deps: deps}, nil
}

// User returns a copy of the current user, or nil
func (s *Session) User() *backend.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Loading reports whether Initialize is running
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LinkedInState is the redirect state computed by the last Initialize
func (s *Session) LinkedInState() idp.RedirectState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linkedIn
}

// AuthMethod returns the recorded auth method, or nil
func (s *Session) AuthMethod(ctx context.Context) *authmethod.Record {
	return s.deps.Tracker.Get(ctx)
}

func (s *Session) setUser(u *backend.User) {
	s.mu.Lock()
	changed := !sameUser(s.user, u)
	s.user = u
	s.mu.Unlock()

	if changed && s.deps.OnUserChange != nil {
		var cp *backend.User
		if u != nil {
			c := *u
			cp = &c
		}
		s.deps.OnUserChange(cp)
	}
}

func sameUser(a, b *backend.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return reflect.DeepEqual(*a, *b)
}

func (s *Session) setHeld(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = token
}

func (s *Session) heldToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.held
}

func (s *Session) setLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

func (s *Session) token(ctx context.Context) string {
	tok, err := storage.GetOptional(ctx, s.deps.Store, storage.KeyToken)
	if err != nil {
		log.LogWarnWithFields("session", "Failed to read session token", map[string]any{
			"error": err.Error(),
		})
		return ""
	}
	return tok
}

// cachedUser reads the persisted user. Malformed entries are ignored.
func (s *Session) cachedUser(ctx context.Context) *backend.User {
	raw, err := storage.GetOptional(ctx, s.deps.Store, storage.KeyUser)
	if err != nil || raw == "" {
		return nil
	}
	var u backend.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		log.LogWarnWithFields("session", "Ignoring malformed cached user", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	return &u
}

func (s *Session) persistUser(ctx context.Context, u *backend.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}
	if err := s.deps.Store.Set(ctx, storage.KeyUser, string(data)); err != nil {
		return fmt.Errorf("storing user: %w", err)
	}
	return nil
}

// purge discards the stored session without a user-initiated logout
func (s *Session) purge(ctx context.Context, reason string) {
	if err := storage.RemoveAll(ctx, s.deps.Store, storage.AllKeys()...); err != nil {
		log.LogErrorWithFields("session", "Failed to purge stored session", map[string]any{
			"reason": reason,
			"error":  err.Error(),
		})
	}
	s.setHeld("")
	s.setUser(nil)
	s.deps.Metrics.RecordPurge(reason)
	log.LogInfoWithFields("session", "Stored session discarded", map[string]any{
		"reason": reason,
	})
}

package session

import (
	"context"
	"fmt"

	"github.com/dgellow/resumescan/internal/authmethod"
	"github.com/dgellow/resumescan/internal/backend"
	"github.com/dgellow/resumescan/internal/emailutil"
	"github.com/dgellow/resumescan/internal/idp"
	"github.com/dgellow/resumescan/internal/log"
	"github.com/dgellow/resumescan/internal/logout"
	"github.com/dgellow/resumescan/internal/metrics"
	"github.com/dgellow/resumescan/internal/storage"
)

// Login signs in with email and password
func (s *Session) Login(ctx context.Context, email, password string) idp.Result {
	res := s.deps.Email.WithCredentials(email, password).SignIn(ctx)
	return s.complete(ctx, authmethod.MethodEmail, res)
}

// Register creates an account and signs into it. The backend's register
// endpoint issues no token, so a login follows.
func (s *Session) Register(ctx context.Context, email, password string) idp.Result {
	email = emailutil.Normalize(email)
	if !emailutil.Valid(email) {
		return idp.Result{Error: "invalid email address"}
	}
	if len(password) < minPasswordLength {
		return idp.Result{Error: fmt.Sprintf("password must be at least %d characters long", minPasswordLength)}
	}

	if _, err := s.deps.Backend.Register(ctx, backend.Credentials{Email: email, Password: password}); err != nil {
		s.deps.Metrics.RecordSignIn("register", metrics.OutcomeFailure)
		return idp.Result{Error: backend.Message(err)}
	}
	log.LogInfoWithFields("session", "Account registered", nil)
	return s.Login(ctx, email, password)
}

// GoogleLogin runs the Google flow to completion
func (s *Session) GoogleLogin(ctx context.Context) idp.Result {
	return s.complete(ctx, authmethod.MethodGoogle, s.deps.Google.SignIn(ctx))
}

// LinkedInLogin starts or resumes the LinkedIn flow. When the navigator
// observes the return trip itself, both phases run in this call; otherwise
// the result is Redirected and the flow resumes in a later Initialize.
func (s *Session) LinkedInLogin(ctx context.Context) idp.Result {
	res := s.deps.LinkedIn.SignIn(ctx)
	if res.Redirected {
		st := s.deps.LinkedIn.State(ctx)
		if st.Phase != idp.ReturnedWithCode && st.Phase != idp.Failed {
			s.deps.Metrics.RecordSignIn(string(authmethod.MethodLinkedIn), metrics.OutcomeRedirected)
			return res
		}
		res = s.deps.LinkedIn.SignIn(ctx)
	}

	res = s.complete(ctx, authmethod.MethodLinkedIn, res)
	s.mu.Lock()
	s.linkedIn = s.deps.LinkedIn.State(ctx)
	s.mu.Unlock()
	return res
}

// complete persists a successful sign-in in order: token, auxiliary token,
// auth method, cached user, then in-memory user. If any write fails the
// partial state is removed so a reload never sees half a session.
func (s *Session) complete(ctx context.Context, method authmethod.Method, res idp.Result) idp.Result {
	if !res.Success {
		s.deps.Metrics.RecordSignIn(string(method), metrics.OutcomeFailure)
		return res
	}

	user := res.User
	if user == nil {
		u, err := s.deps.Backend.Me(ctx, res.Token)
		if err != nil {
			s.deps.Metrics.RecordSignIn(string(method), metrics.OutcomeFailure)
			return idp.Result{Error: fmt.Sprintf("%v: %s", errNoUser, backend.Message(err))}
		}
		user = u
	}

	// Set before the writes so watchers do not refetch this session's own token
	s.setHeld(res.Token)
	if err := s.persistSignIn(ctx, method, res, user); err != nil {
		s.setHeld("")
		log.LogErrorWithFields("session", "Failed to persist sign-in", map[string]any{
			"method": string(method),
			"error":  err.Error(),
		})
		if rmErr := storage.RemoveAll(ctx, s.deps.Store, storage.KeyToken, storage.KeyGoogleToken,
			storage.KeyLinkedInToken, storage.KeyAuthMethod, storage.KeyUser); rmErr != nil {
			log.LogErrorWithFields("session", "Failed to roll back partial sign-in", map[string]any{
				"error": rmErr.Error(),
			})
		}
		s.deps.Metrics.RecordSignIn(string(method), metrics.OutcomeFailure)
		return idp.Result{Error: fmt.Sprintf("failed to save session: %v", err)}
	}

	s.setUser(user)
	s.deps.Metrics.RecordSignIn(string(method), metrics.OutcomeSuccess)
	log.LogInfoWithFields("session", "Signed in", map[string]any{
		"method":  string(method),
		"user_id": user.ID,
	})
	log.LogDebugWithFields("session", "Signed-in user", map[string]any{
		"email": user.Email,
	})

	res.User = user
	return res
}

func (s *Session) persistSignIn(ctx context.Context, method authmethod.Method, res idp.Result, user *backend.User) error {
	if err := s.deps.Store.Set(ctx, storage.KeyToken, res.Token); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}

	// Artifacts of other providers would misattribute the session on detection
	var auxKey storage.Key
	var stale []storage.Key
	switch method {
	case authmethod.MethodGoogle:
		auxKey = storage.KeyGoogleToken
		stale = []storage.Key{storage.KeyLinkedInToken, storage.KeyLinkedInOAuthState}
	case authmethod.MethodLinkedIn:
		auxKey = storage.KeyLinkedInToken
		stale = []storage.Key{storage.KeyGoogleToken, storage.KeyGoogleOAuthState}
	default:
		stale = []storage.Key{storage.KeyGoogleToken, storage.KeyLinkedInToken,
			storage.KeyGoogleOAuthState, storage.KeyLinkedInOAuthState}
	}
	if auxKey != "" && res.ProviderToken != "" {
		if err := s.deps.Store.Set(ctx, auxKey, res.ProviderToken); err != nil {
			return fmt.Errorf("storing provider token: %w", err)
		}
	}
	if err := storage.RemoveAll(ctx, s.deps.Store, stale...); err != nil {
		log.LogWarnWithFields("session", "Failed to clear other providers' artifacts", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.deps.Tracker.Set(ctx, method); err != nil {
		return err
	}
	log.LogDebugWithFields("session", "Stored sign-in", map[string]any{
		"method": string(method),
		"token":  log.MaskToken(res.Token),
	})
	return s.persistUser(ctx, user)
}

// Logout ends the session. The in-memory user is cleared whatever happens
// remotely; if the coordinator could not clear the store, a forced clear runs.
func (s *Session) Logout(ctx context.Context) logout.Result {
	res := s.deps.Logout.Logout(ctx)
	if !res.LocalCleared {
		forced := s.deps.Logout.ForceLogout(ctx)
		res.LocalCleared = forced.LocalCleared
	}
	s.setHeld("")
	s.setUser(nil)
	s.mu.Lock()
	s.linkedIn = idp.RedirectState{Phase: idp.NotStarted}
	s.mu.Unlock()

	outcome := metrics.OutcomeSuccess
	switch {
	case res.RequiresUserAction:
		outcome = metrics.OutcomeUserAction
	case !res.Success:
		outcome = metrics.OutcomeFailure
	}
	s.deps.Metrics.RecordLogout(string(res.Method), outcome)
	return res
}

// UpdateUser replaces the in-memory and cached user
func (s *Session) UpdateUser(ctx context.Context, u *backend.User) error {
	if u == nil {
		return fmt.Errorf("user is required")
	}
	cp := *u
	if err := s.persistUser(ctx, &cp); err != nil {
		return err
	}
	s.setUser(&cp)
	return nil
}

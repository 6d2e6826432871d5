package session

import (
	"context"
	"errors"
	"time"

	"github.com/dgellow/resumescan/internal/backend"
	"github.com/dgellow/resumescan/internal/idp"
	"github.com/dgellow/resumescan/internal/log"
	"github.com/dgellow/resumescan/internal/storage"
	"github.com/golang-jwt/jwt/v5"
)

// Initialize restores the session from the store and confirms it with the
// backend. A returned error means the backend could not confirm the session
// for a reason other than rejecting the token; the stored token and cached
// user are kept and the session remains usable.
func (s *Session) Initialize(ctx context.Context) error {
	s.setLoading(true)
	defer s.setLoading(false)

	if err := s.deps.Tracker.Initialize(ctx); err != nil {
		log.LogWarnWithFields("session", "Failed to reconcile auth method", map[string]any{
			"error": err.Error(),
		})
	}

	if s.deps.EnforceExpiry {
		cleared, err := s.deps.Tracker.ClearExpired(ctx)
		if err != nil {
			log.LogWarnWithFields("session", "Failed to clear expired auth data", map[string]any{
				"error": err.Error(),
			})
		}
		if cleared {
			s.setUser(nil)
			s.deps.Metrics.RecordPurge("expired")
		}
	}

	if u := s.cachedUser(ctx); u != nil {
		s.setUser(u)
	}

	st := s.deps.LinkedIn.State(ctx)
	s.mu.Lock()
	s.linkedIn = st
	s.mu.Unlock()

	switch st.Phase {
	case idp.ReturnedWithCode, idp.Failed:
		log.LogDebugWithFields("session", "Resuming LinkedIn sign-in", map[string]any{
			"phase": st.Phase.String(),
		})
		res := s.LinkedInLogin(ctx)
		if res.Success {
			return nil
		}
	}

	token := s.token(ctx)
	if token == "" {
		if s.User() != nil {
			// A cached user without a token is a leftover from a partial clear
			if err := s.deps.Store.Remove(ctx, storage.KeyUser); err != nil {
				log.LogWarnWithFields("session", "Failed to remove cached user without token", map[string]any{
					"error": err.Error(),
				})
			}
			s.setUser(nil)
		}
		return nil
	}

	if tokenExpired(token, s.deps.Now()) {
		s.purge(ctx, "token_expired")
		return nil
	}

	_, err := s.Refresh(ctx)
	if err == nil || backend.IsUnauthorized(err) {
		return nil
	}
	log.LogWarnWithFields("session", "Could not confirm session, keeping stored credentials", map[string]any{
		"kind":  string(backend.KindOf(err)),
		"error": err.Error(),
	})
	return err
}

// Refresh fetches the current user from the backend. Concurrent callers share
// one request. An Unauthorized answer purges the stored session; any other
// failure leaves it untouched.
func (s *Session) Refresh(ctx context.Context) (*backend.User, error) {
	v, err, _ := s.refresh.Do("me", func() (any, error) {
		token := s.token(ctx)
		if token == "" {
			return nil, ErrNotSignedIn
		}

		u, err := s.deps.Backend.Me(ctx, token)
		if err != nil {
			if backend.IsUnauthorized(err) {
				s.purge(ctx, "unauthorized")
			}
			return nil, err
		}

		if err := s.persistUser(ctx, u); err != nil {
			log.LogWarnWithFields("session", "Failed to cache user", map[string]any{
				"error": err.Error(),
			})
		}
		s.setHeld(token)
		s.setUser(u)
		return u, nil
	})
	if err != nil {
		return nil, err
	}
	u := *(v.(*backend.User))
	return &u, nil
}

// tokenExpired reports whether token is a JWT whose exp claim has passed.
// The signature is not checked; the backend remains the authority and
// opaque tokens are never considered expired.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}

var errNoUser = errors.New("backend returned no user")

package idp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgellow/resumescan/internal/authmethod"
	"github.com/dgellow/resumescan/internal/backend"
	"github.com/dgellow/resumescan/internal/crypto"
	"github.com/dgellow/resumescan/internal/log"
	"github.com/dgellow/resumescan/internal/storage"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// GoogleAdapter runs Google's authorization-code flow and hands the code to
// the backend. The code never leaves the backend exchange; no provider tokens
// are requested client-side.
type GoogleAdapter struct {
	clientID    string
	redirectURI string
	codes       CodeSource
	backend     GoogleExchanger
	store       storage.Store

	initOnce sync.Once
	config   *oauth2.Config
	initErr  error
}

var _ Adapter = (*GoogleAdapter)(nil)

// NewGoogleAdapter creates the adapter. The OAuth client is built on first use.
func NewGoogleAdapter(clientID, redirectURI string, codes CodeSource, b GoogleExchanger, store storage.Store) *GoogleAdapter {
	return &GoogleAdapter{
		clientID:    clientID,
		redirectURI: redirectURI,
		codes:       codes,
		backend:     b,
		store:       store,
	}
}

func (a *GoogleAdapter) Type() authmethod.Method {
	return authmethod.MethodGoogle
}

// client builds the OAuth config once per process. A configuration error is
// remembered and returned on every later call.
func (a *GoogleAdapter) client() (*oauth2.Config, error) {
	a.initOnce.Do(func() {
		if a.clientID == "" {
			a.initErr = ErrMissingClientID
			return
		}
		if a.codes == nil {
			a.initErr = errors.New("no authorization code source configured")
			return
		}
		a.config = &oauth2.Config{
			ClientID:    a.clientID,
			RedirectURL: a.redirectURI,
			Scopes:      []string{"openid", "email", "profile"},
			Endpoint:    google.Endpoint,
		}
		log.LogDebugWithFields("idp", "Google OAuth client initialized", map[string]any{
			"redirect_uri": a.redirectURI,
		})
	})
	return a.config, a.initErr
}

// AuthURL returns the consent URL for state
func (a *GoogleAdapter) AuthURL(state string) (string, error) {
	cfg, err := a.client()
	if err != nil {
		return "", err
	}
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

func (a *GoogleAdapter) SignIn(ctx context.Context) Result {
	state, err := crypto.NewState()
	if err != nil {
		return failure(fmt.Sprintf("failed to generate state: %v", err))
	}
	authURL, err := a.AuthURL(state)
	if err != nil {
		log.LogErrorWithFields("idp", "Google sign-in is not configured", map[string]any{
			"error": err.Error(),
		})
		return failure(fmt.Sprintf("Google sign-in unavailable: %v", err))
	}

	if err := a.store.Set(ctx, storage.KeyGoogleOAuthState, state); err != nil {
		return failure(fmt.Sprintf("failed to record sign-in state: %v", err))
	}

	code, returnedState, err := a.codes.AuthorizationCode(ctx, authURL)
	if err != nil {
		a.abandon(ctx)
		return failure(fmt.Sprintf("Google sign-in failed: %v", err))
	}
	if returnedState != state {
		a.abandon(ctx)
		return failure("Google sign-in failed: state mismatch")
	}

	resp, err := a.backend.ExchangeGoogle(ctx, backend.CodeExchange{Code: code, RedirectURI: a.redirectURI})
	result := fromResponse(resp, err, true)
	if !result.Success {
		a.abandon(ctx)
		log.LogWarnWithFields("idp", "Google code exchange failed", map[string]any{
			"error": result.Error,
			"kind":  string(backend.KindOf(err)),
		})
	}
	return result
}

// abandon drops the state marker so a failed attempt does not look like a
// Google session to method detection
func (a *GoogleAdapter) abandon(ctx context.Context) {
	if err := a.store.Remove(ctx, storage.KeyGoogleOAuthState); err != nil {
		log.LogWarnWithFields("idp", "Failed to clear Google state marker", map[string]any{
			"error": err.Error(),
		})
	}
}

package idp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/dgellow/resumescan/internal/authmethod"
	"github.com/dgellow/resumescan/internal/backend"
	"github.com/dgellow/resumescan/internal/browser"
	"github.com/dgellow/resumescan/internal/crypto"
	"github.com/dgellow/resumescan/internal/log"
	"github.com/dgellow/resumescan/internal/storage"
	"github.com/dgellow/resumescan/internal/urlutil"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"
)

// RedirectPhase is where a redirect-based sign-in stands
type RedirectPhase int

const (
	NotStarted RedirectPhase = iota
	AwaitingProviderRedirect
	ReturnedWithCode
	Failed
)

func (p RedirectPhase) String() string {
	switch p {
	case NotStarted:
		return "not_started"
	case AwaitingProviderRedirect:
		return "awaiting_provider_redirect"
	case ReturnedWithCode:
		return "returned_with_code"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("RedirectPhase(%d)", int(p))
	}
}

// RedirectState is computed from the visible URL. Code and State are set for
// ReturnedWithCode, Reason for Failed.
type RedirectState struct {
	Phase  RedirectPhase
	Code   string
	State  string
	Reason string
}

// ParseRedirectState inspects rawURL. pending reports whether a sign-in was
// started and has not completed.
func ParseRedirectState(rawURL string, pending bool) RedirectState {
	u, err := url.Parse(rawURL)
	if err != nil {
		return RedirectState{Phase: Failed, Reason: "invalid return URL"}
	}
	q := u.Query()

	if e := q.Get("error"); e != "" {
		reason := q.Get("error_description")
		if reason == "" {
			reason = e
		}
		return RedirectState{Phase: Failed, Reason: reason}
	}

	code, state := q.Get("code"), q.Get("state")
	switch {
	case code != "" && state != "":
		return RedirectState{Phase: ReturnedWithCode, Code: code, State: state}
	case state != "":
		return RedirectState{Phase: Failed, Reason: "No authorization code received from LinkedIn"}
	case code != "":
		return RedirectState{Phase: Failed, Reason: "No state received from LinkedIn"}
	case pending:
		return RedirectState{Phase: AwaitingProviderRedirect}
	default:
		return RedirectState{Phase: NotStarted}
	}
}

// LinkedInAdapter runs LinkedIn's two-phase redirect flow. Phase one sends
// the user away; phase two runs when the visible URL carries the code.
type LinkedInAdapter struct {
	clientID string
	nav      browser.Navigator
	backend  LinkedInExchanger
	store    storage.Store
}

var _ RedirectAdapter = (*LinkedInAdapter)(nil)

// NewLinkedInAdapter creates the adapter
func NewLinkedInAdapter(clientID string, nav browser.Navigator, b LinkedInExchanger, store storage.Store) *LinkedInAdapter {
	return &LinkedInAdapter{
		clientID: clientID,
		nav:      nav,
		backend:  b,
		store:    store,
	}
}

func (a *LinkedInAdapter) Type() authmethod.Method {
	return authmethod.MethodLinkedIn
}

func (a *LinkedInAdapter) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    a.clientID,
		RedirectURL: a.nav.Origin(),
		Scopes:      []string{"openid", "profile", "email"},
		Endpoint:    linkedin.Endpoint,
	}
}

// State returns the flow's current phase
func (a *LinkedInAdapter) State(ctx context.Context) RedirectState {
	return ParseRedirectState(a.nav.CurrentURL(), a.pending(ctx))
}

// pending reports whether a redirect was started and no session exists yet
func (a *LinkedInAdapter) pending(ctx context.Context) bool {
	return storage.Has(ctx, a.store, storage.KeyLinkedInOAuthState) &&
		!storage.Has(ctx, a.store, storage.KeyToken)
}

func (a *LinkedInAdapter) SignIn(ctx context.Context) Result {
	st := a.State(ctx)
	switch st.Phase {
	case ReturnedWithCode:
		return a.complete(ctx, st)
	case Failed:
		a.nav.ReplaceURL(urlutil.StripQuery(a.nav.CurrentURL()))
		log.LogWarnWithFields("idp", "LinkedIn sign-in failed on return", map[string]any{
			"reason": st.Reason,
		})
		return failure(st.Reason)
	default:
		return a.begin(ctx)
	}
}

func (a *LinkedInAdapter) begin(ctx context.Context) Result {
	if a.clientID == "" {
		log.LogErrorWithFields("idp", "LinkedIn sign-in is not configured", nil)
		return failure(fmt.Sprintf("LinkedIn sign-in unavailable: %v", ErrMissingClientID))
	}

	state, err := crypto.NewState()
	if err != nil {
		return failure(fmt.Sprintf("failed to generate state: %v", err))
	}
	if err := a.store.Set(ctx, storage.KeyLinkedInOAuthState, state); err != nil {
		return failure(fmt.Sprintf("failed to record sign-in state: %v", err))
	}

	authURL := a.config().AuthCodeURL(state)
	log.LogInfoWithFields("idp", "Redirecting to LinkedIn", map[string]any{
		"redirect_uri": a.nav.Origin(),
	})
	if err := a.nav.Redirect(ctx, authURL); err != nil {
		return failure(fmt.Sprintf("LinkedIn redirect failed: %v", err))
	}
	return Result{Redirected: true}
}

func (a *LinkedInAdapter) complete(ctx context.Context, st RedirectState) Result {
	// The code is single-use; clear it from the visible URL before anything
	// else so a re-render cannot submit it twice.
	a.nav.ReplaceURL(urlutil.StripQuery(a.nav.CurrentURL()))

	expected, err := storage.GetOptional(ctx, a.store, storage.KeyLinkedInOAuthState)
	if err != nil {
		log.LogWarnWithFields("idp", "Failed to read LinkedIn state marker", map[string]any{
			"error": err.Error(),
		})
	}
	if expected != "" && expected != st.State {
		log.LogWarnWithFields("idp", "LinkedIn state mismatch", nil)
		return failure("LinkedIn sign-in failed: state mismatch")
	}
	if expected == "" {
		// Keep the marker so method detection can still attribute the session
		if err := a.store.Set(ctx, storage.KeyLinkedInOAuthState, st.State); err != nil {
			log.LogWarnWithFields("idp", "Failed to record LinkedIn state marker", map[string]any{
				"error": err.Error(),
			})
		}
	}

	resp, err := a.backend.ExchangeLinkedIn(ctx, backend.CodeExchange{
		Code:        st.Code,
		RedirectURI: a.nav.Origin(),
	})
	result := fromResponse(resp, err, true)
	if !result.Success {
		log.LogWarnWithFields("idp", "LinkedIn code exchange failed", map[string]any{
			"error": result.Error,
			"kind":  string(backend.KindOf(err)),
		})
	}
	return result
}

// Package idp adapts each sign-in provider to a common result shape.
package idp

import (
	"context"
	"errors"

	"github.com/dgellow/resumescan/internal/authmethod"
	"github.com/dgellow/resumescan/internal/backend"
)

// ErrMissingClientID is a configuration error: the provider cannot be used at all
var ErrMissingClientID = errors.New("OAuth client ID is not configured")

// Result is the normalized outcome of a sign-in attempt. Adapters never
// return Go errors; every failure is reported through Error.
type Result struct {
	Success bool
	Token   string
	// ProviderToken is the auxiliary copy kept for logout-time detection and revocation
	ProviderToken string
	User          *backend.User
	Error         string
	// Redirected is set when the user was sent to the provider and the flow
	// continues when they return
	Redirected bool
}

// Adapter is one sign-in provider
type Adapter interface {
	Type() authmethod.Method
	SignIn(ctx context.Context) Result
}

// CredentialAdapter is an adapter that signs in with an email and password
type CredentialAdapter interface {
	Adapter
	WithCredentials(email, password string) Adapter
}

// RedirectAdapter is an adapter whose flow spans a full-page redirect
type RedirectAdapter interface {
	Adapter
	State(ctx context.Context) RedirectState
}

// CodeSource obtains an authorization code from the user, e.g. through a
// browser popup or a loopback redirect.
type CodeSource interface {
	AuthorizationCode(ctx context.Context, authURL string) (code, state string, err error)
}

// PasswordAuthenticator is the backend call the email adapter needs
type PasswordAuthenticator interface {
	Login(ctx context.Context, creds backend.Credentials) (*backend.AuthResponse, error)
}

// GoogleExchanger trades a Google code for a session
type GoogleExchanger interface {
	ExchangeGoogle(ctx context.Context, ex backend.CodeExchange) (*backend.AuthResponse, error)
}

// LinkedInExchanger trades a LinkedIn code for a session
type LinkedInExchanger interface {
	ExchangeLinkedIn(ctx context.Context, ex backend.CodeExchange) (*backend.AuthResponse, error)
}

func failure(msg string) Result {
	return Result{Error: msg}
}

// fromResponse converts a backend auth response. auxiliary controls whether
// a provider token copy is carried for later logout. Without a provider_token
// the session token stands in; logout recognises it and does not revoke it.
func fromResponse(resp *backend.AuthResponse, err error, auxiliary bool) Result {
	if err != nil {
		return failure(backend.Message(err))
	}
	if resp == nil || resp.Token == "" {
		return failure("failed to parse response: missing token")
	}
	r := Result{
		Success: true,
		Token:   resp.Token,
		User:    resp.User,
	}
	if auxiliary {
		r.ProviderToken = resp.ProviderToken
		if r.ProviderToken == "" {
			r.ProviderToken = resp.Token
		}
	}
	return r
}

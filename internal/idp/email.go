package idp

import (
	"context"

	"github.com/dgellow/resumescan/internal/authmethod"
	"github.com/dgellow/resumescan/internal/backend"
	"github.com/dgellow/resumescan/internal/emailutil"
	"github.com/dgellow/resumescan/internal/log"
)

// EmailAdapter signs in with a single password POST
type EmailAdapter struct {
	backend  PasswordAuthenticator
	email    string
	password string
}

var _ CredentialAdapter = (*EmailAdapter)(nil)

// NewEmailAdapter creates an adapter without credentials
func NewEmailAdapter(b PasswordAuthenticator) *EmailAdapter {
	return &EmailAdapter{backend: b}
}

func (a *EmailAdapter) Type() authmethod.Method {
	return authmethod.MethodEmail
}

// WithCredentials returns a copy of the adapter bound to email and password
func (a *EmailAdapter) WithCredentials(email, password string) Adapter {
	return &EmailAdapter{
		backend:  a.backend,
		email:    emailutil.Normalize(email),
		password: password,
	}
}

func (a *EmailAdapter) SignIn(ctx context.Context) Result {
	if a.email == "" || a.password == "" {
		return failure("email and password are required")
	}
	if !emailutil.Valid(a.email) {
		return failure("invalid email address")
	}

	resp, err := a.backend.Login(ctx, backend.Credentials{Email: a.email, Password: a.password})
	result := fromResponse(resp, err, false)
	if !result.Success {
		log.LogDebugWithFields("idp", "Email sign-in failed", map[string]any{
			"email": a.email,
			"error": result.Error,
		})
	}
	return result
}

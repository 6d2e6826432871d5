package idp

import (
	"fmt"

	"github.com/dgellow/resumescan/internal/authmethod"
	"github.com/dgellow/resumescan/internal/backend"
	"github.com/dgellow/resumescan/internal/browser"
	"github.com/dgellow/resumescan/internal/storage"
)

// Backend is every backend call the adapters make
type Backend interface {
	PasswordAuthenticator
	GoogleExchanger
	LinkedInExchanger
}

var _ Backend = (*backend.Client)(nil)

// Options carries what the adapters are built from
type Options struct {
	GoogleClientID   string
	LinkedInClientID string
	Backend          Backend
	Store            storage.Store
	Navigator        browser.Navigator
	Codes            CodeSource
}

// NewAdapter creates the adapter for method
func NewAdapter(method authmethod.Method, opts Options) (Adapter, error) {
	switch method {
	case authmethod.MethodEmail:
		return NewEmailAdapter(opts.Backend), nil

	case authmethod.MethodGoogle:
		if opts.Navigator == nil {
			return nil, fmt.Errorf("google adapter requires a navigator")
		}
		return NewGoogleAdapter(
			opts.GoogleClientID,
			opts.Navigator.Origin(),
			opts.Codes,
			opts.Backend,
			opts.Store,
		), nil

	case authmethod.MethodLinkedIn:
		if opts.Navigator == nil {
			return nil, fmt.Errorf("linkedin adapter requires a navigator")
		}
		return NewLinkedInAdapter(
			opts.LinkedInClientID,
			opts.Navigator,
			opts.Backend,
			opts.Store,
		), nil

	default:
		return nil, fmt.Errorf("unknown auth method: %s", method)
	}
}

// Package browser abstracts the user-visible location a sign-in flow runs in.
package browser

import (
	"context"
	"net/url"
	"sync"
)

// Navigator is the client context's view of the browser: where it is, and how
// to send the user elsewhere.
type Navigator interface {
	// CurrentURL is the visible URL, including any query string
	CurrentURL() string
	// Origin is scheme://host[:port] of the application
	Origin() string
	// Redirect sends the user to target. Implementations that can observe
	// the return trip update CurrentURL before returning.
	Redirect(ctx context.Context, target string) error
	// ReplaceURL rewrites the visible URL without navigating
	ReplaceURL(u string)
	// OpenNewTab shows target alongside the application
	OpenNewTab(target string) error
}

// Memory is an in-process Navigator for tests and embedding programs
type Memory struct {
	mu         sync.Mutex
	origin     string
	current    string
	redirects  []string
	opened     []string
	onRedirect func(target string) string
}

var _ Navigator = (*Memory)(nil)

// NewMemory creates a navigator positioned at currentURL
func NewMemory(currentURL string) *Memory {
	origin := currentURL
	if u, err := url.Parse(currentURL); err == nil && u.Scheme != "" {
		origin = u.Scheme + "://" + u.Host
	}
	return &Memory{origin: origin, current: currentURL}
}

// OnRedirect installs a hook that simulates the provider sending the user
// back. The hook's return value becomes the current URL; "" leaves it unchanged.
func (m *Memory) OnRedirect(fn func(target string) string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRedirect = fn
}

func (m *Memory) CurrentURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Memory) Origin() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.origin
}

func (m *Memory) Redirect(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.redirects = append(m.redirects, target)
	hook := m.onRedirect
	m.mu.Unlock()

	if hook != nil {
		if next := hook(target); next != "" {
			m.ReplaceURL(next)
		}
	}
	return nil
}

func (m *Memory) ReplaceURL(u string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = u
}

func (m *Memory) OpenNewTab(target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, target)
	return nil
}

// Redirects returns every redirect target so far
func (m *Memory) Redirects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.redirects...)
}

// Opened returns every URL opened in a new tab so far
func (m *Memory) Opened() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.opened...)
}

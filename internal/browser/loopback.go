package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dgellow/resumescan/internal/log"
	"github.com/dgellow/resumescan/internal/urlutil"
	"github.com/go-chi/chi/v5"
	pkgbrowser "github.com/pkg/browser"
	"golang.org/x/sync/errgroup"
)

const callbackPage = `<!doctype html>
<html><head><title>Resume Scanner</title></head>
<body><p>Sign-in complete. You can close this window and return to the terminal.</p></body></html>`

// Loopback drives provider redirects through the system browser and a
// short-lived HTTP listener on the redirect origin.
type Loopback struct {
	origin       string
	listenAddr   string
	callbackPath string
	opener       func(string) error

	mu      sync.Mutex
	current string
}

var _ Navigator = (*Loopback)(nil)

// LoopbackOption configures a Loopback
type LoopbackOption func(*Loopback)

// WithOpener replaces the system browser launcher
func WithOpener(open func(string) error) LoopbackOption {
	return func(l *Loopback) {
		l.opener = open
	}
}

// NewLoopback creates a navigator listening on redirectOrigin, which must be
// an http URL on a loopback host, e.g. http://localhost:3000.
func NewLoopback(redirectOrigin string, opts ...LoopbackOption) (*Loopback, error) {
	u, err := url.Parse(redirectOrigin)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect origin: %w", err)
	}
	if u.Scheme != "http" {
		return nil, fmt.Errorf("redirect origin must use http, got %q", u.Scheme)
	}
	if !isLoopbackHost(u.Hostname()) {
		return nil, fmt.Errorf("redirect origin must be a loopback address, got %q", u.Hostname())
	}

	callbackPath := u.Path
	if callbackPath == "" {
		callbackPath = "/"
	}
	origin := u.Scheme + "://" + u.Host

	listenAddr := u.Host
	if u.Port() == "" {
		listenAddr = net.JoinHostPort(u.Hostname(), "80")
	}

	l := &Loopback{
		origin:       origin,
		listenAddr:   listenAddr,
		callbackPath: callbackPath,
		opener:       pkgbrowser.OpenURL,
		current:      origin,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func isLoopbackHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (l *Loopback) CurrentURL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *Loopback) Origin() string {
	return l.origin
}

func (l *Loopback) ReplaceURL(u string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = u
}

func (l *Loopback) OpenNewTab(target string) error {
	if err := l.opener(target); err != nil {
		return fmt.Errorf("opening browser: %w", err)
	}
	return nil
}

// Redirect opens target in the system browser and blocks until the provider
// sends the user back to the callback path, or ctx ends.
func (l *Loopback) Redirect(ctx context.Context, target string) error {
	ln, err := net.Listen("tcp", l.listenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", l.listenAddr, err)
	}

	returned := make(chan string, 1)
	r := chi.NewRouter()
	r.Use(recoverPanics, logRequests)
	r.Get(l.callbackPath, func(w http.ResponseWriter, req *http.Request) {
		select {
		case returned <- l.origin + req.URL.RequestURI():
		default:
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(callbackPage))
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("callback server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		log.LogInfoWithFields("browser", "Opening browser for sign-in", map[string]any{
			"callback": l.origin + l.callbackPath,
		})
		if err := l.opener(target); err != nil {
			return fmt.Errorf("opening browser: %w", err)
		}

		select {
		case u := <-returned:
			l.ReplaceURL(u)
			log.LogDebugWithFields("browser", "Provider redirected back", nil)
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})
	return g.Wait()
}

// AuthorizationCode sends the user to authURL and returns the code and state
// the provider redirects back with. The query is stripped from the visible URL.
func (l *Loopback) AuthorizationCode(ctx context.Context, authURL string) (code, state string, err error) {
	if err := l.Redirect(ctx, authURL); err != nil {
		return "", "", err
	}

	current := l.CurrentURL()
	u, err := url.Parse(current)
	if err != nil {
		return "", "", fmt.Errorf("parsing callback URL: %w", err)
	}
	l.ReplaceURL(urlutil.StripQuery(current))

	q := u.Query()
	if e := q.Get("error"); e != "" {
		desc := q.Get("error_description")
		if desc == "" {
			desc = e
		}
		return "", "", fmt.Errorf("authorization denied: %s", desc)
	}
	code = q.Get("code")
	if code == "" {
		return "", "", fmt.Errorf("no authorization code in callback")
	}
	return code, q.Get("state"), nil
}

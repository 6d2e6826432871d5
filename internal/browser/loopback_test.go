package browser

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeOrigin(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr
}

// simulateProvider returns an opener that plays the provider: it calls the
// callback with query once the listener is up.
func simulateProvider(t *testing.T, callback, query string) func(string) error {
	return func(string) error {
		go func() {
			client := &http.Client{Timeout: time.Second}
			for i := 0; i < 50; i++ {
				resp, err := client.Get(callback + query)
				if err == nil {
					resp.Body.Close()
					return
				}
				time.Sleep(20 * time.Millisecond)
			}
			t.Errorf("callback %s never became reachable", callback)
		}()
		return nil
	}
}

func TestNewLoopbackValidation(t *testing.T) {
	_, err := NewLoopback("https://localhost:3000")
	assert.ErrorContains(t, err, "must use http")

	_, err = NewLoopback("http://example.com:3000")
	assert.ErrorContains(t, err, "loopback")

	l, err := NewLoopback("http://127.0.0.1:3000/callback")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:3000", l.Origin())
	assert.Equal(t, "http://127.0.0.1:3000", l.CurrentURL())
}

func TestLoopbackRedirectCapturesReturn(t *testing.T) {
	origin := freeOrigin(t)
	l, err := NewLoopback(origin, WithOpener(simulateProvider(t, origin+"/", "?code=ABC123&state=xyz")))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, l.Redirect(ctx, "https://www.linkedin.com/oauth/v2/authorization"))
	assert.Equal(t, origin+"/?code=ABC123&state=xyz", l.CurrentURL())
}

func TestLoopbackAuthorizationCode(t *testing.T) {
	origin := freeOrigin(t)
	l, err := NewLoopback(origin, WithOpener(simulateProvider(t, origin+"/", "?code=g-code&state=s1")))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	code, state, err := l.AuthorizationCode(ctx, "https://accounts.google.com/o/oauth2/auth")
	require.NoError(t, err)
	assert.Equal(t, "g-code", code)
	assert.Equal(t, "s1", state)
	assert.Equal(t, origin+"/", l.CurrentURL())
}

func TestLoopbackAuthorizationDenied(t *testing.T) {
	origin := freeOrigin(t)
	l, err := NewLoopback(origin, WithOpener(simulateProvider(t, origin+"/", "?error=access_denied")))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err = l.AuthorizationCode(ctx, "https://accounts.google.com/o/oauth2/auth")
	assert.ErrorContains(t, err, "access_denied")
}

func TestLoopbackRedirectTimeout(t *testing.T) {
	origin := freeOrigin(t)
	l, err := NewLoopback(origin, WithOpener(func(string) error { return nil }))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = l.Redirect(ctx, "https://provider.example")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoopbackOpenerFailure(t *testing.T) {
	origin := freeOrigin(t)
	l, err := NewLoopback(origin, WithOpener(func(string) error { return fmt.Errorf("no display") }))
	require.NoError(t, err)

	err = l.Redirect(context.Background(), "https://provider.example")
	assert.ErrorContains(t, err, "no display")
	assert.ErrorContains(t, l.OpenNewTab("https://www.linkedin.com/m/logout"), "no display")
}

func TestCallbackMiddleware(t *testing.T) {
	t.Run("records status", func(t *testing.T) {
		var got int
		h := logRequests(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			w.WriteHeader(http.StatusOK)
			got = w.(*statusRecorder).status
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/callback?code=secret", nil))
		assert.Equal(t, http.StatusTeapot, rr.Code)
		assert.Equal(t, http.StatusTeapot, got)
	})

	t.Run("recovers panics", func(t *testing.T) {
		h := recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rr := httptest.NewRecorder()
		assert.NotPanics(t, func() {
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/callback", nil))
		})
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

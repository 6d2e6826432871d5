package logout

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dgellow/resumescan/internal/authmethod"
	"github.com/dgellow/resumescan/internal/browser"
	"github.com/dgellow/resumescan/internal/storage"
	"github.com/dgellow/resumescan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, store storage.Store, tracker *authmethod.Tracker, method authmethod.Method) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, storage.KeyToken, "session"))
	require.NoError(t, store.Set(ctx, storage.KeyUser, `{"id":1,"email":"a@b.com"}`))
	switch method {
	case authmethod.MethodGoogle:
		require.NoError(t, store.Set(ctx, storage.KeyGoogleToken, "g-aux"))
		require.NoError(t, store.Set(ctx, storage.KeyGoogleOAuthState, "g-state"))
	case authmethod.MethodLinkedIn:
		require.NoError(t, store.Set(ctx, storage.KeyLinkedInToken, "li-aux"))
		require.NoError(t, store.Set(ctx, storage.KeyLinkedInOAuthState, "li-state"))
	}
	require.NoError(t, tracker.Set(ctx, method))
}

func invalidateServer(t *testing.T, status int) (*httptest.Server, *atomic.Value) {
	t.Helper()
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &auth
}

func TestLogout_ClearsEverythingForEveryMethod(t *testing.T) {
	srv, _ := invalidateServer(t, http.StatusOK)

	for _, m := range []authmethod.Method{authmethod.MethodEmail, authmethod.MethodGoogle, authmethod.MethodLinkedIn} {
		t.Run(string(m), func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryStore()
			tracker := authmethod.NewTracker(store)
			seed(t, store, tracker, m)

			c := NewCoordinator(store, tracker, WithInvalidateURL(srv.URL))
			res := c.Logout(ctx)

			assert.True(t, res.Success, res.Error)
			assert.True(t, res.LocalCleared)
			assert.Equal(t, m, res.Method)
			assert.Equal(t, 0, store.Len())
		})
	}
}

func TestLogout_LinkedInInvalidationSucceeds(t *testing.T) {
	ctx := context.Background()
	srv, auth := invalidateServer(t, http.StatusOK)
	store := storage.NewMemoryStore()
	tracker := authmethod.NewTracker(store)
	seed(t, store, tracker, authmethod.MethodLinkedIn)

	res := NewCoordinator(store, tracker, WithInvalidateURL(srv.URL)).Logout(ctx)
	assert.True(t, res.Success)
	assert.False(t, res.RequiresUserAction)
	assert.Equal(t, "Bearer li-aux", auth.Load())
}

func TestLogout_LinkedInInvalidationRejected(t *testing.T) {
	ctx := context.Background()
	srv, _ := invalidateServer(t, http.StatusForbidden)
	store := storage.NewMemoryStore()
	tracker := authmethod.NewTracker(store)
	seed(t, store, tracker, authmethod.MethodLinkedIn)

	res := NewCoordinator(store, tracker, WithInvalidateURL(srv.URL)).Logout(ctx)
	assert.False(t, res.Success)
	assert.True(t, res.RequiresUserAction)
	assert.Equal(t, LinkedInManualLogoutURL, res.ManualLogoutURL)
	assert.Contains(t, res.Error, "403")
	assert.True(t, res.LocalCleared)
	assert.Equal(t, 0, store.Len())
}

func TestLogout_LinkedInUnreachable(t *testing.T) {
	ctx := context.Background()
	srv, _ := invalidateServer(t, http.StatusOK)
	srv.Close()
	store := storage.NewMemoryStore()
	tracker := authmethod.NewTracker(store)
	seed(t, store, tracker, authmethod.MethodLinkedIn)

	res := NewCoordinator(store, tracker, WithInvalidateURL(srv.URL)).Logout(ctx)
	assert.True(t, res.RequiresUserAction)
	assert.Equal(t, 0, store.Len())
}

func TestLogout_LinkedInCopyOfSessionTokenNotSent(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	store := storage.NewMemoryStore()
	tracker := authmethod.NewTracker(store)
	seed(t, store, tracker, authmethod.MethodLinkedIn)
	require.NoError(t, store.Set(ctx, storage.KeyLinkedInToken, "session"))

	res := NewCoordinator(store, tracker, WithInvalidateURL(srv.URL)).Logout(ctx)
	assert.False(t, res.Success)
	assert.True(t, res.RequiresUserAction)
	assert.Equal(t, LinkedInManualLogoutURL, res.ManualLogoutURL)
	assert.Empty(t, res.Error)
	assert.True(t, res.LocalCleared)
	assert.Equal(t, 0, store.Len())
	assert.Zero(t, calls.Load())
}

func TestLogout_DetectsMethodWithoutRecord(t *testing.T) {
	ctx := context.Background()
	srv, auth := invalidateServer(t, http.StatusUnauthorized)
	store := storage.NewMemoryStore()
	tracker := authmethod.NewTracker(store)
	require.NoError(t, store.Set(ctx, storage.KeyToken, "session"))
	require.NoError(t, store.Set(ctx, storage.KeyLinkedInToken, "li-aux"))

	res := NewCoordinator(store, tracker, WithInvalidateURL(srv.URL)).Logout(ctx)
	assert.Equal(t, authmethod.MethodLinkedIn, res.Method)
	assert.True(t, res.RequiresUserAction)
	assert.Equal(t, "Bearer li-aux", auth.Load())
}

func TestLogout_NoSession(t *testing.T) {
	store := storage.NewMemoryStore()
	res := NewCoordinator(store, authmethod.NewTracker(store)).Logout(context.Background())
	assert.True(t, res.Success)
	assert.Empty(t, res.Method)
}

func TestLogout_StoreFailureReported(t *testing.T) {
	store := &testutil.MockStore{}
	store.On("Get", mock.Anything, mock.Anything).Return("", storage.ErrKeyNotFound)
	store.On("Remove", mock.Anything, storage.KeyToken).Return(errors.New("read-only filesystem"))
	store.On("Remove", mock.Anything, mock.Anything).Return(nil)

	c := NewCoordinator(store, authmethod.NewTracker(store))
	res := c.Logout(context.Background())
	assert.False(t, res.LocalCleared)

	forced := c.ForceLogout(context.Background())
	assert.True(t, forced.Success)
	assert.False(t, forced.LocalCleared)
	store.AssertNumberOfCalls(t, "Remove", 2*len(storage.AllKeys()))
}

func TestForceLogout(t *testing.T) {
	store := storage.NewMemoryStore()
	tracker := authmethod.NewTracker(store)
	seed(t, store, tracker, authmethod.MethodGoogle)

	res := NewCoordinator(store, tracker).ForceLogout(context.Background())
	assert.True(t, res.Success)
	assert.True(t, res.LocalCleared)
	assert.Equal(t, 0, store.Len())
}

func TestOpenManualLogout(t *testing.T) {
	store := storage.NewMemoryStore()
	nav := browser.NewMemory("http://localhost:3000")

	require.NoError(t, NewCoordinator(store, authmethod.NewTracker(store)).OpenManualLogout(nav))
	assert.Equal(t, []string{LinkedInManualLogoutURL}, nav.Opened())
}

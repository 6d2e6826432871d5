package authmethod

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgellow/resumescan/internal/storage"
	"github.com/dgellow/resumescan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiryWatcher_ClearsOnStart(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clock := testutil.NewClock(epoch)
	tracker := NewTracker(store, WithClock(clock.Now))

	require.NoError(t, store.Set(ctx, storage.KeyToken, "tok"))
	require.NoError(t, tracker.Set(ctx, MethodEmail))
	clock.Advance(48 * time.Hour)

	var calls atomic.Int32
	w, err := NewExpiryWatcher(tracker, time.Hour, func() { calls.Add(1) })
	require.NoError(t, err)
	w.Start(ctx)

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	w.Stop()

	assert.Equal(t, 0, store.Len())
}

func TestExpiryWatcher_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tracker := NewTracker(storage.NewMemoryStore())

	w, err := NewExpiryWatcher(tracker, 10*time.Millisecond, nil)
	require.NoError(t, err)
	w.Start(ctx)
	cancel()

	select {
	case <-w.doneChan:
	case <-time.After(time.Second):
		t.Fatal("watcher did not exit after cancel")
	}
}

func TestNewExpiryWatcher_RejectsNonPositiveInterval(t *testing.T) {
	tracker := NewTracker(storage.NewMemoryStore())

	for _, interval := range []time.Duration{0, -time.Second} {
		w, err := NewExpiryWatcher(tracker, interval, nil)
		assert.Error(t, err, "interval %s", interval)
		assert.Nil(t, w)
	}
}

func TestExpiryWatcher_StopIsIdempotent(t *testing.T) {
	tracker := NewTracker(storage.NewMemoryStore())

	t.Run("without start", func(t *testing.T) {
		w, err := NewExpiryWatcher(tracker, time.Hour, nil)
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			w.Stop()
			w.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Stop blocked without Start")
		}

		w.Start(context.Background())
		select {
		case <-w.doneChan:
			t.Fatal("Start after Stop ran the loop")
		default:
		}
	})

	t.Run("after start", func(t *testing.T) {
		w, err := NewExpiryWatcher(tracker, time.Hour, nil)
		require.NoError(t, err)
		w.Start(context.Background())
		w.Start(context.Background())

		assert.NotPanics(t, func() {
			w.Stop()
			w.Stop()
		})
		select {
		case <-w.doneChan:
		default:
			t.Fatal("loop still running after Stop")
		}
	})
}

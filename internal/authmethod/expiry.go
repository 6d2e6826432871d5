package authmethod

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgellow/resumescan/internal/log"
)

// ExpiryWatcher periodically clears expired auth data
type ExpiryWatcher struct {
	tracker  *Tracker
	interval time.Duration
	onClear  func()
	stopChan chan struct{}
	doneChan chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewExpiryWatcher creates a watcher. onClear, if set, runs after each clear.
func NewExpiryWatcher(tracker *Tracker, interval time.Duration, onClear func()) (*ExpiryWatcher, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("expiry check interval must be positive, got %s", interval)
	}
	return &ExpiryWatcher{
		tracker:  tracker,
		interval: interval,
		onClear:  onClear,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start begins the check loop in a goroutine. Calls after the first, or after
// Stop, do nothing.
func (w *ExpiryWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true

	log.LogInfoWithFields("authmethod", "Starting auth expiry watcher", map[string]any{
		"interval": w.interval.String(),
		"ttl":      w.tracker.TTL().String(),
	})
	go w.run(ctx)
}

// Stop ends the loop and waits for it to exit. It is safe to call more than
// once and without Start.
func (w *ExpiryWatcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	close(w.stopChan)
	w.mu.Unlock()

	if started {
		<-w.doneChan
	}
	log.LogDebugWithFields("authmethod", "Auth expiry watcher stopped", nil)
}

func (w *ExpiryWatcher) run(ctx context.Context) {
	defer close(w.doneChan)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.check(ctx)

	for {
		select {
		case <-ticker.C:
			w.check(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *ExpiryWatcher) check(ctx context.Context) {
	cleared, err := w.tracker.ClearExpired(ctx)
	if err != nil {
		log.LogErrorWithFields("authmethod", "Failed to clear expired auth data", map[string]any{
			"error": err.Error(),
		})
		return
	}
	if cleared && w.onClear != nil {
		w.onClear()
	}
}

package session

import (
	"context"
	"errors"

	"github.com/dgellow/resumescan/internal/backend"
	"github.com/dgellow/resumescan/internal/log"
	"github.com/dgellow/resumescan/internal/storage"
)

// ErrWatchUnsupported is returned by Watch when the store cannot report changes
var ErrWatchUnsupported = errors.New("store does not support change notifications")

// Watch keeps the in-memory user in step with changes other client contexts
// make to the shared store, until ctx ends. Stores may also report this
// session's own writes; a token change carrying the token the session already
// holds is ignored.
func (s *Session) Watch(ctx context.Context) error {
	w, ok := s.deps.Store.(storage.Watcher)
	if !ok {
		return ErrWatchUnsupported
	}
	changes, err := w.Watch(ctx)
	if err != nil {
		return err
	}

	log.LogDebugWithFields("session", "Watching store for changes", nil)
	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				return nil
			}
			s.reconcile(ctx, c)
		}
	}
}

func (s *Session) reconcile(ctx context.Context, c storage.Change) {
	switch c.Key {
	case storage.KeyToken:
		if c.Removed || c.Value == "" {
			if s.User() != nil {
				log.LogInfoWithFields("session", "Signed out in another context", nil)
			}
			s.setHeld("")
			s.setUser(nil)
			return
		}
		if c.Value == s.heldToken() {
			return
		}
		if _, err := s.Refresh(ctx); err != nil && !backend.IsUnauthorized(err) {
			log.LogWarnWithFields("session", "Failed to refresh after token change", map[string]any{
				"error": err.Error(),
			})
		}

	case storage.KeyUser:
		if c.Removed {
			s.setUser(nil)
			return
		}
		// A user written after the token was removed is stale
		if s.token(ctx) == "" {
			return
		}
		if u := s.cachedUser(ctx); u != nil {
			s.setUser(u)
		}
	}
}

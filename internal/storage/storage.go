package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned when a key has no stored value
var ErrKeyNotFound = errors.New("key not found")

// Key names one of the fixed entries a client context persists
type Key string

const (
	KeyToken              Key = "token"
	KeyUser               Key = "user"
	KeyGoogleToken        Key = "google_token"
	KeyLinkedInToken      Key = "linkedin_token"
	KeyGoogleOAuthState   Key = "google_oauth_state"
	KeyLinkedInOAuthState Key = "linkedin_oauth_state"
	KeyAuthMethod         Key = "auth_method"
)

// AllKeys returns every key a client context may write, in the order logout clears them
func AllKeys() []Key {
	return []Key{
		KeyToken,
		KeyUser,
		KeyGoogleToken,
		KeyLinkedInToken,
		KeyGoogleOAuthState,
		KeyLinkedInOAuthState,
		KeyAuthMethod,
	}
}

// Valid reports whether k is one of the fixed keys
func (k Key) Valid() bool {
	for _, known := range AllKeys() {
		if k == known {
			return true
		}
	}
	return false
}

// Store is the persistent key-value substrate shared by everything in a client context.
// Values are plain strings or small JSON documents. Writes are visible to the
// next read immediately; there is no expiry and no versioning.
type Store interface {
	Get(ctx context.Context, key Key) (string, error)
	Set(ctx context.Context, key Key, value string) error
	Remove(ctx context.Context, key Key) error
}

// Change describes a key that was written or removed
type Change struct {
	Key     Key
	Value   string
	Removed bool
}

// Watcher is implemented by stores that can report changes made by other
// client contexts sharing the same substrate.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}

// Has reports whether key holds a non-empty value. Read errors count as absent.
func Has(ctx context.Context, s Store, key Key) bool {
	v, err := s.Get(ctx, key)
	return err == nil && v != ""
}

// GetOptional returns the value for key, or "" when it is not set
func GetOptional(ctx context.Context, s Store, key Key) (string, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return "", nil
	}
	return v, err
}

// RemoveAll removes every key, continuing past failures. The returned error
// joins every failure.
func RemoveAll(ctx context.Context, s Store, keys ...Key) error {
	var errs []error
	for _, k := range keys {
		if err := s.Remove(ctx, k); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", k, err))
		}
	}
	return errors.Join(errs...)
}

func validateKey(key Key) error {
	if !key.Valid() {
		return fmt.Errorf("unknown storage key %q", string(key))
	}
	return nil
}

// diff compares two snapshots and returns the changes that turn before into after
func diff(before, after map[Key]string) []Change {
	var changes []Change
	for _, k := range AllKeys() {
		old, hadOld := before[k]
		cur, hasCur := after[k]
		switch {
		case hasCur && (!hadOld || old != cur):
			changes = append(changes, Change{Key: k, Value: cur})
		case hadOld && !hasCur:
			changes = append(changes, Change{Key: k, Removed: true})
		}
	}
	return changes
}

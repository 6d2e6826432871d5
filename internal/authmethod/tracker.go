// Package authmethod records which provider produced the current session.
package authmethod

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgellow/resumescan/internal/log"
	"github.com/dgellow/resumescan/internal/storage"
)

// Method is the provider that produced a session token
type Method string

const (
	MethodEmail    Method = "email"
	MethodGoogle   Method = "google"
	MethodLinkedIn Method = "linkedin"
)

// DefaultTTL is how long a record stays valid when expiry is enforced
const DefaultTTL = 24 * time.Hour

// Valid reports whether m is a known method
func (m Method) Valid() bool {
	switch m {
	case MethodEmail, MethodGoogle, MethodLinkedIn:
		return true
	}
	return false
}

// ParseMethod converts a string into a Method
func ParseMethod(s string) (Method, error) {
	m := Method(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown auth method %q", s)
	}
	return m, nil
}

// Record is the persisted auth method hint. Timestamp is Unix milliseconds.
type Record struct {
	Type      Method `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Time returns the record's creation time
func (r Record) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Tracker reads and writes the auth method record in a token store
type Tracker struct {
	store storage.Store
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(t *Tracker) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// NewTracker creates a tracker over store
func NewTracker(store storage.Store, opts ...Option) *Tracker {
	t := &Tracker{
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TTL returns the configured record lifetime
func (t *Tracker) TTL() time.Duration {
	return t.ttl
}

// Set records m as the current method, overwriting any previous record
func (t *Tracker) Set(ctx context.Context, m Method) error {
	if !m.Valid() {
		return fmt.Errorf("unknown auth method %q", string(m))
	}
	data, err := json.Marshal(Record{Type: m, Timestamp: t.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("encoding auth method: %w", err)
	}
	if err := t.store.Set(ctx, storage.KeyAuthMethod, string(data)); err != nil {
		return fmt.Errorf("storing auth method: %w", err)
	}

	log.LogDebugWithFields("authmethod", "Auth method recorded", map[string]any{
		"method": string(m),
	})
	return nil
}

// Get returns the current record, or nil when it is absent or malformed.
// Malformed records are logged and otherwise ignored.
func (t *Tracker) Get(ctx context.Context) *Record {
	raw, err := t.store.Get(ctx, storage.KeyAuthMethod)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			log.LogWarnWithFields("authmethod", "Failed to read auth method", map[string]any{
				"error": err.Error(),
			})
		}
		return nil
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		log.LogWarnWithFields("authmethod", "Ignoring malformed auth method record", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	if !rec.Type.Valid() {
		log.LogWarnWithFields("authmethod", "Ignoring auth method record with unknown type", map[string]any{
			"type": string(rec.Type),
		})
		return nil
	}
	return &rec
}

// Detect infers the method from stored artifacts. It returns "" when no
// session token exists.
func (t *Tracker) Detect(ctx context.Context) Method {
	if !storage.Has(ctx, t.store, storage.KeyToken) {
		return ""
	}
	switch {
	case storage.Has(ctx, t.store, storage.KeyGoogleToken):
		return MethodGoogle
	case storage.Has(ctx, t.store, storage.KeyLinkedInToken):
		return MethodLinkedIn
	case storage.Has(ctx, t.store, storage.KeyLinkedInOAuthState):
		return MethodLinkedIn
	case storage.Has(ctx, t.store, storage.KeyGoogleOAuthState):
		return MethodGoogle
	default:
		return MethodEmail
	}
}

// Initialize persists the detected method when a session token survived but
// the record did not. Calling it again has no further effect.
func (t *Tracker) Initialize(ctx context.Context) error {
	if t.Get(ctx) != nil {
		return nil
	}
	m := t.Detect(ctx)
	if m == "" {
		return nil
	}

	log.LogInfoWithFields("authmethod", "Recovered auth method from stored artifacts", map[string]any{
		"method": string(m),
	})
	return t.Set(ctx, m)
}

// Expired reports whether the current record is older than the TTL
func (t *Tracker) Expired(ctx context.Context) bool {
	rec := t.Get(ctx)
	if rec == nil {
		return false
	}
	return t.now().Sub(rec.Time()) > t.ttl
}

// ClearExpired clears all auth data when the record is older than the TTL.
// It reports whether anything was cleared.
func (t *Tracker) ClearExpired(ctx context.Context) (bool, error) {
	rec := t.Get(ctx)
	if rec == nil {
		return false, nil
	}
	age := t.now().Sub(rec.Time())
	if age <= t.ttl {
		return false, nil
	}

	log.LogInfoWithFields("authmethod", "Auth method record expired, clearing auth data", map[string]any{
		"method": string(rec.Type),
		"age":    age.Round(time.Second).String(),
	})
	if err := storage.RemoveAll(ctx, t.store, storage.AllKeys()...); err != nil {
		return false, fmt.Errorf("clearing expired auth data: %w", err)
	}
	return true, nil
}

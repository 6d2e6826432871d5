package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgellow/resumescan/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T, opts ...FileStoreOption) *FileStore {
	t.Helper()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "session.json"), opts...)
	require.NoError(t, err)
	return s
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestFileStore(t)

	_, err := s.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, KeyToken, "tok"))
	require.NoError(t, s.Set(ctx, KeyAuthMethod, `{"type":"email","timestamp":1}`))

	// A second store on the same path sees the writes
	other, err := NewFileStore(s.Path())
	require.NoError(t, err)
	v, err := other.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	require.NoError(t, other.Remove(ctx, KeyToken))
	_, err = s.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStore_Sealed(t *testing.T) {
	ctx := context.Background()
	sealer, err := crypto.NewSealer([]byte("test-encryption-key-32-bytes-ok!"))
	require.NoError(t, err)

	s := newTestFileStore(t, WithSealer(sealer))
	require.NoError(t, s.Set(ctx, KeyToken, "secret-session-token"))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-session-token")
	assert.Contains(t, string(raw), `"sealed"`)

	v, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "secret-session-token", v)

	plain, err := NewFileStore(s.Path())
	require.NoError(t, err)
	_, err = plain.Get(ctx, KeyToken)
	assert.ErrorContains(t, err, "no encryption key")
}

func TestFileStore_CorruptFile(t *testing.T) {
	s := newTestFileStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o600))

	_, err := s.Get(context.Background(), KeyToken)
	assert.ErrorContains(t, err, "parsing store file")
}

func TestFileStore_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := newTestFileStore(t)
	require.NoError(t, s.Set(ctx, KeyUser, `{"id":1}`))

	changes, err := s.Watch(ctx)
	require.NoError(t, err)

	other, err := NewFileStore(s.Path())
	require.NoError(t, err)
	require.NoError(t, other.Set(ctx, KeyToken, "from-other-process"))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Key == KeyToken {
				assert.Equal(t, "from-other-process", c.Value)
				assert.False(t, c.Removed)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for file change")
		}
	}
}

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, s.Set(ctx, KeyToken, "tok-1"))
	v, err := s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", v)

	require.NoError(t, s.Set(ctx, KeyToken, "tok-2"))
	v, err = s.Get(ctx, KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", v, "set must overwrite")

	require.NoError(t, s.Remove(ctx, KeyToken))
	_, err = s.Get(ctx, KeyToken)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	assert.NoError(t, s.Remove(ctx, KeyToken), "removing a missing key is a no-op")
}

func TestMemoryStore_RejectsUnknownKey(t *testing.T) {
	s := NewMemoryStore()
	err := s.Set(context.Background(), Key("refresh_token"), "x")
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestRemoveAll(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, k := range AllKeys() {
		require.NoError(t, s.Set(ctx, k, "v"))
	}

	require.NoError(t, RemoveAll(ctx, s, AllKeys()...))
	assert.Equal(t, 0, s.Len())
	for _, k := range AllKeys() {
		assert.False(t, Has(ctx, s, k))
	}
}

func TestGetOptional(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	v, err := GetOptional(ctx, s, KeyUser)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.Set(ctx, KeyUser, `{"id":1}`))
	v, err = GetOptional(ctx, s, KeyUser)
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, v)
}

func TestMemoryStore_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewMemoryStore()
	changes, err := s.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, KeyToken, "abc"))
	require.NoError(t, s.Remove(ctx, KeyToken))

	select {
	case c := <-changes:
		assert.Equal(t, Change{Key: KeyToken, Value: "abc"}, c)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for set change")
	}
	select {
	case c := <-changes:
		assert.Equal(t, Change{Key: KeyToken, Removed: true}, c)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for remove change")
	}

	cancel()
	assert.Eventually(t, func() bool {
		_, ok := <-changes
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestDiff(t *testing.T) {
	before := map[Key]string{KeyToken: "a", KeyUser: "u"}
	after := map[Key]string{KeyToken: "b", KeyAuthMethod: "m"}

	changes := diff(before, after)
	assert.Equal(t, []Change{
		{Key: KeyToken, Value: "b"},
		{Key: KeyUser, Removed: true},
		{Key: KeyAuthMethod, Value: "m"},
	}, changes)
}

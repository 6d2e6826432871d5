package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("test-encryption-key-32-bytes-ok!")

func TestSealerRoundTrip(t *testing.T) {
	s, err := NewSealer(testKey)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte(`{"token":"abc"}`))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "abc")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"token":"abc"}`, string(opened))

	// nonce is random per seal
	sealed2, err := s.Seal([]byte(`{"token":"abc"}`))
	require.NoError(t, err)
	assert.NotEqual(t, sealed, sealed2)
}

func TestSealerRejects(t *testing.T) {
	_, err := NewSealer([]byte("short"))
	assert.ErrorContains(t, err, "key must be 32 bytes")

	s, err := NewSealer(testKey)
	require.NoError(t, err)

	_, err = s.Open("not base64 !!")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	other, err := NewSealer([]byte("another-key-of-exactly-32-bytes!"))
	require.NoError(t, err)
	sealed, err := other.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = s.Open(sealed)
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

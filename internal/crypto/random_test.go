package crypto

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewState(t *testing.T) {
	seen := make(map[string]bool)
	for range 16 {
		s, err := NewState()
		require.NoError(t, err)
		assert.Len(t, s, 32)
		assert.Equal(t, s, url.QueryEscape(s), "state must survive a query string unescaped")
		assert.False(t, seen[s])
		seen[s] = true
	}
}

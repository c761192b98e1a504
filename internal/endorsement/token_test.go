package endorsement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewToken(t *testing.T) {
	plain, hash, err := NewToken()
	require.NoError(t, err)

	assert.NotEmpty(t, plain)
	assert.NotContains(t, plain, "=", "token must be URL-safe")
	assert.Equal(t, HashToken(plain), hash, "stored hash matches the plaintext")
	assert.NotEqual(t, plain, hash, "plaintext is never the stored value")

	_, hash2, err := NewToken()
	require.NoError(t, err)
	assert.NotEqual(t, hash, hash2)
}

package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRoundTrip(t *testing.T) {
	raw, hash, err := Generate()
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Len(t, hash, 64) // hex sha256
	assert.True(t, Verify(raw, hash))
}

func TestGenerateUnique(t *testing.T) {
	r1, h1, err := Generate()
	require.NoError(t, err)
	r2, h2, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, r1, r2)
	assert.NotEqual(t, h1, h2)
}

func TestVerifyWrongRaw(t *testing.T) {
	_, hash, err := Generate()
	require.NoError(t, err)
	assert.False(t, Verify("not-the-raw-value", hash))
}

func TestVerifyMalformedInput(t *testing.T) {
	assert.False(t, Verify("", "abc"))
	assert.False(t, Verify("abc", ""))
	assert.False(t, Verify("\x00\xff garbage", "zzzz"))
}

func TestHashDeterministic(t *testing.T) {
	assert.Equal(t, Hash("abc"), Hash("abc"))
	assert.NotEqual(t, Hash("abc"), Hash("abd"))
}

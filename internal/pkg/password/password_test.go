package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheck(t *testing.T) {
	h, err := Hash("P@ssw0rd1!")
	require.NoError(t, err)
	assert.NotEqual(t, "P@ssw0rd1!", h)
	assert.True(t, Check("P@ssw0rd1!", h))
	assert.False(t, Check("wrong", h))
}

func TestCheckEmptyStoredHash(t *testing.T) {
	// Federated accounts have no password hash and must never password-match.
	assert.False(t, Check("anything", ""))
	assert.False(t, Check("", ""))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("abcdefg1"))
	assert.NoError(t, Validate("P@ssw0rd1!"))

	assert.Error(t, Validate("short1"))
	assert.Error(t, Validate("allletters"))
	assert.Error(t, Validate("1234567890"))
}

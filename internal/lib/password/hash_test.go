package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGetHash(t *testing.T) {
	hash, err := GetHash("p@ssw0rd!@#$%^&*()")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, Cost, cost)
	assert.NotContains(t, hash, "p@ssw0rd")

	other, err := GetHash("p@ssw0rd!@#$%^&*()")
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salt must differ")
}

func TestLongPasswords(t *testing.T) {
	long := strings.Repeat("a", 100)
	hash, err := GetHash(long)
	require.NoError(t, err)

	assert.NoError(t, CompareHash(hash, long))
	// отличие после 72-го байта учитывается
	assert.ErrorIs(t, CompareHash(hash, strings.Repeat("a", 99)+"b"), ErrMismatch)
	assert.ErrorIs(t, CompareHash(hash, strings.Repeat("a", MaxBytes)), ErrMismatch)
}

func TestCompareHash(t *testing.T) {
	hash, err := GetHash("correct-horse")
	require.NoError(t, err)

	assert.NoError(t, CompareHash(hash, "correct-horse"))
	assert.ErrorIs(t, CompareHash(hash, "battery-staple"), ErrMismatch)

	err = CompareHash("not-a-bcrypt-hash", "correct-horse")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMismatch)
}

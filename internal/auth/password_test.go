package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("pescatours123")
	require.NoError(t, err)

	ok, err := CheckPassword(hash, "pescatours123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword(hash, "pescatours124")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = HashPassword("short")
	assert.Error(t, err)

	_, err = CheckPassword("not-a-hash", "pescatours123")
	assert.Error(t, err)
}

// The seed migration ships this hash for its demo accounts.
func TestSeedHashMatches(t *testing.T) {
	ok, err := CheckPassword("$2b$10$DrqpXsmAuvINL.yxQ9Ss5eenXG29eXqlTZqvALj1wR/LB1g59a.Sy", "pescatours123")
	require.NoError(t, err)
	assert.True(t, ok)
}

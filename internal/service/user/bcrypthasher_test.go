package user

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func Test_BcryptHasher(t *testing.T) {
	t.Parallel()

	h := BcryptHasher{Cost: bcrypt.MinCost}

	t.Run("hash password", func(t *testing.T) {
		got, err := h.Hash("password")
		require.NoError(t, err)

		require.Len(t, got, 60, "bcrypt hash is 60 characters long")
		require.Equal(t, "$2a$", got[:4])
	})

	t.Run("compare", func(t *testing.T) {
		hash, err := h.Hash("password")
		require.NoError(t, err)

		require.NoError(t, h.Compare(hash, "password"))
		require.Error(t, h.Compare(hash, "wrong"))
	})

	t.Run("long passwords differ after 72 bytes", func(t *testing.T) {
		prefix := strings.Repeat("a", 80)
		hash, err := h.Hash(prefix + "1")
		require.NoError(t, err)

		require.Error(t, h.Compare(hash, prefix+"2"), "tail of long password must matter")
	})

	t.Run("default cost", func(t *testing.T) {
		hash, err := BcryptHasher{}.Hash("password")
		require.NoError(t, err)

		cost, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err)
		require.Equal(t, bcrypt.DefaultCost, cost)
	})
}

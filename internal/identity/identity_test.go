package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "circulate/pkg/domain"
	dErrors "circulate/pkg/domain-errors"
)

func TestValidator(t *testing.T) {
	v := NewValidator("test-signing-key", "circulate", "circulate-api")

	t.Run("round trip", func(t *testing.T) {
		token, err := v.GenerateToken(id.HolderID(42), "alice", time.Hour)
		require.NoError(t, err)

		claims, err := v.ValidateToken(token)
		require.NoError(t, err)

		holderID, err := claims.HolderID()
		require.NoError(t, err)
		assert.Equal(t, id.HolderID(42), holderID)
		assert.Equal(t, "alice", claims.DisplayName)
	})

	t.Run("expired token is unauthorized", func(t *testing.T) {
		token, err := v.GenerateToken(id.HolderID(42), "alice", -time.Minute)
		require.NoError(t, err)

		_, err = v.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong signing key is rejected", func(t *testing.T) {
		other := NewValidator("other-key", "circulate", "circulate-api")
		token, err := other.GenerateToken(id.HolderID(42), "alice", time.Hour)
		require.NoError(t, err)

		_, err = v.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong audience is rejected", func(t *testing.T) {
		other := NewValidator("test-signing-key", "circulate", "someone-else")
		token, err := other.GenerateToken(id.HolderID(42), "alice", time.Hour)
		require.NoError(t, err)

		_, err = v.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		_, err := v.ValidateToken("not-a-token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

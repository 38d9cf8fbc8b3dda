package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropgate/dropgate/internal/common"
)

func TestGenerateAndVerify(t *testing.T) {
	secret := []byte("test-secret")

	token, err := GenerateToken("user-42", secret, time.Minute)
	require.NoError(t, err)

	userID, err := GetUserIDFromToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := GenerateToken("user-42", []byte("right"), time.Minute)
	require.NoError(t, err)

	_, err = GetUserIDFromToken(token, []byte("wrong"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidToken))
}

func TestVerify_Expired(t *testing.T) {
	token, err := GenerateToken("user-42", []byte("s"), -time.Minute)
	require.NoError(t, err)

	_, err = GetUserIDFromToken(token, []byte("s"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidToken))
}

func TestVerify_Garbage(t *testing.T) {
	_, err := GetUserIDFromToken("not.a.token", []byte("s"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidToken))
}

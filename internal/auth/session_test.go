package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	userID := uuid.New()
	secret := "test-secret"

	token, err := IssueSessionToken(userID, secret, 7)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseSessionToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, userID.String(), claims.Subject)
}

func TestSessionTokenWrongSecret(t *testing.T) {
	token, err := IssueSessionToken(uuid.New(), "secret-a", 7)
	require.NoError(t, err)

	_, err = ParseSessionToken(token, "secret-b")
	require.Error(t, err)
}

func TestSessionTokenGarbage(t *testing.T) {
	_, err := ParseSessionToken("not-a-jwt", "secret")
	require.Error(t, err)
}

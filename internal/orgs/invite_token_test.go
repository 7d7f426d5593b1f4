package orgs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateInviteToken(t *testing.T) {
	token, err := GenerateInviteToken()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(token, InviteTokenPrefix))
	require.True(t, ValidateInviteTokenFormat(token))
}

func TestGenerateInviteTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateInviteToken()
		require.NoError(t, err)
		require.False(t, seen[token], "duplicate token generated")
		seen[token] = true
	}
}

func TestValidateInviteTokenFormat(t *testing.T) {
	valid, err := GenerateInviteToken()
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"valid token", valid, true},
		{"empty", "", false},
		{"missing prefix", strings.TrimPrefix(valid, InviteTokenPrefix), false},
		{"wrong prefix", "tok_" + strings.TrimPrefix(valid, InviteTokenPrefix), false},
		{"prefix only", InviteTokenPrefix, false},
		{"truncated", valid[:len(valid)/2], false},
		{"non base64url payload", InviteTokenPrefix + "!!!not-base64!!!", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ValidateInviteTokenFormat(tt.token))
		})
	}
}

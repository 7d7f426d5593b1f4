package orgs

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	InviteTokenPrefix = "tki_"
	InviteTokenBytes  = 32
)

// GenerateInviteToken returns a new bearer token: a recognizable prefix
// followed by 32 bytes of crypto-random data, base64url-encoded (43 chars
// of payload, well above the 32-char floor for unguessability).
func GenerateInviteToken() (string, error) {
	randomBytes := make([]byte, InviteTokenBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return InviteTokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes), nil
}

// ValidateInviteTokenFormat cheaply rejects strings that cannot be tokens
// before any database lookup
func ValidateInviteTokenFormat(token string) bool {
	if len(token) < len(InviteTokenPrefix) {
		return false
	}

	if token[:len(InviteTokenPrefix)] != InviteTokenPrefix {
		return false
	}

	encoded := token[len(InviteTokenPrefix):]
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}

	return len(decoded) == InviteTokenBytes
}

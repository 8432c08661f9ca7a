package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// OpaqueTokenBytes is the entropy of access tokens and one-time secrets (256 bits).
const OpaqueTokenBytes = 32

// OpaqueTokenLen is the unpadded base64url length of OpaqueTokenBytes.
const OpaqueTokenLen = 43

// NewOpaqueToken returns a URL-safe random string carrying OpaqueTokenBytes of entropy.
func NewOpaqueToken() (string, error) {
	buf := make([]byte, OpaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// WellFormedOpaqueToken reports whether s could have been produced by NewOpaqueToken.
func WellFormedOpaqueToken(s string) bool {
	if len(s) != OpaqueTokenLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// ConstantTimeEqual compares two secrets without leaking their common prefix length.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

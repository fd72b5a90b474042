package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize128 provides 128 bits of entropy (22 chars base64url).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (43 chars base64url).
	TokenSize256 = 32
	// TokenSize512 provides 512 bits of entropy (86 chars base64url).
	TokenSize512 = 64
)

// RawTokenDelimiter separates the token and salt halves of a raw invite token.
// It is not part of the base64url alphabet, so splitting on it is unambiguous.
const RawTokenDelimiter = "."

var (
	// ErrInvalidTokenFormat is returned when a raw token is not "{token}.{salt}".
	ErrInvalidTokenFormat = errors.New("cryptox: invalid token format")
)

// GenerateToken creates a cryptographically secure random token of the specified byte length.
// The token is returned as a base64url-encoded string (URL-safe, no padding).
// Returns an error if the random number generator fails.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FormatRawToken joins a token and its salt into the single string handed to
// the invitee.
func FormatRawToken(token, salt string) string {
	return token + RawTokenDelimiter + salt
}

// ParseRawToken splits a raw token on the first delimiter. Both halves must be
// non-blank, anything else is ErrInvalidTokenFormat.
func ParseRawToken(raw string) (token, salt string, err error) {
	token, salt, found := strings.Cut(raw, RawTokenDelimiter)
	if !found || strings.TrimSpace(token) == "" || strings.TrimSpace(salt) == "" {
		return "", "", ErrInvalidTokenFormat
	}
	return token, salt, nil
}

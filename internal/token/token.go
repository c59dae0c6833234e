// Package token generates and validates the opaque session tokens that bind
// a desktop and a mobile client to the same pairing session. Possession of a
// token is the only credential the mobile side ever presents, so tokens come
// from a cryptographically random source.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
)

const (
	// GeneratedLength is the hex length of freshly generated tokens.
	GeneratedLength = 32
	// MinLength is the minimum hex length accepted from the outside.
	MinLength = 16
)

var ErrInvalidToken = errors.New("invalid token")

// Generate returns a new 32-character lowercase hex token.
func Generate() (string, error) {
	buf := make([]byte, GeneratedLength/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Sanitize lower-cases the input, strips everything outside [a-f0-9] and
// fails with ErrInvalidToken if fewer than MinLength characters remain.
// Every externally supplied token must pass through here before it is used
// as a lookup key.
func Sanitize(input string) (string, error) {
	var b strings.Builder
	for _, r := range strings.ToLower(input) {
		if (r >= 'a' && r <= 'f') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if len(out) < MinLength {
		return "", ErrInvalidToken
	}
	return out, nil
}

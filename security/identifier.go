package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// DefaultIdentifierBytes is the default entropy for token and code
// identifiers: 40 random bytes, 80 hex characters on the wire.
const DefaultIdentifierBytes = 40

// GenerateIdentifier returns a hex-encoded identifier of lengthBytes random
// bytes from a cryptographically secure source.
func GenerateIdentifier(lengthBytes int) (string, error) {
	if lengthBytes <= 0 {
		lengthBytes = DefaultIdentifierBytes
	}
	buf := make([]byte, lengthBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random source: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// PKCE code_verifier length bounds per RFC 7636 Section 4.1.
const (
	MinCodeVerifierLength = 43
	MaxCodeVerifierLength = 128
)

// CodeChallengeVerifier is a pluggable PKCE verification strategy.
type CodeChallengeVerifier interface {
	// Method returns the code_challenge_method this verifier handles.
	Method() string

	// VerifyCodeChallenge reports whether the verifier matches the
	// stored challenge. Implementations must compare in constant time.
	VerifyCodeChallenge(codeVerifier, codeChallenge string) bool
}

// PlainVerifier implements the "plain" method: challenge equals verifier.
type PlainVerifier struct{}

// Method returns "plain".
func (PlainVerifier) Method() string { return "plain" }

// VerifyCodeChallenge compares verifier and challenge in constant time.
func (PlainVerifier) VerifyCodeChallenge(codeVerifier, codeChallenge string) bool {
	return subtle.ConstantTimeCompare([]byte(codeVerifier), []byte(codeChallenge)) == 1
}

// S256Verifier implements the "S256" method: challenge equals
// base64url(SHA-256(verifier)) without padding.
type S256Verifier struct{}

// Method returns "S256".
func (S256Verifier) Method() string { return "S256" }

// VerifyCodeChallenge hashes the verifier and compares in constant time.
func (S256Verifier) VerifyCodeChallenge(codeVerifier, codeChallenge string) bool {
	hash := sha256.Sum256([]byte(codeVerifier))
	expected := base64.RawURLEncoding.EncodeToString(hash[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(codeChallenge)) == 1
}

// ValidCodeVerifierFormat reports whether s satisfies the RFC 7636
// character class and length constraint ^[A-Za-z0-9-._~]{43,128}$.
// Both code_verifier and code_challenge values must pass this check.
func ValidCodeVerifierFormat(s string) bool {
	if len(s) < MinCodeVerifierLength || len(s) > MaxCodeVerifierLength {
		return false
	}
	for _, c := range []byte(s) {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '.' || c == '_' || c == '~':
		default:
			return false
		}
	}
	return true
}

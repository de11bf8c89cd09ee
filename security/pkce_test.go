package security

import (
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func TestS256Verifier(t *testing.T) {
	verifier := oauth2.GenerateVerifier()
	challenge := oauth2.S256ChallengeFromVerifier(verifier)

	s256 := S256Verifier{}
	if s256.Method() != "S256" {
		t.Errorf("Method() = %q, want %q", s256.Method(), "S256")
	}
	if !s256.VerifyCodeChallenge(verifier, challenge) {
		t.Error("VerifyCodeChallenge() rejected a matching verifier")
	}
	if s256.VerifyCodeChallenge(oauth2.GenerateVerifier(), challenge) {
		t.Error("VerifyCodeChallenge() accepted a different verifier")
	}
	if s256.VerifyCodeChallenge(verifier, verifier) {
		t.Error("VerifyCodeChallenge() accepted the raw verifier as challenge")
	}
}

func TestPlainVerifier(t *testing.T) {
	plain := PlainVerifier{}
	if plain.Method() != "plain" {
		t.Errorf("Method() = %q, want %q", plain.Method(), "plain")
	}

	verifier := oauth2.GenerateVerifier()
	if !plain.VerifyCodeChallenge(verifier, verifier) {
		t.Error("VerifyCodeChallenge() rejected identical values")
	}
	if plain.VerifyCodeChallenge(verifier, verifier+"x") {
		t.Error("VerifyCodeChallenge() accepted different values")
	}
}

func TestValidCodeVerifierFormat(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{
			name:  "generated verifier",
			input: oauth2.GenerateVerifier(),
			want:  true,
		},
		{
			name:  "minimum length",
			input: strings.Repeat("a", 43),
			want:  true,
		},
		{
			name:  "maximum length",
			input: strings.Repeat("a", 128),
			want:  true,
		},
		{
			name:  "all allowed punctuation",
			input: strings.Repeat("-._~", 11),
			want:  true,
		},
		{
			name:  "too short",
			input: strings.Repeat("a", 42),
			want:  false,
		},
		{
			name:  "too long",
			input: strings.Repeat("a", 129),
			want:  false,
		},
		{
			name:  "empty",
			input: "",
			want:  false,
		},
		{
			name:  "contains space",
			input: strings.Repeat("a", 42) + " ",
			want:  false,
		},
		{
			name:  "contains plus",
			input: strings.Repeat("a", 42) + "+",
			want:  false,
		},
		{
			name:  "contains slash",
			input: strings.Repeat("a", 42) + "/",
			want:  false,
		},
		{
			name:  "contains equals padding",
			input: strings.Repeat("a", 42) + "=",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidCodeVerifierFormat(tt.input); got != tt.want {
				t.Errorf("ValidCodeVerifierFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

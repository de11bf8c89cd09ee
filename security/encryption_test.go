package security

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	if len(key) != 32 {
		t.Errorf("GenerateKey() returned key of length %d, want 32", len(key))
	}

	key2, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	if bytes.Equal(key, key2) {
		t.Error("GenerateKey() returned identical keys")
	}
}

func TestNewEncryptor(t *testing.T) {
	tests := []struct {
		name    string
		key     []byte
		wantErr bool
	}{
		{
			name:    "valid 32-byte key",
			key:     make([]byte, 32),
			wantErr: false,
		},
		{
			name:    "nil key",
			key:     nil,
			wantErr: true,
		},
		{
			name:    "short key",
			key:     make([]byte, 16),
			wantErr: true,
		},
		{
			name:    "long key",
			key:     make([]byte, 64),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncryptor(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewEncryptor() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncryptDecrypt(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{name: "json payload", plaintext: `{"auth_code_id":"abc","client_id":"web"}`},
		{name: "empty string", plaintext: ""},
		{name: "unicode", plaintext: "héllo wörld ☃"},
		{name: "long payload", plaintext: strings.Repeat("x", 4096)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := enc.Encrypt(tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if sealed == tt.plaintext && tt.plaintext != "" {
				t.Error("Encrypt() returned plaintext unchanged")
			}
			if _, err := base64.RawURLEncoding.DecodeString(sealed); err != nil {
				t.Errorf("Encrypt() output is not unpadded base64url: %v", err)
			}

			opened, err := enc.Decrypt(sealed)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if opened != tt.plaintext {
				t.Errorf("Decrypt() = %q, want %q", opened, tt.plaintext)
			}
		})
	}
}

func TestEncryptNonceUniqueness(t *testing.T) {
	key, _ := GenerateKey()
	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}

	a, err := enc.Encrypt("same payload")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	b, err := enc.Encrypt("same payload")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if a == b {
		t.Error("Encrypt() produced identical ciphertexts for the same plaintext")
	}
}

func TestDecryptFailures(t *testing.T) {
	key, _ := GenerateKey()
	enc, _ := NewEncryptor(key)

	sealed, err := enc.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	t.Run("wrong key", func(t *testing.T) {
		otherKey, _ := GenerateKey()
		other, _ := NewEncryptor(otherKey)
		if _, err := other.Decrypt(sealed); err == nil {
			t.Error("Decrypt() with wrong key succeeded, want error")
		}
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		raw, _ := base64.RawURLEncoding.DecodeString(sealed)
		raw[len(raw)-1] ^= 0xff
		tampered := base64.RawURLEncoding.EncodeToString(raw)
		if _, err := enc.Decrypt(tampered); err == nil {
			t.Error("Decrypt() of tampered ciphertext succeeded, want error")
		}
	})

	t.Run("not base64", func(t *testing.T) {
		if _, err := enc.Decrypt("!!!not base64!!!"); err == nil {
			t.Error("Decrypt() of invalid base64 succeeded, want error")
		}
	})

	t.Run("too short", func(t *testing.T) {
		if _, err := enc.Decrypt(base64.RawURLEncoding.EncodeToString([]byte("abc"))); err == nil {
			t.Error("Decrypt() of truncated input succeeded, want error")
		}
	})
}

func TestKeyFromPassphrase(t *testing.T) {
	key := KeyFromPassphrase("correct horse battery staple", "stable-salt")
	if len(key) != 32 {
		t.Fatalf("KeyFromPassphrase() returned key of length %d, want 32", len(key))
	}

	same := KeyFromPassphrase("correct horse battery staple", "stable-salt")
	if !bytes.Equal(key, same) {
		t.Error("KeyFromPassphrase() is not deterministic for the same inputs")
	}

	otherSalt := KeyFromPassphrase("correct horse battery staple", "other-salt")
	if bytes.Equal(key, otherSalt) {
		t.Error("KeyFromPassphrase() ignored the salt")
	}
}

func TestKeyBase64RoundTrip(t *testing.T) {
	key, _ := GenerateKey()

	decoded, err := KeyFromBase64(KeyToBase64(key))
	if err != nil {
		t.Fatalf("KeyFromBase64() error = %v", err)
	}
	if !bytes.Equal(decoded, key) {
		t.Error("KeyFromBase64(KeyToBase64(key)) != key")
	}

	if _, err := KeyFromBase64("not-base-64!"); err == nil {
		t.Error("KeyFromBase64() accepted invalid base64")
	}
	if _, err := KeyFromBase64(base64.StdEncoding.EncodeToString([]byte("short"))); err == nil {
		t.Error("KeyFromBase64() accepted a short key")
	}
}

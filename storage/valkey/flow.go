package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oauthkit/oauthkit/storage"
)

// Code and token records are written with SET NX so a colliding identifier
// surfaces as storage.ErrDuplicateIdentifier, and expire with the entity
// via a key TTL. Revocation deletes the key; a missing key therefore reads
// as revoked, which also covers identifiers this store never issued.

// calculateTTL returns the remaining lifetime of an entity, or 0 when it
// has already expired.
func calculateTTL(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return 0
	}
	return ttl
}

func (s *Store) persistNX(ctx context.Context, key, value string, expiresAt time.Time) error {
	ttl := calculateTTL(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("cannot persist already-expired record")
	}

	if err := s.client.Do(ctx, s.client.B().Set().Key(key).Value(value).Nx().Ex(ttl).Build()).Error(); err != nil {
		if isNilError(err) {
			// SET NX declined: the key already exists.
			return storage.ErrDuplicateIdentifier
		}
		return fmt.Errorf("failed to persist record: %w", err)
	}
	return nil
}

func (s *Store) revoke(ctx context.Context, key string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("failed to revoke record: %w", err)
	}
	return nil
}

func (s *Store) isRevoked(ctx context.Context, key string) (bool, error) {
	exists, err := s.client.Do(ctx, s.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return exists == 0, nil
}

type codeJSON struct {
	ID                  string    `json:"id"`
	ClientID            string    `json:"client_id"`
	UserID              string    `json:"user_id"`
	RedirectURI         string    `json:"redirect_uri"`
	Scopes              []string  `json:"scopes,omitempty"`
	ExpiresAt           time.Time `json:"expires_at"`
	CodeChallenge       string    `json:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"code_challenge_method,omitempty"`
}

// PersistAuthorizationCode implements storage.AuthorizationCodeStore.
func (s *Store) PersistAuthorizationCode(ctx context.Context, code *storage.AuthorizationCode) error {
	data, err := json.Marshal(codeJSON{
		ID:                  code.ID,
		ClientID:            code.ClientID,
		UserID:              code.UserID,
		RedirectURI:         code.RedirectURI,
		Scopes:              storage.ScopeIDs(code.Scopes),
		ExpiresAt:           code.ExpiresAt,
		CodeChallenge:       code.CodeChallenge,
		CodeChallengeMethod: code.CodeChallengeMethod,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}
	return s.persistNX(ctx, s.codeKey(code.ID), string(data), code.ExpiresAt)
}

// RevokeAuthorizationCode implements storage.AuthorizationCodeStore.
// Idempotent; revoking an unknown identifier is a no-op.
func (s *Store) RevokeAuthorizationCode(ctx context.Context, codeID string) error {
	return s.revoke(ctx, s.codeKey(codeID))
}

// IsAuthorizationCodeRevoked implements storage.AuthorizationCodeStore.
// Unknown identifiers report revoked.
func (s *Store) IsAuthorizationCodeRevoked(ctx context.Context, codeID string) (bool, error) {
	return s.isRevoked(ctx, s.codeKey(codeID))
}

type accessTokenJSON struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	UserID    string    `json:"user_id,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewAccessToken implements storage.AccessTokenStore.
func (s *Store) NewAccessToken(_ context.Context, client *storage.Client, scopes []storage.Scope, userID string) (*storage.AccessToken, error) {
	return &storage.AccessToken{
		ClientID: client.ID,
		UserID:   userID,
		Scopes:   scopes,
	}, nil
}

// PersistAccessToken implements storage.AccessTokenStore.
func (s *Store) PersistAccessToken(ctx context.Context, token *storage.AccessToken) error {
	data, err := json.Marshal(accessTokenJSON{
		ID:        token.ID,
		ClientID:  token.ClientID,
		UserID:    token.UserID,
		Scopes:    storage.ScopeIDs(token.Scopes),
		ExpiresAt: token.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal access token: %w", err)
	}
	return s.persistNX(ctx, s.tokenKey(token.ID), string(data), token.ExpiresAt)
}

// RevokeAccessToken implements storage.AccessTokenStore.
func (s *Store) RevokeAccessToken(ctx context.Context, tokenID string) error {
	return s.revoke(ctx, s.tokenKey(tokenID))
}

// IsAccessTokenRevoked implements storage.AccessTokenStore.
func (s *Store) IsAccessTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	return s.isRevoked(ctx, s.tokenKey(tokenID))
}

type refreshTokenJSON struct {
	ID            string    `json:"id"`
	AccessTokenID string    `json:"access_token_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// NewRefreshToken implements storage.RefreshTokenStore.
func (s *Store) NewRefreshToken(_ context.Context) (*storage.RefreshToken, error) {
	return &storage.RefreshToken{}, nil
}

// PersistRefreshToken implements storage.RefreshTokenStore.
func (s *Store) PersistRefreshToken(ctx context.Context, token *storage.RefreshToken) error {
	data, err := json.Marshal(refreshTokenJSON{
		ID:            token.ID,
		AccessTokenID: token.AccessTokenID,
		ExpiresAt:     token.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token: %w", err)
	}
	return s.persistNX(ctx, s.refreshKey(token.ID), string(data), token.ExpiresAt)
}

// RevokeRefreshToken implements storage.RefreshTokenStore.
func (s *Store) RevokeRefreshToken(ctx context.Context, tokenID string) error {
	return s.revoke(ctx, s.refreshKey(tokenID))
}

// IsRefreshTokenRevoked implements storage.RefreshTokenStore.
func (s *Store) IsRefreshTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	return s.isRevoked(ctx, s.refreshKey(tokenID))
}

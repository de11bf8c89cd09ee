// Package memory provides an in-memory implementation of all storage
// interfaces. Suitable for development and tests; everything is lost on
// restart.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/oauthkit/oauthkit/storage"
)

// Pre-computed bcrypt hash compared against when a client or user does not
// exist, so lookups cost the same whether or not the principal is real.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type clientRecord struct {
	client     storage.Client
	secretHash string
}

type userRecord struct {
	user         storage.User
	passwordHash string
}

type codeRecord struct {
	code    storage.AuthorizationCode
	revoked bool
}

type accessTokenRecord struct {
	token   storage.AccessToken
	revoked bool
}

type refreshTokenRecord struct {
	token   storage.RefreshToken
	revoked bool
}

// Store is an in-memory implementation of every storage interface.
type Store struct {
	mu sync.RWMutex

	clients       map[string]*clientRecord
	scopes        map[string]storage.Scope
	users         map[string]*userRecord // keyed by username
	authCodes     map[string]*codeRecord
	accessTokens  map[string]*accessTokenRecord
	refreshTokens map[string]*refreshTokenRecord

	issueRefreshTokens bool
	logger             *slog.Logger
}

// Compile-time interface checks.
var (
	_ storage.ClientStore            = (*Store)(nil)
	_ storage.ScopeStore             = (*Store)(nil)
	_ storage.AuthorizationCodeStore = (*Store)(nil)
	_ storage.AccessTokenStore       = (*Store)(nil)
	_ storage.RefreshTokenStore      = (*Store)(nil)
	_ storage.UserStore              = (*Store)(nil)
)

// New creates an empty in-memory store that issues refresh tokens.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		clients:            make(map[string]*clientRecord),
		scopes:             make(map[string]storage.Scope),
		users:              make(map[string]*userRecord),
		authCodes:          make(map[string]*codeRecord),
		accessTokens:       make(map[string]*accessTokenRecord),
		refreshTokens:      make(map[string]*refreshTokenRecord),
		issueRefreshTokens: true,
		logger:             logger,
	}
}

// SetIssueRefreshTokens controls whether NewRefreshToken issues tokens.
// When disabled the store declines with (nil, nil) and token responses
// omit refresh_token.
func (s *Store) SetIssueRefreshTokens(issue bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issueRefreshTokens = issue
}

// AddClient registers a client. The secret is bcrypt-hashed; pass "" for
// public clients.
func (s *Store) AddClient(client storage.Client, secret string) error {
	rec := &clientRecord{client: client}

	if client.Confidential {
		if secret == "" {
			return fmt.Errorf("confidential client %q requires a secret", client.ID)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash client secret: %w", err)
		}
		rec.secretHash = string(hash)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ID] = rec
	return nil
}

// AddScope registers a scope.
func (s *Store) AddScope(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[id] = storage.Scope{ID: id}
}

// AddUser registers a resource owner with a bcrypt-hashed password.
func (s *Store) AddUser(id, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = &userRecord{
		user:         storage.User{ID: id},
		passwordHash: string(hash),
	}
	return nil
}

// GetClient implements storage.ClientStore.
func (s *Store) GetClient(_ context.Context, clientID string) (*storage.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.clients[clientID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	client := rec.client
	return &client, nil
}

// ValidateClient implements storage.ClientStore. The bcrypt comparison
// always runs, against a dummy hash when the client is unknown, so timing
// does not reveal which clients exist.
func (s *Store) ValidateClient(_ context.Context, clientID, clientSecret, _ string) (*storage.Client, error) {
	s.mu.RLock()
	rec, ok := s.clients[clientID]
	s.mu.RUnlock()

	hash := dummyHash
	if ok && rec.secretHash != "" {
		hash = rec.secretHash
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(clientSecret))

	if !ok {
		return nil, storage.ErrNotFound
	}
	if !rec.client.Confidential {
		client := rec.client
		return &client, nil
	}
	if compareErr != nil {
		return nil, storage.ErrNotFound
	}

	client := rec.client
	return &client, nil
}

// GetScope implements storage.ScopeStore.
func (s *Store) GetScope(_ context.Context, scopeID string) (*storage.Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scope, ok := s.scopes[scopeID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &scope, nil
}

// FinalizeScopes implements storage.ScopeStore. The in-memory store
// applies no policy; scopes pass through unchanged.
func (s *Store) FinalizeScopes(_ context.Context, scopes []storage.Scope, _ string, _ *storage.Client, _ string) ([]storage.Scope, error) {
	return scopes, nil
}

// PersistAuthorizationCode implements storage.AuthorizationCodeStore.
func (s *Store) PersistAuthorizationCode(_ context.Context, code *storage.AuthorizationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.authCodes[code.ID]; exists {
		return storage.ErrDuplicateIdentifier
	}
	s.authCodes[code.ID] = &codeRecord{code: *code}
	return nil
}

// RevokeAuthorizationCode implements storage.AuthorizationCodeStore.
// Idempotent; revoking an unknown identifier is a no-op.
func (s *Store) RevokeAuthorizationCode(_ context.Context, codeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.authCodes[codeID]; ok {
		rec.revoked = true
	}
	return nil
}

// IsAuthorizationCodeRevoked implements storage.AuthorizationCodeStore.
// Unknown identifiers report revoked.
func (s *Store) IsAuthorizationCodeRevoked(_ context.Context, codeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.authCodes[codeID]
	if !ok {
		return true, nil
	}
	return rec.revoked, nil
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
func (s *Store) PersistAccessToken(_ context.Context, token *storage.AccessToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accessTokens[token.ID]; exists {
		return storage.ErrDuplicateIdentifier
	}
	s.accessTokens[token.ID] = &accessTokenRecord{token: *token}
	return nil
}

// RevokeAccessToken implements storage.AccessTokenStore.
func (s *Store) RevokeAccessToken(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.accessTokens[tokenID]; ok {
		rec.revoked = true
	}
	return nil
}

// IsAccessTokenRevoked implements storage.AccessTokenStore.
func (s *Store) IsAccessTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.accessTokens[tokenID]
	if !ok {
		return true, nil
	}
	return rec.revoked, nil
}

// NewRefreshToken implements storage.RefreshTokenStore.
func (s *Store) NewRefreshToken(_ context.Context) (*storage.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.issueRefreshTokens {
		return nil, nil
	}
	return &storage.RefreshToken{}, nil
}

// PersistRefreshToken implements storage.RefreshTokenStore.
func (s *Store) PersistRefreshToken(_ context.Context, token *storage.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.refreshTokens[token.ID]; exists {
		return storage.ErrDuplicateIdentifier
	}
	s.refreshTokens[token.ID] = &refreshTokenRecord{token: *token}
	return nil
}

// RevokeRefreshToken implements storage.RefreshTokenStore.
func (s *Store) RevokeRefreshToken(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.refreshTokens[tokenID]; ok {
		rec.revoked = true
	}
	return nil
}

// IsRefreshTokenRevoked implements storage.RefreshTokenStore.
func (s *Store) IsRefreshTokenRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.refreshTokens[tokenID]
	if !ok {
		return true, nil
	}
	return rec.revoked, nil
}

// GetUserByCredentials implements storage.UserStore. As with clients, the
// bcrypt comparison always runs.
func (s *Store) GetUserByCredentials(_ context.Context, username, password, _ string, _ *storage.Client) (*storage.User, error) {
	s.mu.RLock()
	rec, ok := s.users[username]
	s.mu.RUnlock()

	hash := dummyHash
	if ok {
		hash = rec.passwordHash
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	if !ok || compareErr != nil {
		return nil, storage.ErrNotFound
	}

	user := rec.user
	return &user, nil
}

// Package valkey provides a Valkey-backed implementation of all storage
// interfaces, suitable for multi-instance deployments. Identifier
// uniqueness is enforced with SET NX, and code/token records carry their
// expiry as a key TTL so stale state evicts itself.
package valkey

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"
	"golang.org/x/crypto/bcrypt"

	"github.com/oauthkit/oauthkit/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all Valkey keys.
	DefaultKeyPrefix = "oauthkit:"

	// connectionVerifyTimeout bounds the initial PING.
	connectionVerifyTimeout = 5 * time.Second
)

// Pre-computed bcrypt hash compared against when a client or user does not
// exist, so lookups cost the same whether or not the principal is real.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Config holds configuration for the Valkey storage backend.
type Config struct {
	// Address is the Valkey server address (required), e.g. "localhost:6379".
	Address string

	// Password is the optional password for Valkey authentication.
	Password string

	// DB is the optional database number (default 0).
	DB int

	// KeyPrefix is the prefix for all keys (default "oauthkit:").
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections.
	TLS *tls.Config

	// Logger is the optional structured logger (default slog.Default()).
	Logger *slog.Logger
}

// Store is a Valkey-backed implementation of all storage interfaces.
type Store struct {
	client valkeygo.Client
	prefix string
	logger *slog.Logger
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

// New creates a Valkey-backed store, verifying the connection.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.TLS != nil {
		opts.TLSConfig = cfg.TLS
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	logger.Info("connected to valkey storage",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", prefix)

	return &Store{
		client: client,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Close closes the Valkey client connection.
func (s *Store) Close() {
	s.client.Close()
}

func (s *Store) clientKey(id string) string { return s.prefix + "client:" + id }
func (s *Store) scopeKey(id string) string  { return s.prefix + "scope:" + id }
func (s *Store) userKey(name string) string { return s.prefix + "user:" + name }
func (s *Store) codeKey(id string) string   { return s.prefix + "code:" + id }
func (s *Store) tokenKey(id string) string  { return s.prefix + "token:" + id }
func (s *Store) refreshKey(id string) string { return s.prefix + "refresh:" + id }

func isNilError(err error) bool {
	return err != nil && valkeygo.IsValkeyNil(err)
}

type clientJSON struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	RedirectURI  string `json:"redirect_uri"`
	Confidential bool   `json:"confidential"`
	SecretHash   string `json:"secret_hash,omitempty"`
}

type userJSON struct {
	ID           string `json:"id"`
	PasswordHash string `json:"password_hash"`
}

// SaveClient registers a client. The secret is bcrypt-hashed; pass "" for
// public clients.
func (s *Store) SaveClient(ctx context.Context, client storage.Client, secret string) error {
	rec := clientJSON{
		ID:           client.ID,
		Name:         client.Name,
		RedirectURI:  client.RedirectURI,
		Confidential: client.Confidential,
	}

	if client.Confidential {
		if secret == "" {
			return fmt.Errorf("confidential client %q requires a secret", client.ID)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash client secret: %w", err)
		}
		rec.SecretHash = string(hash)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal client: %w", err)
	}

	if err := s.client.Do(ctx, s.client.B().Set().Key(s.clientKey(client.ID)).Value(string(data)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

// SaveScope registers a scope.
func (s *Store) SaveScope(ctx context.Context, id string) error {
	if err := s.client.Do(ctx, s.client.B().Set().Key(s.scopeKey(id)).Value(id).Build()).Error(); err != nil {
		return fmt.Errorf("failed to save scope: %w", err)
	}
	return nil
}

// SaveUser registers a resource owner with a bcrypt-hashed password.
func (s *Store) SaveUser(ctx context.Context, id, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	data, err := json.Marshal(userJSON{ID: id, PasswordHash: string(hash)})
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	if err := s.client.Do(ctx, s.client.B().Set().Key(s.userKey(username)).Value(string(data)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Store) getClientJSON(ctx context.Context, clientID string) (*clientJSON, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.clientKey(clientID)).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	var rec clientJSON
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client: %w", err)
	}
	return &rec, nil
}

// GetClient implements storage.ClientStore.
func (s *Store) GetClient(ctx context.Context, clientID string) (*storage.Client, error) {
	rec, err := s.getClientJSON(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return &storage.Client{
		ID:           rec.ID,
		Name:         rec.Name,
		RedirectURI:  rec.RedirectURI,
		Confidential: rec.Confidential,
	}, nil
}

// ValidateClient implements storage.ClientStore. The bcrypt comparison
// always runs, against a dummy hash when the client is unknown, so timing
// does not reveal which clients exist.
func (s *Store) ValidateClient(ctx context.Context, clientID, clientSecret, _ string) (*storage.Client, error) {
	rec, err := s.getClientJSON(ctx, clientID)

	hash := dummyHash
	if err == nil && rec.SecretHash != "" {
		hash = rec.SecretHash
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(clientSecret))

	if err != nil {
		return nil, err
	}

	client := &storage.Client{
		ID:           rec.ID,
		Name:         rec.Name,
		RedirectURI:  rec.RedirectURI,
		Confidential: rec.Confidential,
	}
	if !rec.Confidential {
		return client, nil
	}
	if compareErr != nil {
		return nil, storage.ErrNotFound
	}
	return client, nil
}

// GetScope implements storage.ScopeStore.
func (s *Store) GetScope(ctx context.Context, scopeID string) (*storage.Scope, error) {
	_, err := s.client.Do(ctx, s.client.B().Get().Key(s.scopeKey(scopeID)).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get scope: %w", err)
	}
	return &storage.Scope{ID: scopeID}, nil
}

// FinalizeScopes implements storage.ScopeStore. No policy is applied.
func (s *Store) FinalizeScopes(_ context.Context, scopes []storage.Scope, _ string, _ *storage.Client, _ string) ([]storage.Scope, error) {
	return scopes, nil
}

// GetUserByCredentials implements storage.UserStore.
func (s *Store) GetUserByCredentials(ctx context.Context, username, password, _ string, _ *storage.Client) (*storage.User, error) {
	data, err := s.client.Do(ctx, s.client.B().Get().Key(s.userKey(username)).Build()).ToString()

	var rec userJSON
	hash := dummyHash
	if err == nil {
		if jerr := json.Unmarshal([]byte(data), &rec); jerr == nil && rec.PasswordHash != "" {
			hash = rec.PasswordHash
		}
	}
	compareErr := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	if err != nil {
		if isNilError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if compareErr != nil {
		return nil, storage.ErrNotFound
	}

	return &storage.User{ID: rec.ID}, nil
}

package server

import (
	"log/slog"
	"time"

	"github.com/oauthkit/oauthkit/instrumentation"
	"github.com/oauthkit/oauthkit/security"
	"github.com/oauthkit/oauthkit/storage"
)

// Config holds the server configuration: the injected stores, the payload
// encryption key, TTLs, and protocol policy knobs. Zero values yield the
// secure defaults.
type Config struct {
	// Stores. Clients, Scopes, and AccessTokens are always required;
	// the rest are required by the grants that use them.
	Clients            storage.ClientStore
	Scopes             storage.ScopeStore
	AccessTokens       storage.AccessTokenStore
	AuthorizationCodes storage.AuthorizationCodeStore
	RefreshTokens      storage.RefreshTokenStore
	Users              storage.UserStore

	// EncryptionKey seals authorization-code and refresh-token payloads.
	// Must be exactly 32 bytes; see security.GenerateKey and
	// security.KeyFromPassphrase.
	EncryptionKey []byte

	// AuthorizationCodeTTL is how long authorization codes are valid.
	// Default: 10 minutes.
	AuthorizationCodeTTL time.Duration

	// AccessTokenTTL is how long access tokens are valid.
	// Default: 1 hour.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is how long refresh tokens are valid.
	// Default: 30 days.
	RefreshTokenTTL time.Duration

	// DefaultScopes substitutes for requests naming no scopes.
	DefaultScopes []string

	// IdentifierBytes is the entropy of generated token and code
	// identifiers. Default: 40 bytes (80 hex characters).
	IdentifierBytes int

	// DisablePKCEForPublicClients lifts the PKCE requirement for public
	// clients. Leave false unless legacy clients force your hand.
	DisablePKCEForPublicClients bool

	// AllowPlainChallengeMethod registers the downgraded "plain" PKCE
	// method in addition to S256.
	AllowPlainChallengeMethod bool

	// Events is the synchronous audit observer. Defaults to a
	// slog-backed security.Auditor.
	Events security.Events

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Instrumentation is optional; when nil a no-op instance is created.
	Instrumentation *instrumentation.Instrumentation
}

// applySecureDefaults fills zero values with the secure defaults and logs
// warnings for explicitly weakened settings.
func applySecureDefaults(config *Config, logger *slog.Logger) *Config {
	if config.AuthorizationCodeTTL == 0 {
		config.AuthorizationCodeTTL = 10 * time.Minute
	}
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = time.Hour
	}
	if config.RefreshTokenTTL == 0 {
		config.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if config.IdentifierBytes == 0 {
		config.IdentifierBytes = security.DefaultIdentifierBytes
	}

	if config.DisablePKCEForPublicClients {
		logger.Warn("PKCE is disabled for public clients",
			"risk", "authorization code interception attacks",
			"recommendation", "leave DisablePKCEForPublicClients unset")
	}
	if config.AllowPlainChallengeMethod {
		logger.Warn("plain PKCE method is allowed",
			"risk", "weak code challenge protection",
			"recommendation", "leave AllowPlainChallengeMethod unset to require S256")
	}

	return config
}

package grant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/oauthkit/oauthkit"
	"github.com/oauthkit/oauthkit/response"
	"github.com/oauthkit/oauthkit/security"
	"github.com/oauthkit/oauthkit/storage"
)

// maxGenerationAttempts bounds the identifier collision retry loop. When a
// store reports a duplicate on every attempt, issuance fails after exactly
// this many attempts.
const maxGenerationAttempts = 10

// CoreConfig configures the shared grant core.
type CoreConfig struct {
	// Required stores.
	Clients      storage.ClientStore
	Scopes       storage.ScopeStore
	AccessTokens storage.AccessTokenStore

	// Optional stores, checked by the grants that need them at Init.
	AuthorizationCodes storage.AuthorizationCodeStore
	RefreshTokens      storage.RefreshTokenStore
	Users              storage.UserStore

	// Encryptor seals authorization-code and refresh-token payloads.
	// Required.
	Encryptor *security.Encryptor

	// Events is the synchronous audit observer. Defaults to NopEvents.
	Events security.Events

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	AuthorizationCodeTTL time.Duration
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration

	// DefaultScopes substitutes for requests naming no scopes.
	DefaultScopes []string

	// IdentifierBytes is the entropy of generated identifiers. Defaults
	// to security.DefaultIdentifierBytes (40 bytes, 80 hex chars).
	IdentifierBytes int

	// RequirePKCEForPublicClients is enforced by the authorization-code
	// grant. The server applies its secure default (true) before
	// constructing the core.
	RequirePKCEForPublicClients bool
}

// Core carries the collaborators and configuration shared by all grants.
// Immutable after construction; grants read from it only.
type Core struct {
	clients      storage.ClientStore
	scopes       storage.ScopeStore
	authCodes    storage.AuthorizationCodeStore
	accessTokens storage.AccessTokenStore
	refresh      storage.RefreshTokenStore
	users        storage.UserStore

	encryptor *security.Encryptor
	events    security.Events
	logger    *slog.Logger

	authCodeTTL     time.Duration
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration

	defaultScopes   []string
	identifierBytes int
	requirePKCE     bool

	verifiers map[string]security.CodeChallengeVerifier
}

// NewCore validates the configuration and builds the shared core. The S256
// PKCE verifier is always registered; register PlainVerifier explicitly to
// accept the downgraded "plain" method.
func NewCore(cfg CoreConfig) (*Core, error) {
	if cfg.Clients == nil {
		return nil, errors.New("client store is required")
	}
	if cfg.Scopes == nil {
		return nil, errors.New("scope store is required")
	}
	if cfg.AccessTokens == nil {
		return nil, errors.New("access token store is required")
	}
	if cfg.Encryptor == nil {
		return nil, errors.New("encryptor is required")
	}

	events := cfg.Events
	if events == nil {
		events = security.NopEvents{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	identifierBytes := cfg.IdentifierBytes
	if identifierBytes <= 0 {
		identifierBytes = security.DefaultIdentifierBytes
	}

	c := &Core{
		clients:         cfg.Clients,
		scopes:          cfg.Scopes,
		authCodes:       cfg.AuthorizationCodes,
		accessTokens:    cfg.AccessTokens,
		refresh:         cfg.RefreshTokens,
		users:           cfg.Users,
		encryptor:       cfg.Encryptor,
		events:          events,
		logger:          logger,
		authCodeTTL:     cfg.AuthorizationCodeTTL,
		accessTokenTTL:  cfg.AccessTokenTTL,
		refreshTokenTTL: cfg.RefreshTokenTTL,
		defaultScopes:   cfg.DefaultScopes,
		identifierBytes: identifierBytes,
		requirePKCE:     cfg.RequirePKCEForPublicClients,
		verifiers:       make(map[string]security.CodeChallengeVerifier),
	}
	c.RegisterCodeChallengeVerifier(security.S256Verifier{})

	return c, nil
}

// RegisterCodeChallengeVerifier adds a PKCE verification strategy. Unknown
// methods presented by clients are a request error, not a crash.
func (c *Core) RegisterCodeChallengeVerifier(v security.CodeChallengeVerifier) {
	c.verifiers[v.Method()] = v
}

func (c *Core) verifier(method string) (security.CodeChallengeVerifier, bool) {
	v, ok := c.verifiers[method]
	return v, ok
}

// challengeMethods lists registered methods for error hints, sorted for
// stable output.
func (c *Core) challengeMethods() string {
	methods := make([]string, 0, len(c.verifiers))
	for m := range c.verifiers {
		methods = append(methods, "`"+m+"`")
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}

// validateClient authenticates the token-endpoint caller, emitting an
// audit event before raising invalid_client.
func (c *Core) validateClient(ctx context.Context, clientID, clientSecret, grantType string) (*storage.Client, error) {
	if clientID == "" {
		return nil, oauthkit.NewInvalidRequest("client_id")
	}

	client, err := c.clients.ValidateClient(ctx, clientID, clientSecret, grantType)
	if err != nil {
		c.events.ClientAuthenticationFailed(ctx, clientID)
		c.logger.Debug("client authentication failed",
			"client_id", clientID,
			"grant_type", grantType)
		return nil, oauthkit.NewInvalidClient()
	}

	return client, nil
}

// lookupClient resolves the authorization-endpoint client without checking
// credentials.
func (c *Core) lookupClient(ctx context.Context, clientID string) (*storage.Client, error) {
	if clientID == "" {
		return nil, oauthkit.NewInvalidRequest("client_id")
	}

	client, err := c.clients.GetClient(ctx, clientID)
	if err != nil {
		c.events.ClientAuthenticationFailed(ctx, clientID)
		return nil, oauthkit.NewInvalidClient()
	}

	return client, nil
}

// validateRedirectURI resolves the effective redirect URI. A presented URI
// must byte-for-byte match the client's registered one; prefix or pattern
// matching would reopen the open-redirect hole this check exists to close.
// With nothing presented, the client must have one registered.
func (c *Core) validateRedirectURI(ctx context.Context, client *storage.Client, presented string) (string, error) {
	if presented == "" {
		if client.RedirectURI == "" {
			c.events.RedirectURIMismatch(ctx, client.ID, presented)
			return "", oauthkit.NewInvalidClient()
		}
		return client.RedirectURI, nil
	}

	if client.RedirectURI != "" && client.RedirectURI != presented {
		c.events.RedirectURIMismatch(ctx, client.ID, presented)
		return "", oauthkit.NewInvalidClient()
	}

	return presented, nil
}

// validateScopes resolves requested scope identifiers against the scope
// store, substituting the configured default scopes when none were
// requested. An unknown scope fails invalid_scope naming it.
func (c *Core) validateScopes(ctx context.Context, requested []string) ([]storage.Scope, error) {
	if len(requested) == 0 {
		requested = c.defaultScopes
	}

	scopes := make([]storage.Scope, 0, len(requested))
	for _, id := range requested {
		scope, err := c.scopes.GetScope(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, oauthkit.NewInvalidScope(id)
			}
			c.logger.Error("scope lookup failed", "scope", id, "error", err)
			return nil, oauthkit.NewServerError("could not resolve the requested scopes")
		}
		scopes = append(scopes, *scope)
	}

	return scopes, nil
}

// finalizeScopes lets the scope store apply policy before token issuance.
func (c *Core) finalizeScopes(ctx context.Context, scopes []storage.Scope, grantType string, client *storage.Client, userID string) ([]storage.Scope, error) {
	finalized, err := c.scopes.FinalizeScopes(ctx, scopes, grantType, client, userID)
	if err != nil {
		c.logger.Error("scope finalization failed", "client_id", client.ID, "error", err)
		return nil, oauthkit.NewServerError("could not finalize the requested scopes")
	}
	return finalized, nil
}

// persistWithRetry runs the generate-identifier/persist sequence, retrying
// on duplicate identifiers up to the fixed bound and surfacing the
// collision as a fatal error once attempts exhaust. This is the only
// internally retried condition in the engine.
func (c *Core) persistWithRetry(ctx context.Context, what string, persist func(id string) error) (string, error) {
	for attempt := 1; attempt <= maxGenerationAttempts; attempt++ {
		id, err := security.GenerateIdentifier(c.identifierBytes)
		if err != nil {
			c.logger.Error("identifier generation failed", "error", err)
			return "", oauthkit.NewServerError("could not generate a random identifier")
		}

		err = persist(id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, storage.ErrDuplicateIdentifier) {
			c.logger.Error("persist failed", "entity", what, "error", err)
			return "", oauthkit.NewServerError(fmt.Sprintf("could not persist the %s", what))
		}

		c.logger.Warn("identifier collision, retrying",
			"entity", what,
			"attempt", attempt)
	}

	return "", oauthkit.NewDuplicateIdentifier()
}

// issueAccessToken creates, identifies, and persists an access token.
func (c *Core) issueAccessToken(ctx context.Context, client *storage.Client, scopes []storage.Scope, userID string) (*storage.AccessToken, error) {
	token, err := c.accessTokens.NewAccessToken(ctx, client, scopes, userID)
	if err != nil {
		c.logger.Error("access token construction failed", "client_id", client.ID, "error", err)
		return nil, oauthkit.NewServerError("could not create an access token")
	}
	token.ClientID = client.ID
	token.UserID = userID
	token.Scopes = scopes
	token.ExpiresAt = time.Now().Add(c.accessTokenTTL)

	id, err := c.persistWithRetry(ctx, "access token", func(id string) error {
		token.ID = id
		return c.accessTokens.PersistAccessToken(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	token.ID = id

	c.events.AccessTokenIssued(ctx, token.ID, client.ID, userID, storage.ScopeIDs(scopes))
	c.logger.Debug("access token issued",
		"token_id_prefix", tokenPrefix(token.ID),
		"client_id", client.ID)

	return token, nil
}

// issueRefreshToken creates and persists a refresh token for the given
// access token. Returns (nil, nil) when the store declines to issue one,
// or when no refresh token store is configured.
func (c *Core) issueRefreshToken(ctx context.Context, accessToken *storage.AccessToken) (*storage.RefreshToken, error) {
	if c.refresh == nil {
		return nil, nil
	}

	token, err := c.refresh.NewRefreshToken(ctx)
	if err != nil {
		c.logger.Error("refresh token construction failed", "error", err)
		return nil, oauthkit.NewServerError("could not create a refresh token")
	}
	if token == nil {
		return nil, nil
	}
	token.AccessTokenID = accessToken.ID
	token.ExpiresAt = time.Now().Add(c.refreshTokenTTL)

	id, err := c.persistWithRetry(ctx, "refresh token", func(id string) error {
		token.ID = id
		return c.refresh.PersistRefreshToken(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	token.ID = id

	c.events.RefreshTokenIssued(ctx, token.ID, accessToken.ClientID)

	return token, nil
}

// issueAuthorizationCode creates, identifies, and persists a code record.
func (c *Core) issueAuthorizationCode(ctx context.Context, ar *AuthorizationRequest) (*storage.AuthorizationCode, error) {
	code := &storage.AuthorizationCode{
		ClientID:            ar.Client.ID,
		UserID:              ar.User.ID,
		RedirectURI:         ar.RedirectURI,
		Scopes:              ar.Scopes,
		ExpiresAt:           time.Now().Add(c.authCodeTTL),
		CodeChallenge:       ar.CodeChallenge,
		CodeChallengeMethod: ar.CodeChallengeMethod,
	}

	id, err := c.persistWithRetry(ctx, "authorization code", func(id string) error {
		code.ID = id
		return c.authCodes.PersistAuthorizationCode(ctx, code)
	})
	if err != nil {
		return nil, err
	}
	code.ID = id

	c.events.AuthorizationCodeIssued(ctx, code.ID, ar.Client.ID, ar.User.ID)

	return code, nil
}

// bearerResponse assembles the token-endpoint success response, sealing
// the refresh token payload when one was issued.
func (c *Core) bearerResponse(accessToken *storage.AccessToken, refreshToken *storage.RefreshToken) (*response.BearerToken, error) {
	bearer := &response.BearerToken{
		AccessToken: accessToken.ID,
		TokenType:   oauthkit.TokenTypeBearer,
		ExpiresIn:   int64(time.Until(accessToken.ExpiresAt).Seconds()),
		Scope:       strings.Join(storage.ScopeIDs(accessToken.Scopes), " "),
	}

	if refreshToken != nil {
		sealed, err := c.sealRefreshTokenPayload(refreshTokenPayload{
			ClientID:       accessToken.ClientID,
			RefreshTokenID: refreshToken.ID,
			AccessTokenID:  accessToken.ID,
			Scopes:         storage.ScopeIDs(accessToken.Scopes),
			UserID:         accessToken.UserID,
			ExpireTime:     refreshToken.ExpiresAt.Unix(),
		})
		if err != nil {
			return nil, err
		}
		bearer.RefreshToken = sealed
	}

	return bearer, nil
}

// deniedRedirect builds the AccessDenied error whose redirect carries the
// state back to the client (RFC 6749 §4.1.2.1).
func (c *Core) deniedRedirect(redirectURI, state string, fragment bool) error {
	uri := redirectURI
	if state != "" {
		if withState, err := response.MakeRedirectURI(redirectURI, url.Values{"state": {state}}, fragment); err == nil {
			uri = withState
		}
	}
	return oauthkit.NewAccessDenied("The user denied the request").WithRedirect(uri, fragment)
}

// tokenPrefix truncates an identifier for logging.
func tokenPrefix(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

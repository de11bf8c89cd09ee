// Package storage defines the persistence interfaces the grant engine
// depends on, together with the entities they exchange. Implementations
// must enforce identifier uniqueness and report collisions with
// ErrDuplicateIdentifier; the engine's retry loop depends on that signal.
package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by store implementations.
var (
	// ErrNotFound is returned when an entity does not exist. Kept generic
	// to prevent enumeration of clients, scopes, or users.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateIdentifier is returned by Persist* methods when the
	// entity's identifier already exists. The grant engine retries
	// identifier generation a bounded number of times on this error.
	ErrDuplicateIdentifier = errors.New("duplicate identifier")
)

// Client is a registered OAuth client. Immutable from the engine's
// perspective; owned by the client store.
type Client struct {
	// ID is the client identifier presented in client_id.
	ID string

	// Name is the human-readable display name.
	Name string

	// RedirectURI is the registered redirect URI. Empty means none
	// registered, in which case authorization requests must supply one.
	RedirectURI string

	// Confidential marks clients that hold a secret. Public clients
	// (Confidential=false) are required to use PKCE by default.
	Confidential bool
}

// Scope is a named permission unit attached to codes and tokens.
type Scope struct {
	ID string
}

// ScopeIDs flattens a scope slice to its identifiers.
func ScopeIDs(scopes []Scope) []string {
	ids := make([]string, len(scopes))
	for i, s := range scopes {
		ids[i] = s.ID
	}
	return ids
}

// User is an authenticated resource owner.
type User struct {
	ID string
}

// AuthorizationCode is the revocation-bookkeeping record for an issued
// authorization code. The code handed to the client is a sealed payload;
// the store only ever sees the identifier carried inside it.
type AuthorizationCode struct {
	ID                  string
	ClientID            string
	UserID              string
	RedirectURI         string
	Scopes              []Scope
	ExpiresAt           time.Time
	CodeChallenge       string
	CodeChallengeMethod string
}

// AccessToken is an issued access token. UserID is empty for the
// client-credentials grant.
type AccessToken struct {
	ID        string
	ClientID  string
	UserID    string
	Scopes    []Scope
	ExpiresAt time.Time
}

// RefreshToken is an issued refresh token, tied to the access token it was
// issued alongside.
type RefreshToken struct {
	ID            string
	AccessTokenID string
	ExpiresAt     time.Time
}

// ClientStore resolves and authenticates clients.
type ClientStore interface {
	// GetClient fetches a client by identifier without checking
	// credentials. Returns ErrNotFound when unknown.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// ValidateClient authenticates a client for the given grant type.
	// Implementations must compare secrets in constant time and return
	// ErrNotFound for both unknown clients and wrong secrets.
	ValidateClient(ctx context.Context, clientID, clientSecret, grantType string) (*Client, error)
}

// ScopeStore resolves scope identifiers and applies scope policy.
type ScopeStore interface {
	// GetScope fetches a scope by identifier. Returns ErrNotFound when
	// unknown.
	GetScope(ctx context.Context, scopeID string) (*Scope, error)

	// FinalizeScopes lets the store add or remove scopes before a token
	// is issued, given the grant type, client, and optional user.
	FinalizeScopes(ctx context.Context, scopes []Scope, grantType string, client *Client, userID string) ([]Scope, error)
}

// AuthorizationCodeStore tracks issued authorization codes by identifier
// for one-time-use enforcement.
type AuthorizationCodeStore interface {
	// PersistAuthorizationCode stores a new code record. Returns
	// ErrDuplicateIdentifier when the identifier already exists.
	PersistAuthorizationCode(ctx context.Context, code *AuthorizationCode) error

	RevokeAuthorizationCode(ctx context.Context, codeID string) error
	IsAuthorizationCodeRevoked(ctx context.Context, codeID string) (bool, error)
}

// AccessTokenStore creates and tracks access tokens.
type AccessTokenStore interface {
	// NewAccessToken constructs an unsaved token for the given client,
	// scopes, and optional user. The engine assigns the identifier and
	// expiry before persisting.
	NewAccessToken(ctx context.Context, client *Client, scopes []Scope, userID string) (*AccessToken, error)

	// PersistAccessToken stores a new token. Returns
	// ErrDuplicateIdentifier when the identifier already exists.
	PersistAccessToken(ctx context.Context, token *AccessToken) error

	RevokeAccessToken(ctx context.Context, tokenID string) error
	IsAccessTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RefreshTokenStore creates and tracks refresh tokens.
type RefreshTokenStore interface {
	// NewRefreshToken constructs an unsaved refresh token. A store may
	// return (nil, nil) to decline issuing refresh tokens entirely; the
	// token response then simply omits refresh_token.
	NewRefreshToken(ctx context.Context) (*RefreshToken, error)

	// PersistRefreshToken stores a new refresh token. Returns
	// ErrDuplicateIdentifier when the identifier already exists.
	PersistRefreshToken(ctx context.Context, token *RefreshToken) error

	RevokeRefreshToken(ctx context.Context, tokenID string) error
	IsRefreshTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// UserStore authenticates resource owners for the password grant.
type UserStore interface {
	// GetUserByCredentials returns the user matching the credentials, or
	// ErrNotFound. Implementations must compare passwords in constant
	// time.
	GetUserByCredentials(ctx context.Context, username, password, grantType string, client *Client) (*User, error)
}

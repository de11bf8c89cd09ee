// Package grant implements the OAuth 2.0 grant engine: the five-method
// grant contract, the concrete grants (authorization code with PKCE,
// client credentials, refresh token, password, implicit), and the shared
// validation and issuance helpers they compose.
//
// Grants are stateless across requests. Parameters are bound per call and
// passed explicitly; a single grant value is safe for concurrent use.
package grant

import (
	"context"
	"errors"

	"github.com/oauthkit/oauthkit/request"
	"github.com/oauthkit/oauthkit/response"
	"github.com/oauthkit/oauthkit/storage"
)

// Grant is the contract every flow implements. The server dispatches an
// authorization request to the first grant whose
// CanRespondToAuthorizationRequest predicate is true, and a token request
// to the first grant whose CanRespondToAccessTokenRequest predicate is
// true.
type Grant interface {
	// Identifier returns the grant_type identifier of this grant.
	Identifier() string

	// Init injects the shared core exactly once at registration time.
	// It fails when a collaborator this grant depends on is missing.
	Init(core *Core) error

	// CanRespondToAuthorizationRequest reports whether this grant serves
	// the given authorization-endpoint request.
	CanRespondToAuthorizationRequest(p request.AuthorizeParams) bool

	// ValidateAuthorizationRequest validates the request and returns the
	// transient AuthorizationRequest the caller completes after user
	// login and consent.
	ValidateAuthorizationRequest(ctx context.Context, p request.AuthorizeParams) (*AuthorizationRequest, error)

	// CompleteAuthorizationRequest finishes an approved (or denied)
	// authorization request and produces the redirect response.
	CompleteAuthorizationRequest(ctx context.Context, ar *AuthorizationRequest) (response.Type, error)

	// CanRespondToAccessTokenRequest reports whether this grant serves
	// the given token-endpoint request.
	CanRespondToAccessTokenRequest(p request.TokenParams) bool

	// RespondToAccessTokenRequest performs the token exchange.
	RespondToAccessTokenRequest(ctx context.Context, p request.TokenParams) (response.Type, error)
}

// AuthorizationRequest is the transient state between validating an
// authorization request and completing it. The caller authenticates the
// resource owner out of band, sets User and Approved, then passes the
// value back to CompleteAuthorizationRequest. Never persisted by the
// engine.
type AuthorizationRequest struct {
	// GrantTypeID identifies the grant that produced this request.
	GrantTypeID string

	Client *storage.Client
	User   *storage.User

	Scopes      []storage.Scope
	RedirectURI string
	State       string

	CodeChallenge       string
	CodeChallengeMethod string

	// Approved is set by the caller after the consent step.
	Approved bool
}

// errNoUser is the programming-contract violation raised when
// CompleteAuthorizationRequest is called without an authenticated user.
// Deliberately not part of the protocol error taxonomy.
var errNoUser = errors.New("an authenticated user must be set on the authorization request before it is completed")

// tokenOnly provides the authorization-endpoint stubs for grants that only
// serve the token endpoint.
type tokenOnly struct{}

func (tokenOnly) CanRespondToAuthorizationRequest(request.AuthorizeParams) bool { return false }

func (tokenOnly) ValidateAuthorizationRequest(context.Context, request.AuthorizeParams) (*AuthorizationRequest, error) {
	return nil, errors.New("this grant cannot validate an authorization request")
}

func (tokenOnly) CompleteAuthorizationRequest(context.Context, *AuthorizationRequest) (response.Type, error) {
	return nil, errors.New("this grant cannot complete an authorization request")
}

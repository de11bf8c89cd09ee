package security

import "context"

// Event type constants used by the Auditor and by custom Events
// implementations.
const (
	// EventClientAuthenticationFailed is emitted when client lookup or
	// secret validation fails during an authorization or token request.
	EventClientAuthenticationFailed = "client_authentication_failed"

	// EventUserAuthenticationFailed is emitted when resource-owner
	// credential validation fails in the password grant.
	EventUserAuthenticationFailed = "user_authentication_failed"

	// EventAuthorizationCodeIssued is emitted when an authorization code
	// is issued and persisted.
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventAuthorizationCodeReused is emitted when a revoked code is
	// presented again (replay attempt).
	EventAuthorizationCodeReused = "authorization_code_reused"

	// EventAccessTokenIssued is emitted when an access token is issued.
	EventAccessTokenIssued = "access_token_issued" //nolint:gosec // event type name, not a credential

	// EventRefreshTokenIssued is emitted when a refresh token is issued.
	EventRefreshTokenIssued = "refresh_token_issued" //nolint:gosec // event type name, not a credential

	// EventPKCEVerificationFailed is emitted when code_verifier
	// validation fails at exchange time.
	EventPKCEVerificationFailed = "pkce_verification_failed"

	// EventRedirectURIMismatch is emitted when a presented redirect URI
	// does not match the client's registered one.
	EventRedirectURIMismatch = "redirect_uri_mismatch"

	// EventRateLimitExceeded is emitted when a caller exceeds the
	// endpoint rate limit.
	EventRateLimitExceeded = "rate_limit_exceeded"
)

// Events is the synchronous observer the grant engine notifies on
// security-relevant moments. Implementations must be fast and must not
// block; the engine invokes them inline on the request path.
type Events interface {
	// ClientAuthenticationFailed is invoked before the engine raises an
	// invalid_client error.
	ClientAuthenticationFailed(ctx context.Context, clientID string)

	// UserAuthenticationFailed is invoked before the password grant
	// raises an invalid_grant error for bad credentials.
	UserAuthenticationFailed(ctx context.Context, username, clientID string)

	// AuthorizationCodeIssued is invoked after a code is persisted.
	AuthorizationCodeIssued(ctx context.Context, codeID, clientID, userID string)

	// AuthorizationCodeReused is invoked when a revoked code is
	// presented again.
	AuthorizationCodeReused(ctx context.Context, codeID, clientID string)

	// AccessTokenIssued is invoked after an access token is persisted.
	AccessTokenIssued(ctx context.Context, tokenID, clientID, userID string, scopes []string)

	// RefreshTokenIssued is invoked after a refresh token is persisted.
	RefreshTokenIssued(ctx context.Context, tokenID, clientID string)

	// PKCEVerificationFailed is invoked when code_verifier validation
	// fails.
	PKCEVerificationFailed(ctx context.Context, clientID string)

	// RedirectURIMismatch is invoked when redirect URI validation fails.
	RedirectURIMismatch(ctx context.Context, clientID, redirectURI string)
}

// NopEvents is an Events implementation that discards everything. Used
// when no observer is configured.
type NopEvents struct{}

var _ Events = NopEvents{}

func (NopEvents) ClientAuthenticationFailed(context.Context, string)                  {}
func (NopEvents) UserAuthenticationFailed(context.Context, string, string)            {}
func (NopEvents) AuthorizationCodeIssued(context.Context, string, string, string)     {}
func (NopEvents) AuthorizationCodeReused(context.Context, string, string)             {}
func (NopEvents) AccessTokenIssued(context.Context, string, string, string, []string) {}
func (NopEvents) RefreshTokenIssued(context.Context, string, string)                  {}
func (NopEvents) PKCEVerificationFailed(context.Context, string)                      {}
func (NopEvents) RedirectURIMismatch(context.Context, string, string)                 {}

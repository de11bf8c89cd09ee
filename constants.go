package oauthkit

// Grant type identifiers as they appear in the grant_type parameter.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
	GrantPassword          = "password"
	GrantImplicit          = "implicit"
)

// Response type identifiers as they appear in the response_type parameter.
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// TokenTypeBearer is the token_type value of every token response (RFC 6750).
const TokenTypeBearer = "Bearer"

// PKCE code_challenge_method values (RFC 7636).
const (
	ChallengeMethodPlain = "plain"
	ChallengeMethodS256  = "S256"
)

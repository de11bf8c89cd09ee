package grant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/oauthkit/oauthkit"
	"github.com/oauthkit/oauthkit/request"
	"github.com/oauthkit/oauthkit/response"
	"github.com/oauthkit/oauthkit/security"
	"github.com/oauthkit/oauthkit/storage"
)

// AuthorizationCode implements the authorization-code grant with PKCE
// (RFC 6749 §4.1, RFC 7636).
type AuthorizationCode struct {
	core *Core
}

var _ Grant = (*AuthorizationCode)(nil)

// NewAuthorizationCode creates the grant. The server injects the shared
// core at registration time.
func NewAuthorizationCode() *AuthorizationCode {
	return &AuthorizationCode{}
}

// Identifier returns "authorization_code".
func (g *AuthorizationCode) Identifier() string { return oauthkit.GrantAuthorizationCode }

// Init implements Grant.
func (g *AuthorizationCode) Init(core *Core) error {
	if core.authCodes == nil {
		return errors.New("authorization code grant requires an authorization code store")
	}
	g.core = core
	return nil
}

// CanRespondToAuthorizationRequest implements Grant.
func (g *AuthorizationCode) CanRespondToAuthorizationRequest(p request.AuthorizeParams) bool {
	return p.ResponseType == oauthkit.ResponseTypeCode && p.ClientID != ""
}

// ValidateAuthorizationRequest implements Grant.
func (g *AuthorizationCode) ValidateAuthorizationRequest(ctx context.Context, p request.AuthorizeParams) (*AuthorizationRequest, error) {
	c := g.core

	client, err := c.lookupClient(ctx, p.ClientID)
	if err != nil {
		return nil, err
	}

	redirectURI, err := c.validateRedirectURI(ctx, client, p.RedirectURI)
	if err != nil {
		return nil, err
	}

	scopes, err := c.validateScopes(ctx, p.Scopes)
	if err != nil {
		// The redirect target is validated by now, so scope errors go
		// back to the client as a redirect.
		return nil, attachRedirect(err, redirectURI, p.State, false)
	}

	if p.CodeChallenge != "" {
		if _, ok := c.verifier(p.CodeChallengeMethod); !ok {
			return nil, oauthkit.NewInvalidRequest("code_challenge_method",
				fmt.Sprintf("Code challenge method must be one of %s", c.challengeMethods()))
		}
		if !security.ValidCodeVerifierFormat(p.CodeChallenge) {
			return nil, oauthkit.NewInvalidRequest("code_challenge",
				"Code challenge must follow the specifications of RFC-7636.")
		}
	} else if c.requirePKCE && !client.Confidential {
		return nil, oauthkit.NewInvalidRequest("code_challenge",
			"Code challenge must be provided for public clients")
	}

	return &AuthorizationRequest{
		GrantTypeID:         g.Identifier(),
		Client:              client,
		Scopes:              scopes,
		RedirectURI:         redirectURI,
		State:               p.State,
		CodeChallenge:       p.CodeChallenge,
		CodeChallengeMethod: p.CodeChallengeMethod,
	}, nil
}

// CompleteAuthorizationRequest implements Grant.
func (g *AuthorizationCode) CompleteAuthorizationRequest(ctx context.Context, ar *AuthorizationRequest) (response.Type, error) {
	c := g.core

	if ar.User == nil || ar.User.ID == "" {
		return nil, errNoUser
	}

	if !ar.Approved {
		return nil, c.deniedRedirect(ar.RedirectURI, ar.State, false)
	}

	code, err := c.issueAuthorizationCode(ctx, ar)
	if err != nil {
		return nil, err
	}

	sealed, err := c.sealAuthCodePayload(authCodePayload{
		AuthCodeID:          code.ID,
		ClientID:            ar.Client.ID,
		UserID:              ar.User.ID,
		RedirectURI:         ar.RedirectURI,
		Scopes:              storage.ScopeIDs(ar.Scopes),
		ExpireTime:          code.ExpiresAt.Unix(),
		CodeChallenge:       ar.CodeChallenge,
		CodeChallengeMethod: ar.CodeChallengeMethod,
	})
	if err != nil {
		return nil, err
	}

	params := url.Values{"code": {sealed}}
	if ar.State != "" {
		params.Set("state", ar.State)
	}
	uri, err := response.MakeRedirectURI(ar.RedirectURI, params, false)
	if err != nil {
		return nil, oauthkit.NewServerError("could not build the redirect URI")
	}

	return &response.Redirect{URI: uri}, nil
}

// CanRespondToAccessTokenRequest implements Grant.
func (g *AuthorizationCode) CanRespondToAccessTokenRequest(p request.TokenParams) bool {
	return p.GrantType == oauthkit.GrantAuthorizationCode
}

// RespondToAccessTokenRequest implements Grant.
func (g *AuthorizationCode) RespondToAccessTokenRequest(ctx context.Context, p request.TokenParams) (response.Type, error) {
	c := g.core

	client, err := c.validateClient(ctx, p.ClientID, p.ClientSecret, g.Identifier())
	if err != nil {
		return nil, err
	}

	if p.Code == "" {
		return nil, oauthkit.NewInvalidRequest("code")
	}

	payload, err := c.openAuthCodePayload(p.Code)
	if err != nil {
		return nil, err
	}

	if err := g.validatePayload(ctx, payload, client, p.RedirectURI); err != nil {
		return nil, err
	}
	if err := g.verifyCodeChallenge(ctx, payload, client, p.CodeVerifier); err != nil {
		return nil, err
	}

	scopes := make([]storage.Scope, 0, len(payload.Scopes))
	for _, id := range payload.Scopes {
		scopes = append(scopes, storage.Scope{ID: id})
	}
	scopes, err = c.finalizeScopes(ctx, scopes, g.Identifier(), client, payload.UserID)
	if err != nil {
		return nil, err
	}

	accessToken, err := c.issueAccessToken(ctx, client, scopes, payload.UserID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := c.issueRefreshToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	// One-time-use enforcement: revoke before handing out the response.
	if err := c.authCodes.RevokeAuthorizationCode(ctx, payload.AuthCodeID); err != nil {
		c.logger.Error("authorization code revocation failed",
			"code_id_prefix", tokenPrefix(payload.AuthCodeID),
			"error", err)
		return nil, oauthkit.NewServerError("could not revoke the authorization code")
	}

	return c.bearerResponse(accessToken, refreshToken)
}

func (g *AuthorizationCode) validatePayload(ctx context.Context, payload *authCodePayload, client *storage.Client, presentedRedirectURI string) error {
	c := g.core

	if time.Now().Unix() >= payload.ExpireTime {
		return oauthkit.NewInvalidGrant("Authorization code has expired")
	}

	revoked, err := c.authCodes.IsAuthorizationCodeRevoked(ctx, payload.AuthCodeID)
	if err != nil {
		c.logger.Error("authorization code revocation check failed", "error", err)
		return oauthkit.NewServerError("could not check the authorization code")
	}
	if revoked {
		c.events.AuthorizationCodeReused(ctx, payload.AuthCodeID, client.ID)
		return oauthkit.NewInvalidGrant("Authorization code has been revoked")
	}

	if payload.ClientID != client.ID {
		return oauthkit.NewInvalidGrant("Authorization code was not issued to this client")
	}

	if payload.RedirectURI != presentedRedirectURI {
		return oauthkit.NewInvalidRequest("redirect_uri")
	}

	return nil
}

func (g *AuthorizationCode) verifyCodeChallenge(ctx context.Context, payload *authCodePayload, client *storage.Client, codeVerifier string) error {
	c := g.core

	if payload.CodeChallenge == "" {
		return nil
	}

	if codeVerifier == "" {
		return oauthkit.NewInvalidRequest("code_verifier")
	}
	if !security.ValidCodeVerifierFormat(codeVerifier) {
		return oauthkit.NewInvalidRequest("code_verifier",
			"Code Verifier must follow the specifications of RFC-7636.")
	}

	// The method was validated at issuance; losing it by redeem time is
	// the server's failure, not the client's.
	verifier, ok := c.verifier(payload.CodeChallengeMethod)
	if !ok {
		return oauthkit.NewServerError(
			fmt.Sprintf("unsupported code challenge method `%s`", payload.CodeChallengeMethod))
	}

	if !verifier.VerifyCodeChallenge(codeVerifier, payload.CodeChallenge) {
		c.events.PKCEVerificationFailed(ctx, client.ID)
		return oauthkit.NewInvalidGrant("Failed to verify `code_verifier`")
	}

	return nil
}

// attachRedirect decorates a protocol error with the validated redirect
// target and state so the user-agent is returned to the client.
func attachRedirect(err error, redirectURI, state string, fragment bool) error {
	var oerr *oauthkit.Error
	if !errors.As(err, &oerr) || redirectURI == "" {
		return err
	}

	uri := redirectURI
	if state != "" {
		if withState, mkErr := response.MakeRedirectURI(redirectURI, url.Values{"state": {state}}, fragment); mkErr == nil {
			uri = withState
		}
	}
	return oerr.WithRedirect(uri, fragment)
}

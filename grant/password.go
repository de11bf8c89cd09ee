package grant

import (
	"context"
	"errors"

	"github.com/oauthkit/oauthkit"
	"github.com/oauthkit/oauthkit/request"
	"github.com/oauthkit/oauthkit/response"
)

// Password implements the resource-owner password-credentials grant
// (RFC 6749 §4.3).
type Password struct {
	tokenOnly
	core *Core
}

var _ Grant = (*Password)(nil)

// NewPassword creates the grant.
func NewPassword() *Password {
	return &Password{}
}

// Identifier returns "password".
func (g *Password) Identifier() string { return oauthkit.GrantPassword }

// Init implements Grant.
func (g *Password) Init(core *Core) error {
	if core.users == nil {
		return errors.New("password grant requires a user store")
	}
	g.core = core
	return nil
}

// CanRespondToAccessTokenRequest implements Grant.
func (g *Password) CanRespondToAccessTokenRequest(p request.TokenParams) bool {
	return p.GrantType == oauthkit.GrantPassword
}

// RespondToAccessTokenRequest implements Grant.
func (g *Password) RespondToAccessTokenRequest(ctx context.Context, p request.TokenParams) (response.Type, error) {
	c := g.core

	client, err := c.validateClient(ctx, p.ClientID, p.ClientSecret, g.Identifier())
	if err != nil {
		return nil, err
	}

	if p.Username == "" {
		return nil, oauthkit.NewInvalidRequest("username")
	}
	if p.Password == "" {
		return nil, oauthkit.NewInvalidRequest("password")
	}

	user, err := c.users.GetUserByCredentials(ctx, p.Username, p.Password, g.Identifier(), client)
	if err != nil {
		c.events.UserAuthenticationFailed(ctx, p.Username, client.ID)
		return nil, oauthkit.NewInvalidGrant("The user credentials were incorrect")
	}

	scopes, err := c.validateScopes(ctx, p.Scopes)
	if err != nil {
		return nil, err
	}
	scopes, err = c.finalizeScopes(ctx, scopes, g.Identifier(), client, user.ID)
	if err != nil {
		return nil, err
	}

	accessToken, err := c.issueAccessToken(ctx, client, scopes, user.ID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := c.issueRefreshToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	return c.bearerResponse(accessToken, refreshToken)
}

package grant

import (
	"context"

	"github.com/oauthkit/oauthkit"
	"github.com/oauthkit/oauthkit/request"
	"github.com/oauthkit/oauthkit/response"
)

// ClientCredentials implements the client-credentials grant (RFC 6749
// §4.4): machine-to-machine token issuance for confidential clients, no
// user and no refresh token.
type ClientCredentials struct {
	tokenOnly
	core *Core
}

var _ Grant = (*ClientCredentials)(nil)

// NewClientCredentials creates the grant.
func NewClientCredentials() *ClientCredentials {
	return &ClientCredentials{}
}

// Identifier returns "client_credentials".
func (g *ClientCredentials) Identifier() string { return oauthkit.GrantClientCredentials }

// Init implements Grant.
func (g *ClientCredentials) Init(core *Core) error {
	g.core = core
	return nil
}

// CanRespondToAccessTokenRequest implements Grant.
func (g *ClientCredentials) CanRespondToAccessTokenRequest(p request.TokenParams) bool {
	return p.GrantType == oauthkit.GrantClientCredentials
}

// RespondToAccessTokenRequest implements Grant.
func (g *ClientCredentials) RespondToAccessTokenRequest(ctx context.Context, p request.TokenParams) (response.Type, error) {
	c := g.core

	client, err := c.validateClient(ctx, p.ClientID, p.ClientSecret, g.Identifier())
	if err != nil {
		return nil, err
	}
	if !client.Confidential {
		c.events.ClientAuthenticationFailed(ctx, client.ID)
		return nil, oauthkit.NewInvalidClient()
	}

	scopes, err := c.validateScopes(ctx, p.Scopes)
	if err != nil {
		return nil, err
	}
	scopes, err = c.finalizeScopes(ctx, scopes, g.Identifier(), client, "")
	if err != nil {
		return nil, err
	}

	accessToken, err := c.issueAccessToken(ctx, client, scopes, "")
	if err != nil {
		return nil, err
	}

	return c.bearerResponse(accessToken, nil)
}

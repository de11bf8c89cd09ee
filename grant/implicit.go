package grant

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oauthkit/oauthkit"
	"github.com/oauthkit/oauthkit/request"
	"github.com/oauthkit/oauthkit/response"
	"github.com/oauthkit/oauthkit/storage"
)

// Implicit implements the implicit grant (RFC 6749 §4.2): the access token
// is issued directly from the authorization endpoint, delivered in the
// redirect fragment. There is no token-exchange phase. Token issuance
// shares the bounded collision-retry path of the code grant.
type Implicit struct {
	core *Core
}

var _ Grant = (*Implicit)(nil)

// NewImplicit creates the grant.
func NewImplicit() *Implicit {
	return &Implicit{}
}

// Identifier returns "implicit".
func (g *Implicit) Identifier() string { return oauthkit.GrantImplicit }

// Init implements Grant.
func (g *Implicit) Init(core *Core) error {
	g.core = core
	return nil
}

// CanRespondToAuthorizationRequest implements Grant.
func (g *Implicit) CanRespondToAuthorizationRequest(p request.AuthorizeParams) bool {
	return p.ResponseType == oauthkit.ResponseTypeToken && p.ClientID != ""
}

// ValidateAuthorizationRequest implements Grant.
func (g *Implicit) ValidateAuthorizationRequest(ctx context.Context, p request.AuthorizeParams) (*AuthorizationRequest, error) {
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
		return nil, attachRedirect(err, redirectURI, p.State, true)
	}

	return &AuthorizationRequest{
		GrantTypeID: g.Identifier(),
		Client:      client,
		Scopes:      scopes,
		RedirectURI: redirectURI,
		State:       p.State,
	}, nil
}

// CompleteAuthorizationRequest implements Grant.
func (g *Implicit) CompleteAuthorizationRequest(ctx context.Context, ar *AuthorizationRequest) (response.Type, error) {
	c := g.core

	if ar.User == nil || ar.User.ID == "" {
		return nil, errNoUser
	}

	if !ar.Approved {
		return nil, c.deniedRedirect(ar.RedirectURI, ar.State, true)
	}

	scopes, err := c.finalizeScopes(ctx, ar.Scopes, g.Identifier(), ar.Client, ar.User.ID)
	if err != nil {
		return nil, err
	}

	accessToken, err := c.issueAccessToken(ctx, ar.Client, scopes, ar.User.ID)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"access_token": {accessToken.ID},
		"token_type":   {oauthkit.TokenTypeBearer},
		"expires_in":   {strconv.FormatInt(int64(time.Until(accessToken.ExpiresAt).Seconds()), 10)},
	}
	if len(scopes) > 0 {
		params.Set("scope", strings.Join(storage.ScopeIDs(scopes), " "))
	}
	if ar.State != "" {
		params.Set("state", ar.State)
	}

	uri, err := response.MakeRedirectURI(ar.RedirectURI, params, true)
	if err != nil {
		return nil, oauthkit.NewServerError("could not build the redirect URI")
	}

	return &response.Redirect{URI: uri}, nil
}

// CanRespondToAccessTokenRequest implements Grant. The implicit grant has
// no token-exchange phase.
func (g *Implicit) CanRespondToAccessTokenRequest(request.TokenParams) bool { return false }

// RespondToAccessTokenRequest implements Grant.
func (g *Implicit) RespondToAccessTokenRequest(context.Context, request.TokenParams) (response.Type, error) {
	return nil, errors.New("the implicit grant cannot respond to a token request")
}

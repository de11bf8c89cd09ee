package grant

import (
	"context"
	"errors"
	"time"

	"github.com/oauthkit/oauthkit"
	"github.com/oauthkit/oauthkit/request"
	"github.com/oauthkit/oauthkit/response"
	"github.com/oauthkit/oauthkit/storage"
)

// RefreshToken implements the refresh-token grant (RFC 6749 §6). Refresh
// tokens always rotate: every successful refresh issues a new refresh
// token and revokes both the presented one and the access token it was
// issued alongside.
type RefreshToken struct {
	tokenOnly
	core *Core
}

var _ Grant = (*RefreshToken)(nil)

// NewRefreshToken creates the grant.
func NewRefreshToken() *RefreshToken {
	return &RefreshToken{}
}

// Identifier returns "refresh_token".
func (g *RefreshToken) Identifier() string { return oauthkit.GrantRefreshToken }

// Init implements Grant.
func (g *RefreshToken) Init(core *Core) error {
	if core.refresh == nil {
		return errors.New("refresh token grant requires a refresh token store")
	}
	g.core = core
	return nil
}

// CanRespondToAccessTokenRequest implements Grant.
func (g *RefreshToken) CanRespondToAccessTokenRequest(p request.TokenParams) bool {
	return p.GrantType == oauthkit.GrantRefreshToken
}

// RespondToAccessTokenRequest implements Grant.
func (g *RefreshToken) RespondToAccessTokenRequest(ctx context.Context, p request.TokenParams) (response.Type, error) {
	c := g.core

	client, err := c.validateClient(ctx, p.ClientID, p.ClientSecret, g.Identifier())
	if err != nil {
		return nil, err
	}

	if p.RefreshToken == "" {
		return nil, oauthkit.NewInvalidRequest("refresh_token")
	}

	payload, err := c.openRefreshTokenPayload(p.RefreshToken)
	if err != nil {
		return nil, err
	}

	if payload.ClientID != client.ID {
		return nil, oauthkit.NewInvalidRequest("refresh_token", "Token is not linked to client")
	}
	if time.Now().Unix() >= payload.ExpireTime {
		return nil, oauthkit.NewInvalidGrant("Token has expired")
	}

	revoked, err := c.refresh.IsRefreshTokenRevoked(ctx, payload.RefreshTokenID)
	if err != nil {
		c.logger.Error("refresh token revocation check failed", "error", err)
		return nil, oauthkit.NewServerError("could not check the refresh token")
	}
	if revoked {
		return nil, oauthkit.NewInvalidGrant("Token has been revoked")
	}

	scopes, err := narrowScopes(payload.Scopes, p.Scopes)
	if err != nil {
		return nil, err
	}

	accessToken, err := c.issueAccessToken(ctx, client, scopes, payload.UserID)
	if err != nil {
		return nil, err
	}
	newRefresh, err := c.issueRefreshToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	// Rotation: retire the presented token and its access token only
	// after the replacements are persisted.
	if err := c.refresh.RevokeRefreshToken(ctx, payload.RefreshTokenID); err != nil {
		c.logger.Error("refresh token revocation failed",
			"token_id_prefix", tokenPrefix(payload.RefreshTokenID),
			"error", err)
		return nil, oauthkit.NewServerError("could not revoke the refresh token")
	}
	if err := c.accessTokens.RevokeAccessToken(ctx, payload.AccessTokenID); err != nil {
		c.logger.Error("access token revocation failed",
			"token_id_prefix", tokenPrefix(payload.AccessTokenID),
			"error", err)
		return nil, oauthkit.NewServerError("could not revoke the superseded access token")
	}

	return c.bearerResponse(accessToken, newRefresh)
}

// narrowScopes restricts the new token to a subset of the originally
// granted scopes. Requesting anything outside the original grant fails
// invalid_scope naming the scope.
func narrowScopes(granted, requested []string) ([]storage.Scope, error) {
	ids := granted
	if len(requested) > 0 {
		grantedSet := make(map[string]struct{}, len(granted))
		for _, id := range granted {
			grantedSet[id] = struct{}{}
		}
		for _, id := range requested {
			if _, ok := grantedSet[id]; !ok {
				return nil, oauthkit.NewInvalidScope(id)
			}
		}
		ids = requested
	}

	scopes := make([]storage.Scope, 0, len(ids))
	for _, id := range ids {
		scopes = append(scopes, storage.Scope{ID: id})
	}
	return scopes, nil
}

package grant

import (
	"encoding/json"

	"github.com/oauthkit/oauthkit"
)

// authCodePayload is the self-contained authorization code the client
// receives: sealed by the encryptor, opened and validated at exchange
// time. Revocation state is tracked separately by AuthCodeID, so the store
// never sees the sealed form.
type authCodePayload struct {
	AuthCodeID          string   `json:"auth_code_id"`
	ClientID            string   `json:"client_id"`
	UserID              string   `json:"user_id"`
	RedirectURI         string   `json:"redirect_uri"`
	Scopes              []string `json:"scopes"`
	ExpireTime          int64    `json:"expire_time"`
	CodeChallenge       string   `json:"code_challenge,omitempty"`
	CodeChallengeMethod string   `json:"code_challenge_method,omitempty"`
}

// refreshTokenPayload is the self-contained refresh token, sealed the same
// way.
type refreshTokenPayload struct {
	ClientID       string   `json:"client_id"`
	RefreshTokenID string   `json:"refresh_token_id"`
	AccessTokenID  string   `json:"access_token_id"`
	Scopes         []string `json:"scopes"`
	UserID         string   `json:"user_id"`
	ExpireTime     int64    `json:"expire_time"`
}

func (c *Core) sealAuthCodePayload(p authCodePayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		c.logger.Error("authorization code payload encoding failed", "error", err)
		return "", oauthkit.NewServerError("could not encode the authorization code payload")
	}

	sealed, err := c.encryptor.Encrypt(string(data))
	if err != nil {
		c.logger.Error("authorization code payload sealing failed", "error", err)
		return "", oauthkit.NewServerError("could not seal the authorization code payload")
	}

	return sealed, nil
}

func (c *Core) openAuthCodePayload(code string) (*authCodePayload, error) {
	plaintext, err := c.encryptor.Decrypt(code)
	if err != nil {
		return nil, oauthkit.NewInvalidRequest("code", "Cannot decrypt the authorization code")
	}

	var p authCodePayload
	if err := json.Unmarshal([]byte(plaintext), &p); err != nil {
		return nil, oauthkit.NewInvalidRequest("code", "Cannot decrypt the authorization code")
	}
	if p.AuthCodeID == "" {
		return nil, oauthkit.NewInvalidRequest("code", "Authorization code malformed")
	}

	return &p, nil
}

func (c *Core) sealRefreshTokenPayload(p refreshTokenPayload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		c.logger.Error("refresh token payload encoding failed", "error", err)
		return "", oauthkit.NewServerError("could not encode the refresh token payload")
	}

	sealed, err := c.encryptor.Encrypt(string(data))
	if err != nil {
		c.logger.Error("refresh token payload sealing failed", "error", err)
		return "", oauthkit.NewServerError("could not seal the refresh token payload")
	}

	return sealed, nil
}

func (c *Core) openRefreshTokenPayload(token string) (*refreshTokenPayload, error) {
	plaintext, err := c.encryptor.Decrypt(token)
	if err != nil {
		return nil, oauthkit.NewInvalidRequest("refresh_token", "Cannot decrypt the refresh token")
	}

	var p refreshTokenPayload
	if err := json.Unmarshal([]byte(plaintext), &p); err != nil {
		return nil, oauthkit.NewInvalidRequest("refresh_token", "Cannot decrypt the refresh token")
	}
	if p.RefreshTokenID == "" {
		return nil, oauthkit.NewInvalidRequest("refresh_token", "Refresh token malformed")
	}

	return &p, nil
}

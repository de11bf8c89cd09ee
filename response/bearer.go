package response

import (
	"encoding/json"
	"net/http"
)

// BearerToken is a successful token response (RFC 6749 §5.1).
type BearerToken struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

var _ Type = (*BearerToken)(nil)

// Write renders the token JSON with the no-store caching headers the RFC
// requires for responses carrying credentials.
func (b *BearerToken) Write(w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(b)
}

package request

import "strings"

// AuthorizeParams are the protocol parameters of an authorization-endpoint
// request (RFC 6749 §4.1.1, RFC 7636 §4.3). A fresh value is bound per
// call.
type AuthorizeParams struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	State               string
	Scopes              []string
	CodeChallenge       string
	CodeChallengeMethod string

	// RemoteAddr is carried along for rate limiting and audit context.
	RemoteAddr string
}

// TokenParams are the protocol parameters of a token-endpoint request
// (RFC 6749 §4.1.3, §4.3.2, §4.4.2, §6).
type TokenParams struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
	RefreshToken string
	Username     string
	Password     string
	CodeVerifier string
	Scopes       []string

	// HasAuthorizationHeader records whether the request carried an
	// Authorization header; invalid_client responses then include a
	// WWW-Authenticate challenge (RFC 6749 §5.2).
	HasAuthorizationHeader bool

	RemoteAddr string
}

// BindAuthorizeParams extracts authorization-endpoint parameters from the
// query string. A code_challenge without a method defaults to "plain" per
// RFC 7636 §4.3.
func BindAuthorizeParams(r Request) AuthorizeParams {
	p := AuthorizeParams{
		ResponseType:        r.Query("response_type"),
		ClientID:            r.Query("client_id"),
		RedirectURI:         r.Query("redirect_uri"),
		State:               r.Query("state"),
		Scopes:              splitScopes(r.Query("scope")),
		CodeChallenge:       r.Query("code_challenge"),
		CodeChallengeMethod: r.Query("code_challenge_method"),
		RemoteAddr:          r.RemoteAddr(),
	}

	if p.CodeChallenge != "" && p.CodeChallengeMethod == "" {
		p.CodeChallengeMethod = "plain"
	}

	return p
}

// BindTokenParams extracts token-endpoint parameters from the parsed body.
// Client credentials fall back to HTTP Basic auth when not present as body
// parameters (RFC 6749 §2.3.1).
func BindTokenParams(r Request) TokenParams {
	p := TokenParams{
		GrantType:              r.Form("grant_type"),
		ClientID:               r.Form("client_id"),
		ClientSecret:           r.Form("client_secret"),
		Code:                   r.Form("code"),
		RedirectURI:            r.Form("redirect_uri"),
		RefreshToken:           r.Form("refresh_token"),
		Username:               r.Form("username"),
		Password:               r.Form("password"),
		CodeVerifier:           r.Form("code_verifier"),
		Scopes:                 splitScopes(r.Form("scope")),
		HasAuthorizationHeader: r.Header("Authorization") != "",
		RemoteAddr:             r.RemoteAddr(),
	}

	if p.ClientID == "" || p.ClientSecret == "" {
		if user, pass, ok := r.BasicAuth(); ok {
			if p.ClientID == "" {
				p.ClientID = user
			}
			if p.ClientSecret == "" {
				p.ClientSecret = pass
			}
		}
	}

	return p
}

// splitScopes splits a space-delimited scope string, dropping empties.
func splitScopes(s string) []string {
	if s == "" {
		return nil
	}
	var scopes []string
	for _, part := range strings.Split(s, " ") {
		if part != "" {
			scopes = append(scopes, part)
		}
	}
	return scopes
}

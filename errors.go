package oauthkit

import (
	"fmt"
	"html"
	"net/http"
)

// OAuth error codes as they appear in the wire-level error field.
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidScope         = "invalid_scope"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeServerError          = "server_error"
)

// Error is a protocol-level OAuth 2.0 failure. The set of constructors below
// is the closed taxonomy; the engine never invents codes outside it.
//
// RedirectURI, when set, means the error must be delivered as a 302 redirect
// back to the client instead of a JSON body (RFC 6749 §4.1.2.1). UseFragment
// selects the fragment-encoded form used by the implicit flow.
type Error struct {
	Code        string // wire error code (e.g. "invalid_grant")
	Description string // human-readable error_description
	Hint        string // optional hint naming the offending parameter/scope
	Status      int    // HTTP status code
	RedirectURI string
	UseFragment bool

	// Duplicate marks the identifier-collision failure that surfaces after
	// the bounded retry loop is exhausted. On the wire it is a server_error.
	Duplicate bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Description, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WithRedirect returns a copy of the error carrying a redirect target so the
// user-agent can be returned to the client even on failure.
func (e *Error) WithRedirect(uri string, fragment bool) *Error {
	dup := *e
	dup.RedirectURI = uri
	dup.UseFragment = fragment
	return &dup
}

// NewInvalidRequest indicates a missing or malformed request parameter.
func NewInvalidRequest(parameter string, hint ...string) *Error {
	h := fmt.Sprintf("Check the `%s` parameter", parameter)
	if len(hint) > 0 {
		h = hint[0]
	}
	return &Error{
		Code:        ErrorCodeInvalidRequest,
		Description: "The request is missing a required parameter, includes an invalid parameter value, includes a parameter more than once, or is otherwise malformed.",
		Hint:        h,
		Status:      http.StatusBadRequest,
	}
}

// NewInvalidClient indicates client lookup or secret validation failed.
func NewInvalidClient() *Error {
	return &Error{
		Code:        ErrorCodeInvalidClient,
		Description: "Client authentication failed",
		Status:      http.StatusUnauthorized,
	}
}

// NewInvalidScope indicates a requested scope is unknown. The offending
// scope is HTML-escaped before it is echoed back in the hint.
func NewInvalidScope(scope string) *Error {
	return &Error{
		Code:        ErrorCodeInvalidScope,
		Description: "The requested scope is invalid, unknown, or malformed",
		Hint:        fmt.Sprintf("Check the `%s` scope", html.EscapeString(scope)),
		Status:      http.StatusBadRequest,
	}
}

// NewInvalidGrant indicates an expired, revoked, or mismatched code or
// refresh token, or a failed PKCE verification.
func NewInvalidGrant(hint string) *Error {
	return &Error{
		Code:        ErrorCodeInvalidGrant,
		Description: "The provided authorization grant (e.g., authorization code, resource owner credentials) or refresh token is invalid, expired, revoked, does not match the redirection URI used in the authorization request, or was issued to another client.",
		Hint:        hint,
		Status:      http.StatusBadRequest,
	}
}

// NewAccessDenied indicates the resource owner or the server denied the
// request. Callers attach a redirect URI so denial reaches the client as a
// 302 rather than a bare 401.
func NewAccessDenied(hint string) *Error {
	return &Error{
		Code:        ErrorCodeAccessDenied,
		Description: "The resource owner or authorization server denied the request.",
		Hint:        hint,
		Status:      http.StatusUnauthorized,
	}
}

// NewUnsupportedGrantType indicates no registered grant claimed the request.
func NewUnsupportedGrantType() *Error {
	return &Error{
		Code:        ErrorCodeUnsupportedGrantType,
		Description: "The authorization grant type is not supported by the authorization server.",
		Hint:        "Check that all required parameters have been provided",
		Status:      http.StatusBadRequest,
	}
}

// NewServerError indicates an internal failure (random source, store,
// cipher, or encoding).
func NewServerError(hint string) *Error {
	return &Error{
		Code:        ErrorCodeServerError,
		Description: "The authorization server encountered an unexpected condition which prevented it from fulfilling the request.",
		Hint:        hint,
		Status:      http.StatusInternalServerError,
	}
}

// NewDuplicateIdentifier indicates an identifier collision persisted through
// the bounded retry loop.
func NewDuplicateIdentifier() *Error {
	return &Error{
		Code:        ErrorCodeServerError,
		Description: "Could not persist a unique token identifier.",
		Status:      http.StatusInternalServerError,
		Duplicate:   true,
	}
}

// Package oauthkit implements the server-side grant logic of OAuth 2.0
// (RFC 6749) as a library. Callers plug in persistence through the storage
// interfaces and HTTP through the request/response adapters; the library
// supplies the protocol state machine: request validation, authorization
// code and token issuance, PKCE verification (RFC 7636), and the closed
// protocol error taxonomy.
//
// The root package holds the protocol constants and the Error type shared
// by every subpackage. The engine itself lives in the grant package, with
// the composition root in the server package.
package oauthkit

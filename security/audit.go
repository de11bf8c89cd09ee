package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Auditor is the slog-backed Events implementation. PII (user identifiers,
// usernames) is SHA-256 hashed before it reaches the log stream; client
// identifiers are public and logged as-is.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

var _ Events = (*Auditor)(nil)

// NewAuditor creates a new security auditor.
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// logEvent writes one audit record with a unique event id.
func (a *Auditor) logEvent(ctx context.Context, eventType string, attrs ...any) {
	if !a.enabled {
		return
	}

	base := []any{
		"event_id", uuid.NewString(),
		"event_type", eventType,
		"timestamp", time.Now().UTC(),
	}
	a.logger.InfoContext(ctx, "security_audit", append(base, attrs...)...)
}

// ClientAuthenticationFailed implements Events.
func (a *Auditor) ClientAuthenticationFailed(ctx context.Context, clientID string) {
	a.logEvent(ctx, EventClientAuthenticationFailed, "client_id", clientID)
}

// UserAuthenticationFailed implements Events.
func (a *Auditor) UserAuthenticationFailed(ctx context.Context, username, clientID string) {
	a.logEvent(ctx, EventUserAuthenticationFailed,
		"username_hash", hashForLogging(username),
		"client_id", clientID)
}

// AuthorizationCodeIssued implements Events.
func (a *Auditor) AuthorizationCodeIssued(ctx context.Context, codeID, clientID, userID string) {
	a.logEvent(ctx, EventAuthorizationCodeIssued,
		"code_id_prefix", safeTruncate(codeID, 8),
		"client_id", clientID,
		"user_id_hash", hashForLogging(userID))
}

// AuthorizationCodeReused implements Events.
func (a *Auditor) AuthorizationCodeReused(ctx context.Context, codeID, clientID string) {
	a.logEvent(ctx, EventAuthorizationCodeReused,
		"code_id_prefix", safeTruncate(codeID, 8),
		"client_id", clientID)
}

// AccessTokenIssued implements Events.
func (a *Auditor) AccessTokenIssued(ctx context.Context, tokenID, clientID, userID string, scopes []string) {
	a.logEvent(ctx, EventAccessTokenIssued,
		"token_id_prefix", safeTruncate(tokenID, 8),
		"client_id", clientID,
		"user_id_hash", hashForLogging(userID),
		"scopes", scopes)
}

// RefreshTokenIssued implements Events.
func (a *Auditor) RefreshTokenIssued(ctx context.Context, tokenID, clientID string) {
	a.logEvent(ctx, EventRefreshTokenIssued,
		"token_id_prefix", safeTruncate(tokenID, 8),
		"client_id", clientID)
}

// PKCEVerificationFailed implements Events.
func (a *Auditor) PKCEVerificationFailed(ctx context.Context, clientID string) {
	a.logEvent(ctx, EventPKCEVerificationFailed, "client_id", clientID)
}

// RedirectURIMismatch implements Events.
func (a *Auditor) RedirectURIMismatch(ctx context.Context, clientID, redirectURI string) {
	a.logEvent(ctx, EventRedirectURIMismatch,
		"client_id", clientID,
		"redirect_uri", redirectURI)
}

// hashForLogging creates a SHA-256 hash of sensitive data for logging.
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}

// safeTruncate returns at most n leading characters of s, enough to
// correlate log lines without disclosing the full identifier.
func safeTruncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

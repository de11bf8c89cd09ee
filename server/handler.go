package server

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/oauthkit/oauthkit"
	"github.com/oauthkit/oauthkit/grant"
	"github.com/oauthkit/oauthkit/request"
	"github.com/oauthkit/oauthkit/response"
	"github.com/oauthkit/oauthkit/security"
	"github.com/oauthkit/oauthkit/storage"
)

// Authenticator is the caller-supplied pause between validating an
// authorization request and completing it: authenticate the resource
// owner, collect consent, and report the decision.
//
// Returning (nil, false, nil) means the authenticator wrote its own
// response (a login or consent page); the handler stops without
// completing the flow. Returning a user completes the flow with the
// given approval decision.
type Authenticator interface {
	Authenticate(w http.ResponseWriter, r *http.Request, ar *grant.AuthorizationRequest) (user *storage.User, approved bool, err error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(w http.ResponseWriter, r *http.Request, ar *grant.AuthorizationRequest) (*storage.User, bool, error)

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(w http.ResponseWriter, r *http.Request, ar *grant.AuthorizationRequest) (*storage.User, bool, error) {
	return f(w, r, ar)
}

// HandlerConfig configures the optional HTTP surface.
type HandlerConfig struct {
	// RateLimitPerSecond limits requests per client IP on both
	// endpoints. Default: 10 with a burst of 20. Set negative to
	// disable.
	RateLimitPerSecond int
	RateLimitBurst     int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Handler serves the authorization and token endpoints over net/http.
// Deployments on other HTTP stacks can skip it and drive the Server with
// their own adapters.
type Handler struct {
	server        *Server
	authenticator Authenticator
	limiter       *security.RateLimiter
	logger        *slog.Logger
}

// NewHandler creates the HTTP surface for a server.
func NewHandler(s *Server, authenticator Authenticator, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *security.RateLimiter
	if cfg.RateLimitPerSecond >= 0 {
		rps := cfg.RateLimitPerSecond
		if rps == 0 {
			rps = 10
		}
		burst := cfg.RateLimitBurst
		if burst == 0 {
			burst = 20
		}
		limiter = security.NewRateLimiter(rps, burst, logger)
	}

	return &Handler{
		server:        s,
		authenticator: authenticator,
		limiter:       limiter,
		logger:        logger,
	}
}

// Close stops the rate limiter's background cleanup.
func (h *Handler) Close() {
	if h.limiter != nil {
		h.limiter.Stop()
	}
}

// HandleAuthorize serves the authorization endpoint (RFC 6749 §3.1).
func (h *Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer h.recordHTTP(r, "authorize", start)

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allow(r) {
		h.writeRateLimited(w, r)
		return
	}

	ctx := r.Context()
	params := request.BindAuthorizeParams(request.FromHTTP(r))

	ar, err := h.server.ValidateAuthorizationRequest(ctx, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	user, approved, err := h.authenticator.Authenticate(w, r, ar)
	if err != nil {
		h.logger.Error("authenticator failed", "error", err)
		h.writeError(w, r, oauthkit.NewServerError(""))
		return
	}
	if user == nil {
		// The authenticator rendered its own page.
		return
	}

	ar.User = user
	ar.Approved = approved

	resp, err := h.server.CompleteAuthorizationRequest(ctx, ar)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := resp.Write(w); err != nil {
		h.logger.Error("response write failed", "error", err)
	}
}

// HandleToken serves the token endpoint (RFC 6749 §3.2).
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer h.recordHTTP(r, "token", start)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allow(r) {
		h.writeRateLimited(w, r)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.writeError(w, r, oauthkit.NewInvalidRequest("grant_type", "Could not parse the request body"))
		return
	}

	ctx := r.Context()
	params := request.BindTokenParams(request.FromHTTP(r))

	resp, err := h.server.RespondToAccessTokenRequest(ctx, params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := resp.Write(w); err != nil {
		h.logger.Error("response write failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	hadAuthHeader := r.Header.Get("Authorization") != ""
	if werr := response.WriteError(w, err, hadAuthHeader); werr != nil {
		h.logger.Error("error response write failed", "error", werr)
	}
}

func (h *Handler) allow(r *http.Request) bool {
	if h.limiter == nil {
		return true
	}
	return h.limiter.Allow(clientIP(r))
}

func (h *Handler) writeRateLimited(w http.ResponseWriter, r *http.Request) {
	h.server.inst.Metrics().RateLimited.Add(r.Context(), 1)
	h.logger.Warn("rate limit exceeded", "remote_addr", clientIP(r))
	w.Header().Set("Retry-After", "1")
	http.Error(w, "too many requests", http.StatusTooManyRequests)
}

func (h *Handler) recordHTTP(r *http.Request, endpoint string, start time.Time) {
	m := h.server.inst.Metrics()
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("method", r.Method),
	)
	m.HTTPRequestsTotal.Add(r.Context(), 1, attrs)
	m.HTTPRequestDuration.Record(r.Context(), float64(time.Since(start).Milliseconds()), attrs)
}

// clientIP extracts the direct peer address. Proxy headers are
// deliberately not consulted; terminate proxies in front of this handler
// and rate limit there if needed.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

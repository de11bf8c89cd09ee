package instrumentation

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the metric instruments of the grant engine.
type Metrics struct {
	// HTTP layer
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	// Authorization endpoint
	AuthorizationValidated metric.Int64Counter
	AuthorizationCompleted metric.Int64Counter
	CodeIssued             metric.Int64Counter

	// Token endpoint
	TokenRequests metric.Int64Counter
	TokenIssued   metric.Int64Counter

	// Failure modes
	ProtocolErrors       metric.Int64Counter
	PKCEFailures         metric.Int64Counter
	IdentifierCollisions metric.Int64Counter
	RateLimited          metric.Int64Counter
}

// newMetrics creates and registers all metric instruments.
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	httpMeter := inst.Meter("http")
	serverMeter := inst.Meter("server")

	m := &Metrics{}

	var err error
	m.HTTPRequestsTotal, err = httpMeter.Int64Counter(
		"oauth.http.requests.total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.requests.total counter: %w", err)
	}

	m.HTTPRequestDuration, err = httpMeter.Float64Histogram(
		"oauth.http.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http.request.duration histogram: %w", err)
	}

	m.AuthorizationValidated, err = serverMeter.Int64Counter(
		"oauth.authorization.validated",
		metric.WithDescription("Number of authorization requests validated"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization.validated counter: %w", err)
	}

	m.AuthorizationCompleted, err = serverMeter.Int64Counter(
		"oauth.authorization.completed",
		metric.WithDescription("Number of authorization requests completed"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization.completed counter: %w", err)
	}

	m.CodeIssued, err = serverMeter.Int64Counter(
		"oauth.code.issued",
		metric.WithDescription("Number of authorization codes issued"),
		metric.WithUnit("{code}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create code.issued counter: %w", err)
	}

	m.TokenRequests, err = serverMeter.Int64Counter(
		"oauth.token.requests",
		metric.WithDescription("Number of token-endpoint requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.requests counter: %w", err)
	}

	m.TokenIssued, err = serverMeter.Int64Counter(
		"oauth.token.issued",
		metric.WithDescription("Number of access tokens issued"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.issued counter: %w", err)
	}

	m.ProtocolErrors, err = serverMeter.Int64Counter(
		"oauth.protocol.errors",
		metric.WithDescription("Number of protocol errors returned"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create protocol.errors counter: %w", err)
	}

	m.PKCEFailures, err = serverMeter.Int64Counter(
		"oauth.pkce.failures",
		metric.WithDescription("Number of PKCE verification failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pkce.failures counter: %w", err)
	}

	m.IdentifierCollisions, err = serverMeter.Int64Counter(
		"oauth.identifier.collisions",
		metric.WithDescription("Number of identifier collisions that exhausted the retry bound"),
		metric.WithUnit("{collision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create identifier.collisions counter: %w", err)
	}

	m.RateLimited, err = serverMeter.Int64Counter(
		"oauth.ratelimit.rejected",
		metric.WithDescription("Number of requests rejected by the rate limiter"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ratelimit.rejected counter: %w", err)
	}

	return m, nil
}

// Package server is the composition root of the grant engine: it builds
// the shared grant core from a Config, holds the grant registry, and
// dispatches authorization and token requests to the first grant that
// claims them. The net/http surface lives in Handler.
package server

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/oauthkit/oauthkit"
	"github.com/oauthkit/oauthkit/grant"
	"github.com/oauthkit/oauthkit/instrumentation"
	"github.com/oauthkit/oauthkit/request"
	"github.com/oauthkit/oauthkit/response"
	"github.com/oauthkit/oauthkit/security"
)

// Server routes protocol requests to registered grants.
type Server struct {
	core   *grant.Core
	grants []grant.Grant
	logger *slog.Logger
	inst   *instrumentation.Instrumentation
}

// New validates the configuration and builds a server with no grants
// enabled. Call EnableGrant for each flow the deployment supports.
func New(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg = applySecureDefaults(cfg, logger)

	encryptor, err := security.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}

	events := cfg.Events
	if events == nil {
		events = security.NewAuditor(logger, true)
	}

	inst := cfg.Instrumentation
	if inst == nil {
		inst, err = instrumentation.New(instrumentation.Config{ServiceName: "oauthkit"})
		if err != nil {
			return nil, err
		}
	}

	core, err := grant.NewCore(grant.CoreConfig{
		Clients:                     cfg.Clients,
		Scopes:                      cfg.Scopes,
		AccessTokens:                cfg.AccessTokens,
		AuthorizationCodes:          cfg.AuthorizationCodes,
		RefreshTokens:               cfg.RefreshTokens,
		Users:                       cfg.Users,
		Encryptor:                   encryptor,
		Events:                      events,
		Logger:                      logger,
		AuthorizationCodeTTL:        cfg.AuthorizationCodeTTL,
		AccessTokenTTL:              cfg.AccessTokenTTL,
		RefreshTokenTTL:             cfg.RefreshTokenTTL,
		DefaultScopes:               cfg.DefaultScopes,
		IdentifierBytes:             cfg.IdentifierBytes,
		RequirePKCEForPublicClients: !cfg.DisablePKCEForPublicClients,
	})
	if err != nil {
		return nil, err
	}
	if cfg.AllowPlainChallengeMethod {
		core.RegisterCodeChallengeVerifier(security.PlainVerifier{})
	}

	return &Server{
		core:   core,
		logger: logger,
		inst:   inst,
	}, nil
}

// EnableGrant registers a grant, injecting the shared core exactly once.
// Registration order matters: the first matching grant wins at dispatch.
func (s *Server) EnableGrant(g grant.Grant) error {
	for _, existing := range s.grants {
		if existing.Identifier() == g.Identifier() {
			return errors.New("grant already enabled: " + g.Identifier())
		}
	}

	if err := g.Init(s.core); err != nil {
		return err
	}

	s.grants = append(s.grants, g)
	s.logger.Info("grant enabled", "grant_type", g.Identifier())
	return nil
}

// Core exposes the shared core for registering additional PKCE verifiers.
func (s *Server) Core() *grant.Core {
	return s.core
}

// ValidateAuthorizationRequest routes an authorization-endpoint request to
// the first grant claiming it.
func (s *Server) ValidateAuthorizationRequest(ctx context.Context, p request.AuthorizeParams) (*grant.AuthorizationRequest, error) {
	for _, g := range s.grants {
		if !g.CanRespondToAuthorizationRequest(p) {
			continue
		}

		ar, err := g.ValidateAuthorizationRequest(ctx, p)
		if err != nil {
			s.countError(ctx, err)
			return nil, err
		}
		s.inst.Metrics().AuthorizationValidated.Add(ctx, 1,
			metric.WithAttributes(attribute.String("grant_type", g.Identifier())))
		return ar, nil
	}

	s.countError(ctx, oauthkit.NewUnsupportedGrantType())
	return nil, oauthkit.NewUnsupportedGrantType()
}

// CompleteAuthorizationRequest routes a validated-and-decided
// authorization request back to the grant that produced it.
func (s *Server) CompleteAuthorizationRequest(ctx context.Context, ar *grant.AuthorizationRequest) (response.Type, error) {
	for _, g := range s.grants {
		if g.Identifier() != ar.GrantTypeID {
			continue
		}

		resp, err := g.CompleteAuthorizationRequest(ctx, ar)
		if err != nil {
			s.countError(ctx, err)
			return nil, err
		}
		s.inst.Metrics().AuthorizationCompleted.Add(ctx, 1,
			metric.WithAttributes(attribute.String("grant_type", g.Identifier())))
		if g.Identifier() == oauthkit.GrantAuthorizationCode {
			s.inst.Metrics().CodeIssued.Add(ctx, 1)
		}
		return resp, nil
	}

	return nil, oauthkit.NewUnsupportedGrantType()
}

// RespondToAccessTokenRequest routes a token-endpoint request to the first
// grant claiming it. With no claimant the request fails
// unsupported_grant_type.
func (s *Server) RespondToAccessTokenRequest(ctx context.Context, p request.TokenParams) (response.Type, error) {
	s.inst.Metrics().TokenRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("grant_type", p.GrantType)))

	for _, g := range s.grants {
		if !g.CanRespondToAccessTokenRequest(p) {
			continue
		}

		resp, err := g.RespondToAccessTokenRequest(ctx, p)
		if err != nil {
			s.countError(ctx, err)
			return nil, err
		}
		s.inst.Metrics().TokenIssued.Add(ctx, 1,
			metric.WithAttributes(attribute.String("grant_type", g.Identifier())))
		return resp, nil
	}

	s.countError(ctx, oauthkit.NewUnsupportedGrantType())
	return nil, oauthkit.NewUnsupportedGrantType()
}

func (s *Server) countError(ctx context.Context, err error) {
	var oerr *oauthkit.Error
	if !errors.As(err, &oerr) {
		return
	}

	s.inst.Metrics().ProtocolErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("error", oerr.Code)))
	if oerr.Duplicate {
		s.inst.Metrics().IdentifierCollisions.Add(ctx, 1)
	}
}

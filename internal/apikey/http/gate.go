// Package http bridges inbound HTTP credentials to API key verification and exposes the
// authenticated principal to downstream handlers.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/allisson/apikeys/internal/apikey/domain"
	"github.com/allisson/apikeys/internal/apikey/service"
	apperrors "github.com/allisson/apikeys/internal/errors"
	"github.com/allisson/apikeys/internal/metrics"
)

// DefaultHeader carries the credential when no header is configured.
const DefaultHeader = "X-API-Key"

// Verifier resolves a presented secret to its key, or nil.
type Verifier interface {
	Verify(ctx context.Context, candidate string) *domain.APIKey
}

// AuthResult is the outcome of one authentication attempt. Exactly one of Principal
// and Rejection is set.
type AuthResult struct {
	Principal *domain.Principal
	// Rejection is domain.ErrCredentialMissing or domain.ErrCredentialInvalid.
	Rejection error
}

// Authenticated reports whether the attempt produced a principal.
func (r AuthResult) Authenticated() bool {
	return r.Principal != nil && r.Rejection == nil
}

func rejected(err error) AuthResult {
	return AuthResult{Rejection: err}
}

// AuthenticationGate turns a credential into an AuthResult. It never panics and never
// returns an error: every failure, including a panic in the verifier, becomes a rejection.
type AuthenticationGate struct {
	verifier Verifier
	codec    service.KeyCodec
	header   string
	metrics  metrics.AuthMetrics
	logger   *slog.Logger
}

// NewAuthenticationGate creates a gate reading the credential from header.
func NewAuthenticationGate(
	verifier Verifier,
	codec service.KeyCodec,
	header string,
	authMetrics metrics.AuthMetrics,
	logger *slog.Logger,
) *AuthenticationGate {
	if header == "" {
		header = DefaultHeader
	}
	return &AuthenticationGate{
		verifier: verifier,
		codec:    codec,
		header:   header,
		metrics:  authMetrics,
		logger:   logger,
	}
}

// Header returns the name of the header the gate reads.
func (g *AuthenticationGate) Header() string {
	return g.header
}

// AuthenticateRequest reads the credential header of r and authenticates it.
func (g *AuthenticationGate) AuthenticateRequest(r *http.Request) AuthResult {
	return g.Authenticate(r.Context(), r.Header.Get(g.header))
}

// Authenticate verifies credential.
func (g *AuthenticationGate) Authenticate(ctx context.Context, credential string) (result AuthResult) {
	var redacted string
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("authentication panicked",
				slog.String("lookup_prefix", redacted),
				slog.Any("panic", fmt.Sprint(r)),
			)
			g.metrics.RecordAuthentication(ctx, metrics.AuthOutcomeInvalid)
			result = rejected(domain.ErrCredentialInvalid)
		}
	}()

	credential = strings.TrimSpace(credential)
	redacted = g.codec.Redact(credential)

	if credential == "" {
		g.logger.Debug("authentication rejected: credential missing", slog.String("header", g.header))
		g.metrics.RecordAuthentication(ctx, metrics.AuthOutcomeMissing)
		return rejected(domain.ErrCredentialMissing)
	}

	key := g.verifier.Verify(ctx, credential)
	if key == nil {
		g.logger.Info("authentication rejected: credential invalid", slog.String("lookup_prefix", redacted))
		g.metrics.RecordAuthentication(ctx, metrics.AuthOutcomeInvalid)
		return rejected(domain.ErrCredentialInvalid)
	}

	principal := domain.NewPrincipal(key)
	g.logger.Info("authentication successful",
		slog.String("lookup_prefix", redacted),
		slog.String("key_id", principal.KeyID.String()),
		slog.String("owner_id", principal.OwnerID),
	)
	g.metrics.RecordAuthentication(ctx, metrics.AuthOutcomeAuthenticated)
	return AuthResult{Principal: principal}
}

// IsCredentialRejection reports whether err came from the gate.
func IsCredentialRejection(err error) bool {
	return apperrors.Is(err, domain.ErrCredentialMissing) || apperrors.Is(err, domain.ErrCredentialInvalid)
}

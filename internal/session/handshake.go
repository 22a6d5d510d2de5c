package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
	"github.com/kursadbilgin/extraction-orchestrator/internal/observability"
	"go.uber.org/zap"
)

const defaultNext = "/"

// AccessValidator exchanges a one-time hub token for a valid session.
type AccessValidator interface {
	Liberar(ctx context.Context, token string, next string) error
}

// Handshake performs the token exchange that ends an expired session
// incident. Each Run makes at most one validation call.
type Handshake struct {
	validator AccessValidator
	guardian  *Guardian
	metrics   *observability.Metrics
	logger    *zap.Logger
}

func NewHandshake(validator AccessValidator, guardian *Guardian, metrics *observability.Metrics, logger *zap.Logger) (*Handshake, error) {
	if validator == nil {
		return nil, fmt.Errorf("access validator is required")
	}
	if guardian == nil {
		return nil, fmt.Errorf("session guardian is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handshake{
		validator: validator,
		guardian:  guardian,
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Run validates token and returns the location to resume at.
func (h *Handshake) Run(ctx context.Context, token string, next string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		h.metrics.IncHandshake("missing_token")
		return "", domain.ErrMissingToken
	}

	next = SanitizeNext(next)
	if err := h.validator.Liberar(ctx, token, next); err != nil {
		h.metrics.IncHandshake("rejected")
		observability.WithContextLogger(h.logger, ctx).Warn("handshake rejected", zap.Error(err))
		return "", fmt.Errorf("%w: %w", domain.ErrHandshakeFailed, err)
	}

	if err := h.guardian.Restore(ctx); err != nil {
		h.metrics.IncHandshake("error")
		return "", err
	}

	h.metrics.IncHandshake("ok")
	observability.WithContextLogger(h.logger, ctx).Info("handshake accepted", zap.String("next", next))
	return next, nil
}

// SanitizeNext keeps next only when it is a local path.
func SanitizeNext(next string) string {
	next = strings.TrimSpace(next)
	if !isLocalPath(next) {
		return defaultNext
	}
	return next
}

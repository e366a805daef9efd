package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/apikeys/internal/apikey/domain"
	"github.com/allisson/apikeys/internal/metrics"
)

const metricsDomain = "apikey"

// apiKeyUseCaseWithMetrics decorates APIKeyUseCase with metrics instrumentation.
type apiKeyUseCaseWithMetrics struct {
	next    APIKeyUseCase
	metrics metrics.BusinessMetrics
}

// NewAPIKeyUseCaseWithMetrics wraps an APIKeyUseCase with metrics recording.
func NewAPIKeyUseCaseWithMetrics(useCase APIKeyUseCase, m metrics.BusinessMetrics) APIKeyUseCase {
	return &apiKeyUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (a *apiKeyUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	a.metrics.RecordOperation(ctx, metricsDomain, operation, status)
	a.metrics.RecordDuration(ctx, metricsDomain, operation, time.Since(start), status)
}

// Create records metrics for key creation operations.
func (a *apiKeyUseCaseWithMetrics) Create(
	ctx context.Context,
	input *domain.CreateAPIKeyInput,
) (*domain.CreateAPIKeyOutput, error) {
	start := time.Now()
	output, err := a.next.Create(ctx, input)
	a.record(ctx, "apikey_create", start, err)
	return output, err
}

// List records metrics for key listing operations.
func (a *apiKeyUseCaseWithMetrics) List(ctx context.Context, ownerID string) ([]*domain.APIKey, error) {
	start := time.Now()
	keys, err := a.next.List(ctx, ownerID)
	a.record(ctx, "apikey_list", start, err)
	return keys, err
}

// Get records metrics for key retrieval operations.
func (a *apiKeyUseCaseWithMetrics) Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.APIKey, error) {
	start := time.Now()
	key, err := a.next.Get(ctx, ownerID, id)
	a.record(ctx, "apikey_get", start, err)
	return key, err
}

// Update records metrics for key update operations.
func (a *apiKeyUseCaseWithMetrics) Update(
	ctx context.Context,
	ownerID string,
	id uuid.UUID,
	input *domain.UpdateAPIKeyInput,
) (*domain.APIKey, error) {
	start := time.Now()
	key, err := a.next.Update(ctx, ownerID, id, input)
	a.record(ctx, "apikey_update", start, err)
	return key, err
}

// Revoke records metrics for key revocation operations.
func (a *apiKeyUseCaseWithMetrics) Revoke(ctx context.Context, ownerID string, id uuid.UUID) error {
	start := time.Now()
	err := a.next.Revoke(ctx, ownerID, id)
	a.record(ctx, "apikey_revoke", start, err)
	return err
}

// Rotate records metrics for key rotation operations.
func (a *apiKeyUseCaseWithMetrics) Rotate(
	ctx context.Context,
	ownerID string,
	id uuid.UUID,
) (*domain.CreateAPIKeyOutput, error) {
	start := time.Now()
	output, err := a.next.Rotate(ctx, ownerID, id)
	a.record(ctx, "apikey_rotate", start, err)
	return output, err
}

// Verify records metrics for verification. A nil result counts as "rejected".
func (a *apiKeyUseCaseWithMetrics) Verify(ctx context.Context, candidate string) *domain.APIKey {
	start := time.Now()
	key := a.next.Verify(ctx, candidate)

	status := "success"
	if key == nil {
		status = "rejected"
	}

	a.metrics.RecordOperation(ctx, metricsDomain, "apikey_verify", status)
	a.metrics.RecordDuration(ctx, metricsDomain, "apikey_verify", time.Since(start), status)

	return key
}

// UsageStats records metrics for usage statistics retrieval.
func (a *apiKeyUseCaseWithMetrics) UsageStats(
	ctx context.Context,
	ownerID string,
	id uuid.UUID,
) (*domain.UsageStats, error) {
	start := time.Now()
	stats, err := a.next.UsageStats(ctx, ownerID, id)
	a.record(ctx, "apikey_usage_stats", start, err)
	return stats, err
}

// CleanupExpired records metrics for expired key cleanup.
func (a *apiKeyUseCaseWithMetrics) CleanupExpired(ctx context.Context, olderThanDays int, dryRun bool) (int64, error) {
	start := time.Now()
	count, err := a.next.CleanupExpired(ctx, olderThanDays, dryRun)
	a.record(ctx, "apikey_cleanup_expired", start, err)
	return count, err
}

package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/allisson/apikeys/internal/apikey/domain"
	"github.com/allisson/apikeys/internal/apikey/service"
	"github.com/allisson/apikeys/internal/database"
	apperrors "github.com/allisson/apikeys/internal/errors"
	customValidation "github.com/allisson/apikeys/internal/validation"
)

const (
	maxNameLength = 100
	// maxGenerateAttempts bounds retries after a lookup prefix collision.
	maxGenerateAttempts = 3
	rotatedNameSuffix   = " (Rotated)"
)

// Options tunes the lifecycle policy.
type Options struct {
	// MaxKeysPerOwner caps the non-revoked keys per owner. Zero disables the limit.
	MaxKeysPerOwner int
	// UsageTimeout bounds the usage write after a successful verification. The write
	// is detached from the request context so a client disconnect does not drop it.
	UsageTimeout time.Duration
}

// apiKeyUseCase implements APIKeyUseCase.
type apiKeyUseCase struct {
	txManager  database.TxManager
	apiKeyRepo APIKeyRepository
	auditSink  AuditSink
	codec      service.KeyCodec
	hasher     service.SecretHasher
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

func (a *apiKeyUseCase) clock() time.Time {
	return a.now().UTC()
}

func validateName(name string) error {
	err := validation.Validate(name,
		validation.Required,
		customValidation.NotBlank,
		validation.RuneLength(1, maxNameLength),
	)
	if err != nil {
		return apperrors.Wrap(domain.ErrInvalidName, err.Error())
	}
	return nil
}

func normalizePermissions(permissions []string) ([]string, error) {
	normalized := customValidation.NormalizeStrings(permissions)
	err := validation.Validate(normalized,
		validation.Required,
		validation.Each(customValidation.Permission),
	)
	if err != nil {
		return nil, apperrors.Wrap(domain.ErrInvalidPermissions, err.Error())
	}
	return normalized, nil
}

func validateOwner(ownerID string) error {
	if err := validation.Validate(ownerID, validation.Required, customValidation.NotBlank); err != nil {
		return customValidation.WrapValidationError(validation.Errors{"owner_id": err})
	}
	return nil
}

// Create generates, hashes and stores a new key.
func (a *apiKeyUseCase) Create(
	ctx context.Context,
	input *domain.CreateAPIKeyInput,
) (*domain.CreateAPIKeyOutput, error) {
	if input == nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "create input is required")
	}
	if err := validateOwner(input.OwnerID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	permissions, err := normalizePermissions(input.Permissions)
	if err != nil {
		return nil, err
	}

	now := a.clock()
	if input.ExpiresAt != nil && !input.ExpiresAt.After(now) {
		return nil, domain.ErrExpiresAtInPast
	}

	if a.opts.MaxKeysPerOwner > 0 {
		count, err := a.apiKeyRepo.CountByOwner(ctx, input.OwnerID)
		if err != nil {
			return nil, err
		}
		if count >= a.opts.MaxKeysPerOwner {
			return nil, domain.ErrAPIKeyLimitReached
		}
	}

	template := &domain.APIKey{
		OwnerID:     input.OwnerID,
		Name:        name,
		Permissions: permissions,
		ExpiresAt:   input.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if input.ExpiresAt != nil {
		expiresAt := input.ExpiresAt.UTC()
		template.ExpiresAt = &expiresAt
	}

	var output *domain.CreateAPIKeyOutput
	err = a.issue(ctx, template, func(ctx context.Context, key *domain.APIKey) error {
		return a.apiKeyRepo.Create(ctx, key)
	}, func(out *domain.CreateAPIKeyOutput) { output = out })
	if err != nil {
		return nil, err
	}

	a.auditSink.Record(ctx, &domain.AuditEvent{
		OwnerID:    output.APIKey.OwnerID,
		Action:     domain.AuditActionCreate,
		ResourceID: output.APIKey.ID.String(),
		Severity:   domain.AuditSeverityInfo,
		Metadata: map[string]any{
			"name":          output.APIKey.Name,
			"permissions":   output.APIKey.Permissions,
			"lookup_prefix": output.APIKey.LookupPrefix,
			"expires_at":    output.APIKey.ExpiresAt,
		},
	})

	a.logger.Info("api key created",
		slog.String("key_id", output.APIKey.ID.String()),
		slog.String("owner_id", output.APIKey.OwnerID),
		slog.String("lookup_prefix", output.APIKey.LookupPrefix),
	)

	return output, nil
}

// issue generates a secret for template, hashes it and hands the complete key to store.
// A lookup prefix collision triggers a fresh secret, up to maxGenerateAttempts times.
func (a *apiKeyUseCase) issue(
	ctx context.Context,
	template *domain.APIKey,
	store func(ctx context.Context, key *domain.APIKey) error,
	done func(*domain.CreateAPIKeyOutput),
) error {
	var lastErr error
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		secret, lookupPrefix, err := a.codec.Generate()
		if err != nil {
			return err
		}

		secretHash, err := a.hasher.Hash(ctx, secret)
		if err != nil {
			return err
		}

		key := *template
		key.ID = uuid.Must(uuid.NewV7())
		key.SecretHash = secretHash
		key.LookupPrefix = lookupPrefix

		err = store(ctx, &key)
		if err == nil {
			done(&domain.CreateAPIKeyOutput{PlainSecret: secret, APIKey: key.Redacted()})
			return nil
		}
		if !apperrors.Is(err, domain.ErrLookupPrefixConflict) {
			return err
		}

		lastErr = err
		a.logger.Warn("lookup prefix collision, regenerating secret",
			slog.String("lookup_prefix", lookupPrefix),
			slog.Int("attempt", attempt),
		)
	}
	return lastErr
}

// List returns the non-revoked keys of ownerID.
func (a *apiKeyUseCase) List(ctx context.Context, ownerID string) ([]*domain.APIKey, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	keys, err := a.apiKeyRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.APIKey, 0, len(keys))
	for _, key := range keys {
		result = append(result, key.Redacted())
	}
	return result, nil
}

// getOwned loads a key and applies the ownership guard.
func (a *apiKeyUseCase) getOwned(ctx context.Context, ownerID string, id uuid.UUID) (*domain.APIKey, error) {
	key, err := a.apiKeyRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := domain.AssertOwnership(key, ownerID); err != nil {
		a.logger.Warn("api key ownership check failed",
			slog.String("key_id", id.String()),
			slog.String("owner_id", ownerID),
		)
		return nil, err
	}
	return key, nil
}

// Get returns a key owned by ownerID.
func (a *apiKeyUseCase) Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.APIKey, error) {
	key, err := a.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	return key.Redacted(), nil
}

// Update changes name and/or permissions.
func (a *apiKeyUseCase) Update(
	ctx context.Context,
	ownerID string,
	id uuid.UUID,
	input *domain.UpdateAPIKeyInput,
) (*domain.APIKey, error) {
	if input == nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "update input is required")
	}
	if input.Name == nil && input.Permissions == nil {
		return nil, domain.ErrNothingToUpdate
	}

	var name *string
	if input.Name != nil {
		n := strings.TrimSpace(*input.Name)
		if err := validateName(n); err != nil {
			return nil, err
		}
		name = &n
	}

	var permissions []string
	if input.Permissions != nil {
		var err error
		if permissions, err = normalizePermissions(input.Permissions); err != nil {
			return nil, err
		}
	}

	if _, err := a.getOwned(ctx, ownerID, id); err != nil {
		return nil, err
	}

	updated, err := a.apiKeyRepo.Update(ctx, id, name, permissions, a.clock())
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{}
	if name != nil {
		metadata["name"] = *name
	}
	if permissions != nil {
		metadata["permissions"] = permissions
	}
	a.auditSink.Record(ctx, &domain.AuditEvent{
		OwnerID:    ownerID,
		Action:     domain.AuditActionUpdate,
		ResourceID: id.String(),
		Severity:   domain.AuditSeverityInfo,
		Metadata:   metadata,
	})

	a.logger.Info("api key updated",
		slog.String("key_id", id.String()),
		slog.String("owner_id", ownerID),
	)

	return updated.Redacted(), nil
}

// Revoke marks a key as revoked. Already revoked keys are left alone and reported as success.
func (a *apiKeyUseCase) Revoke(ctx context.Context, ownerID string, id uuid.UUID) error {
	key, err := a.getOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}

	changed, err := a.apiKeyRepo.SetRevoked(ctx, id, a.clock())
	if err != nil {
		return err
	}
	if !changed {
		a.logger.Info("api key already revoked", slog.String("key_id", id.String()))
		return nil
	}

	a.auditSink.Record(ctx, &domain.AuditEvent{
		OwnerID:    ownerID,
		Action:     domain.AuditActionRevoke,
		ResourceID: id.String(),
		Severity:   domain.AuditSeverityWarning,
		Metadata: map[string]any{
			"name":          key.Name,
			"lookup_prefix": key.LookupPrefix,
		},
	})

	a.logger.Warn("api key revoked",
		slog.String("key_id", id.String()),
		slog.String("owner_id", ownerID),
		slog.String("lookup_prefix", key.LookupPrefix),
	)
	return nil
}

// Rotate replaces an active key with a fresh one carrying the same permissions and expiration.
func (a *apiKeyUseCase) Rotate(
	ctx context.Context,
	ownerID string,
	id uuid.UUID,
) (*domain.CreateAPIKeyOutput, error) {
	old, err := a.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	now := a.clock()
	if !old.IsActive(now) {
		return nil, domain.ErrAPIKeyNotActive
	}

	template := &domain.APIKey{
		OwnerID:     old.OwnerID,
		Name:        old.Name + rotatedNameSuffix,
		Permissions: old.Permissions,
		ExpiresAt:   old.ExpiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Insert the replacement first so a lookup prefix collision leaves the old key untouched.
	var output *domain.CreateAPIKeyOutput
	err = a.issue(ctx, template, func(ctx context.Context, key *domain.APIKey) error {
		return a.txManager.WithTx(ctx, func(ctx context.Context) error {
			if err := a.apiKeyRepo.Create(ctx, key); err != nil {
				return err
			}
			changed, err := a.apiKeyRepo.SetRevoked(ctx, old.ID, now)
			if err != nil {
				return err
			}
			if !changed {
				return domain.ErrAPIKeyNotActive
			}
			return nil
		})
	}, func(out *domain.CreateAPIKeyOutput) { output = out })
	if err != nil {
		return nil, err
	}

	a.auditSink.Record(ctx, &domain.AuditEvent{
		OwnerID:    ownerID,
		Action:     domain.AuditActionRotate,
		ResourceID: old.ID.String(),
		Severity:   domain.AuditSeverityWarning,
		Metadata: map[string]any{
			"new_key_id":        output.APIKey.ID.String(),
			"old_lookup_prefix": old.LookupPrefix,
			"new_lookup_prefix": output.APIKey.LookupPrefix,
		},
	})

	a.logger.Warn("api key rotated",
		slog.String("key_id", old.ID.String()),
		slog.String("new_key_id", output.APIKey.ID.String()),
		slog.String("owner_id", ownerID),
	)

	return output, nil
}

// rejectReason labels why a verification failed. Only ever logged.
type rejectReason string

const (
	rejectMalformed    rejectReason = "malformed"
	rejectUnknown      rejectReason = "unknown_prefix"
	rejectRevoked      rejectReason = "revoked"
	rejectExpired      rejectReason = "expired"
	rejectMismatch     rejectReason = "secret_mismatch"
	rejectStoreError   rejectReason = "store_error"
	rejectHashingError rejectReason = "hashing_unavailable"
	rejectCancelled    rejectReason = "cancelled"
)

func (a *apiKeyUseCase) reject(candidate string, reason rejectReason, err error) *domain.APIKey {
	attrs := []any{
		slog.String("lookup_prefix", a.codec.Redact(candidate)),
		slog.String("reason", string(reason)),
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
		a.logger.Error("api key verification failed", attrs...)
		return nil
	}
	a.logger.Warn("api key rejected", attrs...)
	return nil
}

// Verify checks candidate in a fixed order: lookup prefix, revocation, expiration, hash.
func (a *apiKeyUseCase) Verify(ctx context.Context, candidate string) *domain.APIKey {
	prefix := a.codec.ExtractLookupPrefix(candidate)
	if prefix == service.InvalidLookupPrefix {
		return a.reject(candidate, rejectMalformed, nil)
	}

	key, err := a.apiKeyRepo.GetByLookupPrefix(ctx, prefix)
	if err != nil {
		if apperrors.Is(err, domain.ErrAPIKeyNotFound) {
			return a.reject(candidate, rejectUnknown, nil)
		}
		return a.reject(candidate, rejectStoreError, err)
	}

	now := a.clock()
	if key.Revoked {
		return a.reject(candidate, rejectRevoked, nil)
	}
	if key.IsExpired(now) {
		return a.reject(candidate, rejectExpired, nil)
	}

	ok, err := a.hasher.Verify(ctx, candidate, key.SecretHash)
	if err != nil {
		return a.reject(candidate, rejectHashingError, err)
	}
	if !ok {
		return a.reject(candidate, rejectMismatch, nil)
	}

	// A deadline that passed during hashing fails the call before usage is touched.
	if err := ctx.Err(); err != nil {
		return a.reject(candidate, rejectCancelled, nil)
	}

	usageCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.opts.UsageTimeout)
	defer cancel()

	usedFrom := domain.ClientIPFromContext(ctx)
	recorded, err := a.apiKeyRepo.IncrementUsage(usageCtx, key.ID, now, usedFrom)
	switch {
	case err != nil:
		a.logger.Error("failed to record api key usage",
			slog.String("key_id", key.ID.String()),
			slog.Any("error", err),
		)
	case !recorded:
		a.logger.Warn("api key vanished before usage was recorded", slog.String("key_id", key.ID.String()))
	default:
		key.UsageCount++
		key.LastUsedAt = &now
		if usedFrom != nil {
			key.LastUsedIP = usedFrom
		}
	}

	a.logger.Info("api key verified",
		slog.String("key_id", key.ID.String()),
		slog.String("lookup_prefix", key.LookupPrefix),
	)
	return key.Redacted()
}

// UsageStats returns usage counters of a key owned by ownerID.
func (a *apiKeyUseCase) UsageStats(ctx context.Context, ownerID string, id uuid.UUID) (*domain.UsageStats, error) {
	key, err := a.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	stats := key.Stats()
	return &stats, nil
}

// CleanupExpired deletes keys whose expiration is older than the grace period.
func (a *apiKeyUseCase) CleanupExpired(ctx context.Context, olderThanDays int, dryRun bool) (int64, error) {
	if olderThanDays < 0 {
		return 0, apperrors.Wrap(apperrors.ErrInvalidInput, "days must not be negative")
	}

	before := a.clock().AddDate(0, 0, -olderThanDays)
	count, err := a.apiKeyRepo.DeleteExpired(ctx, before, dryRun)
	if err != nil {
		return 0, err
	}

	a.logger.Info("expired api keys cleanup",
		slog.Int64("count", count),
		slog.Int("older_than_days", olderThanDays),
		slog.Bool("dry_run", dryRun),
	)
	return count, nil
}

// NewAPIKeyUseCase creates a new APIKeyUseCase with the provided dependencies.
func NewAPIKeyUseCase(
	txManager database.TxManager,
	apiKeyRepo APIKeyRepository,
	auditSink AuditSink,
	codec service.KeyCodec,
	hasher service.SecretHasher,
	opts Options,
	logger *slog.Logger,
) APIKeyUseCase {
	if opts.UsageTimeout <= 0 {
		opts.UsageTimeout = 2 * time.Second
	}
	return &apiKeyUseCase{
		txManager:  txManager,
		apiKeyRepo: apiKeyRepo,
		auditSink:  auditSink,
		codec:      codec,
		hasher:     hasher,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

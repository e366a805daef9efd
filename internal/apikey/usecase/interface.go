// Package usecase defines and implements the API key lifecycle: creation, listing,
// ownership-checked reads and mutations, revocation, rotation, verification and cleanup.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/apikeys/internal/apikey/domain"
)

// APIKeyRepository defines persistence operations for API keys.
// Implementations must support transaction-aware operations via context propagation
// and must express usage increments and revocation as atomic conditional updates.
type APIKeyRepository interface {
	// Create stores a new key. Returns domain.ErrLookupPrefixConflict when the lookup
	// prefix is already taken.
	Create(ctx context.Context, key *domain.APIKey) error

	// Get retrieves a key by ID. Returns domain.ErrAPIKeyNotFound if not found.
	Get(ctx context.Context, id uuid.UUID) (*domain.APIKey, error)

	// GetByLookupPrefix retrieves a key by lookup prefix, including revoked and expired keys.
	// Returns domain.ErrAPIKeyNotFound if not found.
	GetByLookupPrefix(ctx context.Context, prefix string) (*domain.APIKey, error)

	// ListByOwner returns the non-revoked keys of ownerID, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.APIKey, error)

	// CountByOwner returns the number of non-revoked keys of ownerID.
	CountByOwner(ctx context.Context, ownerID string) (int, error)

	// Update sets name and/or permissions (nil means unchanged) plus updatedAt and returns
	// the stored key. Returns domain.ErrAPIKeyNotFound if not found.
	Update(ctx context.Context, id uuid.UUID, name *string, permissions []string, updatedAt time.Time) (*domain.APIKey, error)

	// SetRevoked marks a non-revoked key as revoked. Returns false when no row changed.
	SetRevoked(ctx context.Context, id uuid.UUID, revokedAt time.Time) (bool, error)

	// IncrementUsage adds one to the usage counter and sets the last-used timestamp and,
	// when usedFrom is not nil, the last-used client address in the same write.
	// Returns false when the key no longer exists.
	IncrementUsage(ctx context.Context, id uuid.UUID, usedAt time.Time, usedFrom *string) (bool, error)

	// DeleteExpired removes keys that expired before the given time, or only counts them
	// when dryRun is true.
	DeleteExpired(ctx context.Context, before time.Time, dryRun bool) (int64, error)
}

// AuditLogRepository defines persistence operations for audit events.
type AuditLogRepository interface {
	Create(ctx context.Context, event *domain.AuditEvent) error
	DeleteOlderThan(ctx context.Context, before time.Time, dryRun bool) (int64, error)
}

// AuditSink collects audit events. Recording is fire-and-forget: failures are logged by
// the sink and never reach the caller.
type AuditSink interface {
	Record(ctx context.Context, event *domain.AuditEvent)
}

// APIKeyUseCase defines the API key lifecycle.
//
// Every operation that acts on an existing key takes the acting ownerID and rejects keys
// owned by someone else with domain.ErrAPIKeyForbidden. A missing key yields
// domain.ErrAPIKeyNotFound. Returned keys never carry SecretHash.
type APIKeyUseCase interface {
	// Create generates a secret, stores its hash and returns the plaintext exactly once.
	//
	// Fails with an ErrInvalidInput error for a blank name, an empty permission list or an
	// expiration in the past, with domain.ErrAPIKeyLimitReached when the owner already holds
	// the configured maximum, and with domain.ErrHashingUnavailable when hashing cannot
	// complete (including ctx expiring while hashing).
	Create(ctx context.Context, input *domain.CreateAPIKeyInput) (*domain.CreateAPIKeyOutput, error)

	// List returns the non-revoked keys of ownerID, newest first. Expired keys are included.
	List(ctx context.Context, ownerID string) ([]*domain.APIKey, error)

	// Get returns a single key owned by ownerID.
	Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.APIKey, error)

	// Update changes the name and/or permissions of a key. Secret, revocation and usage
	// fields are never touched.
	Update(ctx context.Context, ownerID string, id uuid.UUID, input *domain.UpdateAPIKeyInput) (*domain.APIKey, error)

	// Revoke permanently disables a key. Revoking an already revoked key succeeds.
	Revoke(ctx context.Context, ownerID string, id uuid.UUID) error

	// Rotate revokes an active key and issues a replacement with the same permissions and
	// expiration in a single transaction. The new plaintext is returned exactly once.
	Rotate(ctx context.Context, ownerID string, id uuid.UUID) (*domain.CreateAPIKeyOutput, error)

	// Verify resolves a presented secret to its key and records the usage.
	//
	// Returns nil for every failure (malformed input, unknown prefix, revoked, expired,
	// wrong secret, storage or hashing errors) so callers cannot tell why verification
	// failed. The reason is logged server-side with the redacted lookup prefix only.
	Verify(ctx context.Context, candidate string) *domain.APIKey

	// UsageStats returns usage counters of a key owned by ownerID.
	UsageStats(ctx context.Context, ownerID string, id uuid.UUID) (*domain.UsageStats, error)

	// CleanupExpired deletes keys that expired more than olderThanDays days ago, or only
	// counts them when dryRun is true.
	CleanupExpired(ctx context.Context, olderThanDays int, dryRun bool) (int64, error)
}

// AuditLogUseCase manages retention of the audit trail.
type AuditLogUseCase interface {
	// DeleteOlderThan removes audit events older than days, or only counts them when
	// dryRun is true.
	DeleteOlderThan(ctx context.Context, days int, dryRun bool) (int64, error)
}

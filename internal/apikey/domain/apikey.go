// Package domain defines the API key credential model.
//
// An APIKey is a long-lived bearer credential owned by a single subject. Only a one-way
// hash of the secret is stored; the plaintext is handed to the owner once at creation time.
// A key is Active until it is revoked (terminal) or its expiration passes (derived at read time).
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the derived lifecycle state of an APIKey.
type Status string

const (
	// StatusActive means the key may authenticate.
	StatusActive Status = "active"
	// StatusExpired means ExpiresAt has passed. Never stored.
	StatusExpired Status = "expired"
	// StatusRevoked means the key was revoked by its owner. Terminal.
	StatusRevoked Status = "revoked"
)

// APIKey is the persisted credential record.
type APIKey struct {
	ID           uuid.UUID  // Unique identifier (UUIDv7)
	OwnerID      string     // Subject that owns the key
	Name         string     // Human-readable label
	SecretHash   string     //nolint:gosec // one-way hash of the secret, write-once
	LookupPrefix string     // Non-secret leading fragment of the secret
	Permissions  []string   // Ordered set of capability strings
	UsageCount   int64      // Successful verifications so far
	LastUsedAt   *time.Time // Last successful verification
	LastUsedIP   *string    // Client address of the last successful verification, when known
	ExpiresAt    *time.Time // nil means the key never expires
	Revoked      bool
	RevokedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsExpired reports whether the key has an expiration at or before now.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

// IsActive reports whether the key is neither revoked nor expired at now.
func (k *APIKey) IsActive(now time.Time) bool {
	return !k.Revoked && !k.IsExpired(now)
}

// Status returns the derived lifecycle state at now. Revocation wins over expiration.
func (k *APIKey) Status(now time.Time) Status {
	switch {
	case k.Revoked:
		return StatusRevoked
	case k.IsExpired(now):
		return StatusExpired
	default:
		return StatusActive
	}
}

// Preview returns a display form of the key that identifies it without revealing the secret.
func (k *APIKey) Preview() string {
	return k.LookupPrefix + "..."
}

// Redacted returns a deep copy of the key with SecretHash cleared, safe to hand to callers.
func (k *APIKey) Redacted() *APIKey {
	if k == nil {
		return nil
	}
	c := *k
	c.SecretHash = ""
	c.Permissions = slices.Clone(k.Permissions)
	c.LastUsedAt = cloneTime(k.LastUsedAt)
	c.LastUsedIP = cloneString(k.LastUsedIP)
	c.ExpiresAt = cloneTime(k.ExpiresAt)
	c.RevokedAt = cloneTime(k.RevokedAt)
	return &c
}

// HasPermission reports whether the key grants permission, either exactly or through "*".
func (k *APIKey) HasPermission(permission string) bool {
	return hasPermission(k.Permissions, permission)
}

// UsageStats is a projection of the usage accounting fields of an APIKey.
type UsageStats struct {
	KeyID      uuid.UUID
	UsageCount int64
	LastUsedAt *time.Time
	LastUsedIP *string
	CreatedAt  time.Time
}

// Stats projects the usage fields of the key.
func (k *APIKey) Stats() UsageStats {
	return UsageStats{
		KeyID:      k.ID,
		UsageCount: k.UsageCount,
		LastUsedAt: cloneTime(k.LastUsedAt),
		LastUsedIP: cloneString(k.LastUsedIP),
		CreatedAt:  k.CreatedAt,
	}
}

// AssertOwnership returns ErrAPIKeyForbidden unless ownerID owns key.
// Every read or mutation on behalf of a subject goes through this guard.
func AssertOwnership(key *APIKey, ownerID string) error {
	if key == nil || ownerID == "" || key.OwnerID != ownerID {
		return ErrAPIKeyForbidden
	}
	return nil
}

// WildcardPermission grants every permission.
const WildcardPermission = "*"

func hasPermission(granted []string, permission string) bool {
	return slices.Contains(granted, permission) || slices.Contains(granted, WildcardPermission)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

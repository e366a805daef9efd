package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/apikeys/internal/apikey/domain"
)

// MemoryAPIKeyRepository keeps APIKeys in process memory. Every method works on copies,
// so callers never share state with the store. Mutations are atomic under a single mutex.
type MemoryAPIKeyRepository struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*domain.APIKey
	byPrefix map[string]uuid.UUID
}

func cloneAPIKey(k *domain.APIKey) *domain.APIKey {
	c := k.Redacted()
	c.SecretHash = k.SecretHash
	return c
}

// Create stores a copy of key.
func (r *MemoryAPIKeyRepository) Create(_ context.Context, key *domain.APIKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byPrefix[key.LookupPrefix]; ok {
		return domain.ErrLookupPrefixConflict
	}
	if _, ok := r.byID[key.ID]; ok {
		return domain.ErrLookupPrefixConflict
	}

	r.byID[key.ID] = cloneAPIKey(key)
	r.byPrefix[key.LookupPrefix] = key.ID
	return nil
}

// Get returns a copy of the key with the given id.
func (r *MemoryAPIKeyRepository) Get(_ context.Context, id uuid.UUID) (*domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAPIKeyNotFound
	}
	return cloneAPIKey(key), nil
}

// GetByLookupPrefix returns a copy of the key with the given lookup prefix.
func (r *MemoryAPIKeyRepository) GetByLookupPrefix(_ context.Context, prefix string) (*domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPrefix[prefix]
	if !ok {
		return nil, domain.ErrAPIKeyNotFound
	}
	return cloneAPIKey(r.byID[id]), nil
}

// ListByOwner returns the non-revoked keys of ownerID, newest first.
func (r *MemoryAPIKeyRepository) ListByOwner(_ context.Context, ownerID string) ([]*domain.APIKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]*domain.APIKey, 0)
	for _, key := range r.byID {
		if key.OwnerID == ownerID && !key.Revoked {
			keys = append(keys, cloneAPIKey(key))
		}
	}

	// UUIDv7 ids sort by creation time, which breaks ties between equal timestamps.
	slices.SortFunc(keys, func(a, b *domain.APIKey) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})
	return keys, nil
}

// CountByOwner returns the number of non-revoked keys of ownerID.
func (r *MemoryAPIKeyRepository) CountByOwner(_ context.Context, ownerID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, key := range r.byID {
		if key.OwnerID == ownerID && !key.Revoked {
			count++
		}
	}
	return count, nil
}

// Update sets name and/or permissions and returns a copy of the stored key.
func (r *MemoryAPIKeyRepository) Update(
	_ context.Context,
	id uuid.UUID,
	name *string,
	permissions []string,
	updatedAt time.Time,
) (*domain.APIKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrAPIKeyNotFound
	}
	if name != nil {
		key.Name = *name
	}
	if permissions != nil {
		key.Permissions = slices.Clone(permissions)
	}
	key.UpdatedAt = updatedAt
	return cloneAPIKey(key), nil
}

// SetRevoked revokes a key that is not revoked yet. Returns false when nothing changed.
func (r *MemoryAPIKeyRepository) SetRevoked(_ context.Context, id uuid.UUID, revokedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.byID[id]
	if !ok || key.Revoked {
		return false, nil
	}
	key.Revoked = true
	key.RevokedAt = &revokedAt
	key.UpdatedAt = revokedAt
	return true, nil
}

// IncrementUsage adds one to the usage counter and sets LastUsedAt and, when usedFrom is
// not nil, LastUsedIP.
func (r *MemoryAPIKeyRepository) IncrementUsage(
	_ context.Context,
	id uuid.UUID,
	usedAt time.Time,
	usedFrom *string,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	key.UsageCount++
	key.LastUsedAt = &usedAt
	if usedFrom != nil {
		ip := *usedFrom
		key.LastUsedIP = &ip
	}
	return true, nil
}

// DeleteExpired removes keys whose expiration is before the given time. In dry-run mode
// it only counts them.
func (r *MemoryAPIKeyRepository) DeleteExpired(_ context.Context, before time.Time, dryRun bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int64
	for id, key := range r.byID {
		if key.ExpiresAt == nil || !key.ExpiresAt.Before(before) {
			continue
		}
		count++
		if !dryRun {
			delete(r.byPrefix, key.LookupPrefix)
			delete(r.byID, id)
		}
	}
	return count, nil
}

// NewMemoryAPIKeyRepository creates an empty in-memory APIKey repository.
func NewMemoryAPIKeyRepository() *MemoryAPIKeyRepository {
	return &MemoryAPIKeyRepository{
		byID:     make(map[uuid.UUID]*domain.APIKey),
		byPrefix: make(map[string]uuid.UUID),
	}
}

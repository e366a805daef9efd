package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/apikeys/internal/errors"
)

func createTestAPIKey() *APIKey {
	now := time.Now().UTC()
	return &APIKey{
		ID:           uuid.Must(uuid.NewV7()),
		OwnerID:      "user-1",
		Name:         "ci pipeline",
		SecretHash:   "$2a$12$hash",
		LookupPrefix: "apk_AbCdEfGhIjKl",
		Permissions:  []string{"read", "write"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestAPIKey_Status(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	tests := []struct {
		name      string
		mutate    func(k *APIKey)
		expected  Status
		isActive  bool
		isExpired bool
	}{
		{
			name:     "Success_NoExpiration",
			mutate:   func(k *APIKey) {},
			expected: StatusActive,
			isActive: true,
		},
		{
			name:     "Success_FutureExpiration",
			mutate:   func(k *APIKey) { k.ExpiresAt = &future },
			expected: StatusActive,
			isActive: true,
		},
		{
			name:      "Success_PastExpiration",
			mutate:    func(k *APIKey) { k.ExpiresAt = &past },
			expected:  StatusExpired,
			isExpired: true,
		},
		{
			name:      "Success_ExpirationEqualToNow",
			mutate:    func(k *APIKey) { k.ExpiresAt = &now },
			expected:  StatusExpired,
			isExpired: true,
		},
		{
			name: "Success_RevokedWinsOverExpired",
			mutate: func(k *APIKey) {
				k.Revoked = true
				k.RevokedAt = &now
				k.ExpiresAt = &past
			},
			expected:  StatusRevoked,
			isExpired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := createTestAPIKey()
			tt.mutate(key)

			assert.Equal(t, tt.expected, key.Status(now))
			assert.Equal(t, tt.isActive, key.IsActive(now))
			assert.Equal(t, tt.isExpired, key.IsExpired(now))
		})
	}
}

func TestAPIKey_Redacted(t *testing.T) {
	t.Run("Success_ClearsHashAndCopies", func(t *testing.T) {
		now := time.Now().UTC()
		key := createTestAPIKey()
		ip := "203.0.113.7"
		key.LastUsedAt = &now
		key.LastUsedIP = &ip

		redacted := key.Redacted()

		assert.Empty(t, redacted.SecretHash)
		assert.Equal(t, "$2a$12$hash", key.SecretHash)
		assert.Equal(t, key.ID, redacted.ID)

		redacted.Permissions[0] = "admin"
		*redacted.LastUsedAt = now.Add(time.Hour)
		*redacted.LastUsedIP = "198.51.100.1"
		assert.Equal(t, "read", key.Permissions[0])
		assert.Equal(t, now, *key.LastUsedAt)
		assert.Equal(t, "203.0.113.7", *key.LastUsedIP)
	})

	t.Run("Success_Nil", func(t *testing.T) {
		var key *APIKey
		assert.Nil(t, key.Redacted())
	})
}

func TestAPIKey_PreviewAndStats(t *testing.T) {
	key := createTestAPIKey()
	key.UsageCount = 7

	assert.Equal(t, "apk_AbCdEfGhIjKl...", key.Preview())

	stats := key.Stats()
	assert.Equal(t, key.ID, stats.KeyID)
	assert.Equal(t, int64(7), stats.UsageCount)
	assert.Nil(t, stats.LastUsedAt)
	assert.Nil(t, stats.LastUsedIP)
	assert.Equal(t, key.CreatedAt, stats.CreatedAt)
}

func TestAssertOwnership(t *testing.T) {
	key := createTestAPIKey()

	assert.NoError(t, AssertOwnership(key, "user-1"))

	err := AssertOwnership(key, "user-2")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAPIKeyForbidden)
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	assert.ErrorIs(t, AssertOwnership(key, ""), ErrAPIKeyForbidden)
	assert.ErrorIs(t, AssertOwnership(nil, "user-1"), ErrAPIKeyForbidden)
}

func TestPrincipal_HasPermission(t *testing.T) {
	key := createTestAPIKey()
	principal := NewPrincipal(key)

	assert.Equal(t, "user-1", principal.OwnerID)
	assert.Equal(t, key.ID, principal.KeyID)
	assert.Equal(t, "ci pipeline", principal.KeyName)
	assert.True(t, principal.HasPermission("read"))
	assert.False(t, principal.HasPermission("admin"))

	key.Permissions = []string{WildcardPermission}
	assert.True(t, NewPrincipal(key).HasPermission("admin"))

	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.HasPermission("read"))
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{ErrAPIKeyNotFound, apperrors.ErrNotFound},
		{ErrAPIKeyForbidden, apperrors.ErrForbidden},
		{ErrInvalidName, apperrors.ErrInvalidInput},
		{ErrInvalidPermissions, apperrors.ErrInvalidInput},
		{ErrExpiresAtInPast, apperrors.ErrInvalidInput},
		{ErrNothingToUpdate, apperrors.ErrInvalidInput},
		{ErrAPIKeyNotActive, apperrors.ErrInvalidInput},
		{ErrAPIKeyLimitReached, apperrors.ErrConflict},
		{ErrLookupPrefixConflict, apperrors.ErrConflict},
		{ErrHashingUnavailable, apperrors.ErrUnavailable},
		{ErrCredentialMissing, apperrors.ErrUnauthorized},
		{ErrCredentialInvalid, apperrors.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
		})
	}
}

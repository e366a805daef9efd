package usecase

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/allisson/apikeys/internal/apikey/domain"
	"github.com/allisson/apikeys/internal/apikey/repository"
	"github.com/allisson/apikeys/internal/apikey/service"
	"github.com/allisson/apikeys/internal/apikey/usecase/mocks"
	"github.com/allisson/apikeys/internal/database"
	apperrors "github.com/allisson/apikeys/internal/errors"
)

const (
	testOwner  = "owner-1"
	otherOwner = "owner-2"
)

type testEnv struct {
	uc     *apiKeyUseCase
	repo   *repository.MemoryAPIKeyRepository
	audit  *repository.MemoryAuditLogRepository
	params domain.KeyParams
}

func newTestEnv(t *testing.T, opts Options, random io.Reader) *testEnv {
	t.Helper()

	params := domain.DefaultKeyParams()
	params.BcryptCost = bcrypt.MinCost
	params.HashConcurrency = 4

	codec := service.NewKeyCodec(params)
	if random != nil {
		codec = service.NewKeyCodecWithReader(params, random)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewMemoryAPIKeyRepository()
	audit := repository.NewMemoryAuditLogRepository()

	uc := NewAPIKeyUseCase(
		database.NewNoopTxManager(),
		repo,
		NewAuditLogUseCase(audit, logger),
		codec,
		service.NewBcryptHasher(params.BcryptCost, params.HashConcurrency),
		opts,
		logger,
	).(*apiKeyUseCase)

	return &testEnv{uc: uc, repo: repo, audit: audit, params: params}
}

func createKey(t *testing.T, env *testEnv, ownerID string, permissions ...string) *domain.CreateAPIKeyOutput {
	t.Helper()
	if len(permissions) == 0 {
		permissions = []string{"read"}
	}
	output, err := env.uc.Create(context.Background(), &domain.CreateAPIKeyInput{
		OwnerID:     ownerID,
		Name:        "ci token",
		Permissions: permissions,
	})
	require.NoError(t, err)
	return output
}

func auditActions(env *testEnv) []domain.AuditAction {
	var actions []domain.AuditAction
	for _, event := range env.audit.Events() {
		actions = append(actions, event.Action)
	}
	return actions
}

func TestAPIKeyUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_ReturnsPlaintextOnce", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		expiresAt := time.Now().Add(time.Hour)

		output, err := env.uc.Create(ctx, &domain.CreateAPIKeyInput{
			OwnerID:     testOwner,
			Name:        "  deploy bot  ",
			Permissions: []string{" read ", "write", "read", ""},
			ExpiresAt:   &expiresAt,
		})
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(output.PlainSecret, env.params.MarkerPrefix()))
		assert.Empty(t, output.APIKey.SecretHash)
		assert.Equal(t, "deploy bot", output.APIKey.Name)
		assert.Equal(t, []string{"read", "write"}, output.APIKey.Permissions)
		assert.Equal(t, output.PlainSecret[:env.params.LookupPrefixLength], output.APIKey.LookupPrefix)
		assert.Equal(t, int64(0), output.APIKey.UsageCount)
		assert.Nil(t, output.APIKey.LastUsedAt)
		require.NotNil(t, output.APIKey.ExpiresAt)
		assert.True(t, expiresAt.Equal(*output.APIKey.ExpiresAt))

		stored, err := env.repo.Get(ctx, output.APIKey.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, stored.SecretHash)
		assert.NotContains(t, stored.SecretHash, output.PlainSecret)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.SecretHash), []byte(output.PlainSecret)))

		events := env.audit.Events()
		require.Len(t, events, 1)
		assert.Equal(t, domain.AuditActionCreate, events[0].Action)
		assert.Equal(t, domain.AuditSeverityInfo, events[0].Severity)
		assert.Equal(t, domain.AuditResourceType, events[0].ResourceType)
		assert.Equal(t, output.APIKey.ID.String(), events[0].ResourceID)
		assert.NotContains(t, events[0].Metadata, "secret")
	})

	t.Run("Error_InvalidInput", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		past := time.Now().Add(-time.Minute)

		tests := []struct {
			name     string
			input    *domain.CreateAPIKeyInput
			sentinel error
		}{
			{"blank name", &domain.CreateAPIKeyInput{OwnerID: testOwner, Name: "   ", Permissions: []string{"read"}}, domain.ErrInvalidName},
			{"long name", &domain.CreateAPIKeyInput{OwnerID: testOwner, Name: strings.Repeat("n", 101), Permissions: []string{"read"}}, domain.ErrInvalidName},
			{"no permissions", &domain.CreateAPIKeyInput{OwnerID: testOwner, Name: "key"}, domain.ErrInvalidPermissions},
			{"blank permissions", &domain.CreateAPIKeyInput{OwnerID: testOwner, Name: "key", Permissions: []string{" ", ""}}, domain.ErrInvalidPermissions},
			{"malformed permission", &domain.CreateAPIKeyInput{OwnerID: testOwner, Name: "key", Permissions: []string{"Read All"}}, domain.ErrInvalidPermissions},
			{"expired", &domain.CreateAPIKeyInput{OwnerID: testOwner, Name: "key", Permissions: []string{"read"}, ExpiresAt: &past}, domain.ErrExpiresAtInPast},
			{"blank owner", &domain.CreateAPIKeyInput{OwnerID: " ", Name: "key", Permissions: []string{"read"}}, apperrors.ErrInvalidInput},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				output, err := env.uc.Create(ctx, tt.input)
				assert.Nil(t, output)
				assert.ErrorIs(t, err, tt.sentinel)
				assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			})
		}

		keys, err := env.repo.ListByOwner(ctx, testOwner)
		require.NoError(t, err)
		assert.Empty(t, keys)
		assert.Empty(t, env.audit.Events())
	})

	t.Run("Error_NilInput", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)

		output, err := env.uc.Create(ctx, nil)
		assert.Nil(t, output)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Empty(t, env.audit.Events())
	})

	t.Run("Error_LimitReached", func(t *testing.T) {
		env := newTestEnv(t, Options{MaxKeysPerOwner: 2}, nil)
		createKey(t, env, testOwner)
		second := createKey(t, env, testOwner)

		_, err := env.uc.Create(ctx, &domain.CreateAPIKeyInput{OwnerID: testOwner, Name: "third", Permissions: []string{"read"}})
		assert.ErrorIs(t, err, domain.ErrAPIKeyLimitReached)
		assert.ErrorIs(t, err, apperrors.ErrConflict)

		// Revoked keys free a slot; other owners are unaffected.
		require.NoError(t, env.uc.Revoke(ctx, testOwner, second.APIKey.ID))
		createKey(t, env, testOwner)
		createKey(t, env, otherOwner)
	})

	t.Run("Success_RetriesAfterPrefixCollision", func(t *testing.T) {
		zeros := make([]byte, 64)
		env := newTestEnv(t, Options{}, io.MultiReader(bytes.NewReader(zeros), rand.Reader))

		first := createKey(t, env, testOwner)
		second := createKey(t, env, testOwner)
		assert.NotEqual(t, first.APIKey.LookupPrefix, second.APIKey.LookupPrefix)
	})

	t.Run("Error_CollisionRetriesExhausted", func(t *testing.T) {
		zeros := make([]byte, 32*(maxGenerateAttempts+1))
		env := newTestEnv(t, Options{}, bytes.NewReader(zeros))

		createKey(t, env, testOwner)
		_, err := env.uc.Create(ctx, &domain.CreateAPIKeyInput{OwnerID: testOwner, Name: "dup", Permissions: []string{"read"}})
		assert.ErrorIs(t, err, domain.ErrLookupPrefixConflict)
	})

	t.Run("Error_HashingUnavailableOnCancelledContext", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := env.uc.Create(cancelled, &domain.CreateAPIKeyInput{OwnerID: testOwner, Name: "key", Permissions: []string{"read"}})
		assert.ErrorIs(t, err, domain.ErrHashingUnavailable)
		assert.ErrorIs(t, err, apperrors.ErrUnavailable)

		keys, err := env.repo.ListByOwner(ctx, testOwner)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}

func TestAPIKeyUseCase_GetAndList(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Options{}, nil)

	first := createKey(t, env, testOwner)
	second := createKey(t, env, testOwner)
	createKey(t, env, otherOwner)

	t.Run("List_NewestFirst", func(t *testing.T) {
		keys, err := env.uc.List(ctx, testOwner)
		require.NoError(t, err)
		require.Len(t, keys, 2)
		assert.Equal(t, second.APIKey.ID, keys[0].ID)
		assert.Equal(t, first.APIKey.ID, keys[1].ID)
		for _, key := range keys {
			assert.Empty(t, key.SecretHash)
		}
	})

	t.Run("List_IncludesExpired", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		expiresAt := time.Now().Add(time.Minute)
		_, err := env.uc.Create(ctx, &domain.CreateAPIKeyInput{
			OwnerID: testOwner, Name: "short", Permissions: []string{"read"}, ExpiresAt: &expiresAt,
		})
		require.NoError(t, err)

		env.uc.now = func() time.Time { return expiresAt.Add(time.Hour) }
		keys, err := env.uc.List(ctx, testOwner)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, domain.StatusExpired, keys[0].Status(env.uc.clock()))
	})

	t.Run("Get_Success", func(t *testing.T) {
		key, err := env.uc.Get(ctx, testOwner, first.APIKey.ID)
		require.NoError(t, err)
		assert.Equal(t, first.APIKey.ID, key.ID)
		assert.Empty(t, key.SecretHash)
	})

	t.Run("Get_Forbidden", func(t *testing.T) {
		key, err := env.uc.Get(ctx, otherOwner, first.APIKey.ID)
		assert.Nil(t, key)
		assert.ErrorIs(t, err, domain.ErrAPIKeyForbidden)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		key, err := env.uc.Get(ctx, testOwner, uuid.Must(uuid.NewV7()))
		assert.Nil(t, key)
		assert.ErrorIs(t, err, domain.ErrAPIKeyNotFound)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestAPIKeyUseCase_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_NameOnly", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner, "read", "write")
		before, err := env.repo.Get(ctx, created.APIKey.ID)
		require.NoError(t, err)

		name := " renamed "
		updated, err := env.uc.Update(ctx, testOwner, created.APIKey.ID, &domain.UpdateAPIKeyInput{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "renamed", updated.Name)
		assert.Equal(t, []string{"read", "write"}, updated.Permissions)
		assert.Empty(t, updated.SecretHash)

		after, err := env.repo.Get(ctx, created.APIKey.ID)
		require.NoError(t, err)
		assert.Equal(t, before.SecretHash, after.SecretHash)
		assert.Equal(t, before.LookupPrefix, after.LookupPrefix)
		assert.Equal(t, before.UsageCount, after.UsageCount)
		assert.False(t, after.Revoked)
		assert.Equal(t, []domain.AuditAction{domain.AuditActionCreate, domain.AuditActionUpdate}, auditActions(env))
	})

	t.Run("Success_PermissionsOnly", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)

		updated, err := env.uc.Update(ctx, testOwner, created.APIKey.ID, &domain.UpdateAPIKeyInput{
			Permissions: []string{"admin", "admin"},
		})
		require.NoError(t, err)
		assert.Equal(t, "ci token", updated.Name)
		assert.Equal(t, []string{"admin"}, updated.Permissions)
	})

	t.Run("Error_NothingToUpdate", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)

		_, err := env.uc.Update(ctx, testOwner, created.APIKey.ID, &domain.UpdateAPIKeyInput{})
		assert.ErrorIs(t, err, domain.ErrNothingToUpdate)
	})

	t.Run("Error_NilInput", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)

		updated, err := env.uc.Update(ctx, testOwner, created.APIKey.ID, nil)
		assert.Nil(t, updated)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

		stored, err := env.repo.Get(ctx, created.APIKey.ID)
		require.NoError(t, err)
		assert.Equal(t, "ci token", stored.Name)
	})

	t.Run("Error_InvalidValues", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)

		blank := "  "
		_, err := env.uc.Update(ctx, testOwner, created.APIKey.ID, &domain.UpdateAPIKeyInput{Name: &blank})
		assert.ErrorIs(t, err, domain.ErrInvalidName)

		_, err = env.uc.Update(ctx, testOwner, created.APIKey.ID, &domain.UpdateAPIKeyInput{Permissions: []string{}})
		assert.ErrorIs(t, err, domain.ErrInvalidPermissions)
	})

	t.Run("Error_Forbidden", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)

		name := "stolen"
		_, err := env.uc.Update(ctx, otherOwner, created.APIKey.ID, &domain.UpdateAPIKeyInput{Name: &name})
		assert.ErrorIs(t, err, domain.ErrAPIKeyForbidden)

		stored, err := env.repo.Get(ctx, created.APIKey.ID)
		require.NoError(t, err)
		assert.Equal(t, "ci token", stored.Name)
	})
}

func TestAPIKeyUseCase_Revoke(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_Idempotent", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)

		require.NoError(t, env.uc.Revoke(ctx, testOwner, created.APIKey.ID))
		require.NoError(t, env.uc.Revoke(ctx, testOwner, created.APIKey.ID))

		stored, err := env.repo.Get(ctx, created.APIKey.ID)
		require.NoError(t, err)
		assert.True(t, stored.Revoked)
		assert.NotNil(t, stored.RevokedAt)

		events := env.audit.Events()
		require.Len(t, events, 2)
		assert.Equal(t, domain.AuditActionRevoke, events[1].Action)
		assert.Equal(t, domain.AuditSeverityWarning, events[1].Severity)
	})

	t.Run("Error_ForbiddenAndNotFound", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)

		assert.ErrorIs(t, env.uc.Revoke(ctx, otherOwner, created.APIKey.ID), domain.ErrAPIKeyForbidden)
		assert.ErrorIs(t, env.uc.Revoke(ctx, testOwner, uuid.Must(uuid.NewV7())), domain.ErrAPIKeyNotFound)

		stored, err := env.repo.Get(ctx, created.APIKey.ID)
		require.NoError(t, err)
		assert.False(t, stored.Revoked)
	})
}

func TestAPIKeyUseCase_Rotate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		expiresAt := time.Now().Add(24 * time.Hour)
		old, err := env.uc.Create(ctx, &domain.CreateAPIKeyInput{
			OwnerID: testOwner, Name: "deploy", Permissions: []string{"read", "write"}, ExpiresAt: &expiresAt,
		})
		require.NoError(t, err)

		rotated, err := env.uc.Rotate(ctx, testOwner, old.APIKey.ID)
		require.NoError(t, err)
		assert.NotEqual(t, old.APIKey.ID, rotated.APIKey.ID)
		assert.NotEqual(t, old.PlainSecret, rotated.PlainSecret)
		assert.Equal(t, "deploy (Rotated)", rotated.APIKey.Name)
		assert.Equal(t, old.APIKey.Permissions, rotated.APIKey.Permissions)
		assert.Equal(t, old.APIKey.ExpiresAt, rotated.APIKey.ExpiresAt)

		assert.Nil(t, env.uc.Verify(ctx, old.PlainSecret))
		assert.NotNil(t, env.uc.Verify(ctx, rotated.PlainSecret))

		events := env.audit.Events()
		require.Len(t, events, 2)
		assert.Equal(t, domain.AuditActionRotate, events[1].Action)
		assert.Equal(t, domain.AuditSeverityWarning, events[1].Severity)
		assert.Equal(t, rotated.APIKey.ID.String(), events[1].Metadata["new_key_id"])
	})

	t.Run("Error_NotActive", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)
		require.NoError(t, env.uc.Revoke(ctx, testOwner, created.APIKey.ID))

		_, err := env.uc.Rotate(ctx, testOwner, created.APIKey.ID)
		assert.ErrorIs(t, err, domain.ErrAPIKeyNotActive)
	})

	t.Run("Error_Forbidden", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)

		_, err := env.uc.Rotate(ctx, otherOwner, created.APIKey.ID)
		assert.ErrorIs(t, err, domain.ErrAPIKeyForbidden)
	})

	t.Run("Error_RevokedConcurrently", func(t *testing.T) {
		repo := &mocks.MockAPIKeyRepository{}
		env := newTestEnv(t, Options{}, nil)
		env.uc.apiKeyRepo = repo

		key := &domain.APIKey{ID: uuid.Must(uuid.NewV7()), OwnerID: testOwner, Name: "k", Permissions: []string{"read"}}
		repo.On("Get", mock.Anything, key.ID).Return(key, nil).Once()
		repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.APIKey")).Return(nil).Once()
		repo.On("SetRevoked", mock.Anything, key.ID, mock.AnythingOfType("time.Time")).Return(false, nil).Once()

		_, err := env.uc.Rotate(ctx, testOwner, key.ID)
		assert.ErrorIs(t, err, domain.ErrAPIKeyNotActive)
		repo.AssertExpectations(t)
	})

	t.Run("Success_RetriesAfterPrefixCollisionWithoutTransaction", func(t *testing.T) {
		// The first two secrets are identical, so the replacement collides with the
		// key being rotated and the next secret is drawn from crypto/rand.
		zeros := make([]byte, 64)
		env := newTestEnv(t, Options{}, io.MultiReader(bytes.NewReader(zeros), rand.Reader))
		old := createKey(t, env, testOwner)

		rotated, err := env.uc.Rotate(ctx, testOwner, old.APIKey.ID)
		require.NoError(t, err)
		assert.NotEqual(t, old.APIKey.LookupPrefix, rotated.APIKey.LookupPrefix)

		stored, err := env.repo.Get(ctx, old.APIKey.ID)
		require.NoError(t, err)
		assert.True(t, stored.Revoked)
		assert.Nil(t, env.uc.Verify(ctx, old.PlainSecret))
		assert.NotNil(t, env.uc.Verify(ctx, rotated.PlainSecret))

		keys, err := env.uc.List(ctx, testOwner)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Equal(t, rotated.APIKey.ID, keys[0].ID)
	})
}

func TestAPIKeyUseCase_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_IncrementsUsage", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner, "read")

		key := env.uc.Verify(ctx, created.PlainSecret)
		require.NotNil(t, key)
		assert.Equal(t, created.APIKey.ID, key.ID)
		assert.Equal(t, int64(1), key.UsageCount)
		assert.NotNil(t, key.LastUsedAt)
		assert.Empty(t, key.SecretHash)
		assert.Equal(t, []string{"read"}, key.Permissions)

		key = env.uc.Verify(ctx, created.PlainSecret)
		require.NotNil(t, key)
		assert.Equal(t, int64(2), key.UsageCount)
		assert.Nil(t, key.LastUsedIP)
	})

	t.Run("Success_LogsAtInfoLevel", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)

		var buf bytes.Buffer
		env.uc.logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

		require.NotNil(t, env.uc.Verify(ctx, created.PlainSecret))
		assert.Contains(t, buf.String(), "level=INFO msg=\"api key verified\"")
		assert.Contains(t, buf.String(), "lookup_prefix="+created.APIKey.LookupPrefix)
		assert.NotContains(t, buf.String(), created.PlainSecret)
	})

	t.Run("Success_RecordsClientAddress", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner, "read")

		key := env.uc.Verify(domain.WithClientIP(ctx, "203.0.113.7"), created.PlainSecret)
		require.NotNil(t, key)
		require.NotNil(t, key.LastUsedIP)
		assert.Equal(t, "203.0.113.7", *key.LastUsedIP)

		// A verification without a known address keeps the last recorded one.
		require.NotNil(t, env.uc.Verify(ctx, created.PlainSecret))

		stats, err := env.uc.UsageStats(ctx, testOwner, created.APIKey.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.UsageCount)
		require.NotNil(t, stats.LastUsedIP)
		assert.Equal(t, "203.0.113.7", *stats.LastUsedIP)
	})

	t.Run("Rejects_WrongSecretWithoutRecordingAddress", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)
		other, _, err := env.uc.codec.Generate()
		require.NoError(t, err)
		wrong := created.APIKey.LookupPrefix + other[len(created.APIKey.LookupPrefix):]

		assert.Nil(t, env.uc.Verify(domain.WithClientIP(ctx, "198.51.100.9"), wrong))

		stored, err := env.repo.Get(ctx, created.APIKey.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.LastUsedIP)
	})

	t.Run("Rejects_RevokedKey", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)
		require.NoError(t, env.uc.Revoke(ctx, testOwner, created.APIKey.ID))

		assert.Nil(t, env.uc.Verify(ctx, created.PlainSecret))
	})

	t.Run("Rejects_ExpiredKey", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		expiresAt := time.Now().Add(time.Minute)
		created, err := env.uc.Create(ctx, &domain.CreateAPIKeyInput{
			OwnerID: testOwner, Name: "short", Permissions: []string{"read"}, ExpiresAt: &expiresAt,
		})
		require.NoError(t, err)

		env.uc.now = func() time.Time { return expiresAt }
		assert.Nil(t, env.uc.Verify(ctx, created.PlainSecret))

		stored, err := env.repo.Get(ctx, created.APIKey.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stored.UsageCount)
	})

	t.Run("Rejects_WrongBodyWithoutIncrement", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)

		last := created.PlainSecret[len(created.PlainSecret)-1]
		replacement := byte('A')
		if last == replacement {
			replacement = 'B'
		}
		wrong := created.PlainSecret[:len(created.PlainSecret)-1] + string(replacement)

		assert.Nil(t, env.uc.Verify(ctx, wrong))

		stored, err := env.repo.Get(ctx, created.APIKey.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stored.UsageCount)
		assert.Nil(t, stored.LastUsedAt)
	})

	t.Run("Rejects_MalformedAndUnknown", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		createKey(t, env, testOwner)

		for _, candidate := range []string{"", "apk_", "not-a-key", strings.Repeat("x", 10_000), "apk_" + strings.Repeat("Z", 43)} {
			assert.Nil(t, env.uc.Verify(ctx, candidate))
		}
	})

	t.Run("Rejects_CancelledContextWithoutIncrement", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.Nil(t, env.uc.Verify(cancelled, created.PlainSecret))

		stored, err := env.repo.Get(ctx, created.APIKey.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stored.UsageCount)
	})

	t.Run("Rejects_StoreError", func(t *testing.T) {
		repo := &mocks.MockAPIKeyRepository{}
		env := newTestEnv(t, Options{}, nil)
		env.uc.apiKeyRepo = repo

		secret, prefix, err := env.uc.codec.Generate()
		require.NoError(t, err)
		repo.On("GetByLookupPrefix", mock.Anything, prefix).Return(nil, errors.New("connection reset")).Once()

		assert.Nil(t, env.uc.Verify(ctx, secret))
		repo.AssertExpectations(t)
	})

	t.Run("Success_UsageFailureDoesNotFailVerification", func(t *testing.T) {
		repo := &mocks.MockAPIKeyRepository{}
		env := newTestEnv(t, Options{}, nil)
		env.uc.apiKeyRepo = repo

		secret, prefix, err := env.uc.codec.Generate()
		require.NoError(t, err)
		hash, err := env.uc.hasher.Hash(ctx, secret)
		require.NoError(t, err)

		key := &domain.APIKey{ID: uuid.Must(uuid.NewV7()), OwnerID: testOwner, LookupPrefix: prefix, SecretHash: hash, Permissions: []string{"read"}}
		repo.On("GetByLookupPrefix", mock.Anything, prefix).Return(key, nil).Once()
		repo.On("IncrementUsage", mock.Anything, key.ID, mock.AnythingOfType("time.Time"), (*string)(nil)).
			Return(false, errors.New("write timeout")).
			Once()

		result := env.uc.Verify(ctx, secret)
		require.NotNil(t, result)
		assert.Equal(t, int64(0), result.UsageCount)
		assert.Empty(t, result.SecretHash)
		repo.AssertExpectations(t)
	})

	t.Run("Success_ConcurrentVerificationsAreAdditive", func(t *testing.T) {
		env := newTestEnv(t, Options{}, nil)
		created := createKey(t, env, testOwner)

		const workers = 16
		var wg sync.WaitGroup
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NotNil(t, env.uc.Verify(ctx, created.PlainSecret))
			}()
		}
		wg.Wait()

		stored, err := env.repo.Get(ctx, created.APIKey.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(workers), stored.UsageCount)
	})
}

func TestAPIKeyUseCase_UsageStats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Options{}, nil)
	created := createKey(t, env, testOwner)
	require.NotNil(t, env.uc.Verify(ctx, created.PlainSecret))

	stats, err := env.uc.UsageStats(ctx, testOwner, created.APIKey.ID)
	require.NoError(t, err)
	assert.Equal(t, created.APIKey.ID, stats.KeyID)
	assert.Equal(t, int64(1), stats.UsageCount)
	assert.NotNil(t, stats.LastUsedAt)
	assert.Equal(t, created.APIKey.CreatedAt, stats.CreatedAt)

	_, err = env.uc.UsageStats(ctx, otherOwner, created.APIKey.ID)
	assert.ErrorIs(t, err, domain.ErrAPIKeyForbidden)
}

func TestAPIKeyUseCase_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Options{}, nil)

	expiresAt := time.Now().Add(time.Minute)
	_, err := env.uc.Create(ctx, &domain.CreateAPIKeyInput{
		OwnerID: testOwner, Name: "short", Permissions: []string{"read"}, ExpiresAt: &expiresAt,
	})
	require.NoError(t, err)
	createKey(t, env, testOwner)

	env.uc.now = func() time.Time { return expiresAt.Add(48 * time.Hour) }

	count, err := env.uc.CleanupExpired(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = env.uc.CleanupExpired(ctx, 7, false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	count, err = env.uc.CleanupExpired(ctx, 1, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	keys, err := env.uc.List(ctx, testOwner)
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	_, err = env.uc.CleanupExpired(ctx, -1, false)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAPIKeyUseCase_EndToEnd(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, Options{MaxKeysPerOwner: 20}, nil)

	created := createKey(t, env, testOwner, "read")

	keys, err := env.uc.List(ctx, testOwner)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, created.APIKey.ID, keys[0].ID)

	verified := env.uc.Verify(ctx, created.PlainSecret)
	require.NotNil(t, verified)
	assert.Equal(t, []string{"read"}, verified.Permissions)

	name := "renamed"
	_, err = env.uc.Update(ctx, testOwner, created.APIKey.ID, &domain.UpdateAPIKeyInput{Name: &name})
	require.NoError(t, err)

	got, err := env.uc.Get(ctx, testOwner, created.APIKey.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, created.APIKey.ID, got.ID)
	assert.Equal(t, []string{"read"}, got.Permissions)

	require.NoError(t, env.uc.Revoke(ctx, testOwner, created.APIKey.ID))
	assert.Nil(t, env.uc.Verify(ctx, created.PlainSecret))

	keys, err = env.uc.List(ctx, testOwner)
	require.NoError(t, err)
	assert.Empty(t, keys)

	assert.Equal(t, []domain.AuditAction{
		domain.AuditActionCreate,
		domain.AuditActionUpdate,
		domain.AuditActionRevoke,
	}, auditActions(env))
}

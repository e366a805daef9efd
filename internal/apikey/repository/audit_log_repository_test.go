package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/apikeys/internal/apikey/domain"
)

func newTestAuditEvent() *domain.AuditEvent {
	return &domain.AuditEvent{
		ID:           uuid.Must(uuid.NewV7()),
		OwnerID:      "user-1",
		Action:       domain.AuditActionRevoke,
		ResourceType: domain.AuditResourceType,
		ResourceID:   uuid.Must(uuid.NewV7()).String(),
		Severity:     domain.AuditSeverityWarning,
		Metadata:     map[string]any{"name": "deploy bot"},
		CreatedAt:    time.Now().UTC(),
	}
}

func TestPostgreSQLAuditLogRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLAuditLogRepository(db)
		event := newTestAuditEvent()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
			WithArgs(
				event.ID, "user-1", "api_key.revoke", "api-key", event.ResourceID, "warning",
				`{"name":"deploy bot"}`, event.CreatedAt,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, event))
	})

	t.Run("Success_NilMetadata", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLAuditLogRepository(db)
		event := newTestAuditEvent()
		event.Metadata = nil

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), nil, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Create(ctx, event))
	})

	t.Run("Error_UnmarshalableMetadata", func(t *testing.T) {
		db, _ := newMockDB(t)
		repo := NewPostgreSQLAuditLogRepository(db)
		event := newTestAuditEvent()
		event.Metadata = map[string]any{"bad": make(chan int)}

		assert.ErrorContains(t, repo.Create(ctx, event), "failed to marshal audit log metadata")
	})

	t.Run("Error_Database", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLAuditLogRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).WillReturnError(errors.New("disk full"))

		assert.ErrorContains(t, repo.Create(ctx, newTestAuditEvent()), "failed to create audit log")
	})
}

func TestPostgreSQLAuditLogRepository_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewPostgreSQLAuditLogRepository(db)
	before := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs WHERE created_at < $1")).
		WithArgs(before).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audit_logs WHERE created_at < $1")).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 12))

	count, err := repo.DeleteOlderThan(ctx, before, true)
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)

	count, err = repo.DeleteOlderThan(ctx, before, false)
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)
}

func TestMySQLAuditLogRepository(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewMySQLAuditLogRepository(db)
	event := newTestAuditEvent()
	id, _ := event.ID.MarshalBinary()
	before := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WithArgs(id, "user-1", "api_key.revoke", "api-key", event.ResourceID, "warning",
			`{"name":"deploy bot"}`, event.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audit_logs WHERE created_at < ?")).
		WithArgs(before).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.Create(ctx, event))

	count, err := repo.DeleteOlderThan(ctx, before, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestMemoryAuditLogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAuditLogRepository()

	old := newTestAuditEvent()
	old.CreatedAt = time.Now().UTC().AddDate(0, 0, -100)
	recent := newTestAuditEvent()

	require.NoError(t, repo.Create(ctx, old))
	require.NoError(t, repo.Create(ctx, recent))

	old.Metadata["name"] = "mutated after insert"
	events := repo.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "deploy bot", events[0].Metadata["name"])

	cutoff := time.Now().UTC().AddDate(0, 0, -90)

	count, err := repo.DeleteOlderThan(ctx, cutoff, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Len(t, repo.Events(), 2)

	count, err = repo.DeleteOlderThan(ctx, cutoff, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	events = repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, recent.ID, events[0].ID)
}

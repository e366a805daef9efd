// Package mocks provides mock implementations of the API key use case interfaces for testing.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/apikeys/internal/apikey/domain"
)

// MockAPIKeyUseCase is a mock implementation of APIKeyUseCase for testing.
type MockAPIKeyUseCase struct {
	mock.Mock
}

// Create mocks the Create method of APIKeyUseCase.
func (m *MockAPIKeyUseCase) Create(
	ctx context.Context,
	input *domain.CreateAPIKeyInput,
) (*domain.CreateAPIKeyOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreateAPIKeyOutput), args.Error(1)
}

// List mocks the List method of APIKeyUseCase.
func (m *MockAPIKeyUseCase) List(ctx context.Context, ownerID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

// Get mocks the Get method of APIKeyUseCase.
func (m *MockAPIKeyUseCase) Get(ctx context.Context, ownerID string, id uuid.UUID) (*domain.APIKey, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

// Update mocks the Update method of APIKeyUseCase.
func (m *MockAPIKeyUseCase) Update(
	ctx context.Context,
	ownerID string,
	id uuid.UUID,
	input *domain.UpdateAPIKeyInput,
) (*domain.APIKey, error) {
	args := m.Called(ctx, ownerID, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

// Revoke mocks the Revoke method of APIKeyUseCase.
func (m *MockAPIKeyUseCase) Revoke(ctx context.Context, ownerID string, id uuid.UUID) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}

// Rotate mocks the Rotate method of APIKeyUseCase.
func (m *MockAPIKeyUseCase) Rotate(
	ctx context.Context,
	ownerID string,
	id uuid.UUID,
) (*domain.CreateAPIKeyOutput, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreateAPIKeyOutput), args.Error(1)
}

// Verify mocks the Verify method of APIKeyUseCase.
func (m *MockAPIKeyUseCase) Verify(ctx context.Context, candidate string) *domain.APIKey {
	args := m.Called(ctx, candidate)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*domain.APIKey)
}

// UsageStats mocks the UsageStats method of APIKeyUseCase.
func (m *MockAPIKeyUseCase) UsageStats(ctx context.Context, ownerID string, id uuid.UUID) (*domain.UsageStats, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UsageStats), args.Error(1)
}

// CleanupExpired mocks the CleanupExpired method of APIKeyUseCase.
func (m *MockAPIKeyUseCase) CleanupExpired(ctx context.Context, olderThanDays int, dryRun bool) (int64, error) {
	args := m.Called(ctx, olderThanDays, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

// MockAuditLogUseCase is a mock implementation of AuditLogUseCase for testing.
type MockAuditLogUseCase struct {
	mock.Mock
}

// DeleteOlderThan mocks the DeleteOlderThan method of AuditLogUseCase.
func (m *MockAuditLogUseCase) DeleteOlderThan(ctx context.Context, days int, dryRun bool) (int64, error) {
	args := m.Called(ctx, days, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

// MockAPIKeyRepository is a mock implementation of APIKeyRepository for testing.
type MockAPIKeyRepository struct {
	mock.Mock
}

// Create mocks the Create method of APIKeyRepository.
func (m *MockAPIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// Get mocks the Get method of APIKeyRepository.
func (m *MockAPIKeyRepository) Get(ctx context.Context, id uuid.UUID) (*domain.APIKey, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

// GetByLookupPrefix mocks the GetByLookupPrefix method of APIKeyRepository.
func (m *MockAPIKeyRepository) GetByLookupPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

// ListByOwner mocks the ListByOwner method of APIKeyRepository.
func (m *MockAPIKeyRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.APIKey, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.APIKey), args.Error(1)
}

// CountByOwner mocks the CountByOwner method of APIKeyRepository.
func (m *MockAPIKeyRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

// Update mocks the Update method of APIKeyRepository.
func (m *MockAPIKeyRepository) Update(
	ctx context.Context,
	id uuid.UUID,
	name *string,
	permissions []string,
	updatedAt time.Time,
) (*domain.APIKey, error) {
	args := m.Called(ctx, id, name, permissions, updatedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.APIKey), args.Error(1)
}

// SetRevoked mocks the SetRevoked method of APIKeyRepository.
func (m *MockAPIKeyRepository) SetRevoked(ctx context.Context, id uuid.UUID, revokedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, revokedAt)
	return args.Bool(0), args.Error(1)
}

// IncrementUsage mocks the IncrementUsage method of APIKeyRepository.
func (m *MockAPIKeyRepository) IncrementUsage(
	ctx context.Context,
	id uuid.UUID,
	usedAt time.Time,
	usedFrom *string,
) (bool, error) {
	args := m.Called(ctx, id, usedAt, usedFrom)
	return args.Bool(0), args.Error(1)
}

// DeleteExpired mocks the DeleteExpired method of APIKeyRepository.
func (m *MockAPIKeyRepository) DeleteExpired(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	args := m.Called(ctx, before, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

// MockAuditLogRepository is a mock implementation of AuditLogRepository for testing.
type MockAuditLogRepository struct {
	mock.Mock
}

// Create mocks the Create method of AuditLogRepository.
func (m *MockAuditLogRepository) Create(ctx context.Context, event *domain.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// DeleteOlderThan mocks the DeleteOlderThan method of AuditLogRepository.
func (m *MockAuditLogRepository) DeleteOlderThan(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	args := m.Called(ctx, before, dryRun)
	return args.Get(0).(int64), args.Error(1)
}

// Package repository implements API key and audit event persistence.
//
// Provides PostgreSQL and MySQL implementations with transaction support via database.GetTx(),
// plus an in-memory implementation for tests and single-process deployments.
// PostgreSQL uses native UUID and TEXT[] types, MySQL uses BINARY(16) and JSON.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/apikeys/internal/apikey/domain"
	"github.com/allisson/apikeys/internal/database"
	apperrors "github.com/allisson/apikeys/internal/errors"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

const pgAPIKeyColumns = `id, owner_id, name, secret_hash, lookup_prefix, permissions, usage_count,
			  last_used_at, last_used_ip, expires_at, revoked, revoked_at, created_at, updated_at`

// PostgreSQLAPIKeyRepository implements APIKey persistence for PostgreSQL.
type PostgreSQLAPIKeyRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgreSQLAPIKey(row rowScanner) (*domain.APIKey, error) {
	var key domain.APIKey
	var permissions pq.StringArray

	err := row.Scan(
		&key.ID,
		&key.OwnerID,
		&key.Name,
		&key.SecretHash,
		&key.LookupPrefix,
		&permissions,
		&key.UsageCount,
		&key.LastUsedAt,
		&key.LastUsedIP,
		&key.ExpiresAt,
		&key.Revoked,
		&key.RevokedAt,
		&key.CreatedAt,
		&key.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	key.Permissions = []string(permissions)
	return &key, nil
}

// Create inserts a new APIKey. A duplicate lookup prefix yields domain.ErrLookupPrefixConflict.
func (p *PostgreSQLAPIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO api_keys (` + pgAPIKeyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		key.OwnerID,
		key.Name,
		key.SecretHash,
		key.LookupPrefix,
		pq.Array(key.Permissions),
		key.UsageCount,
		key.LastUsedAt,
		key.LastUsedIP,
		key.ExpiresAt,
		key.Revoked,
		key.RevokedAt,
		key.CreatedAt,
		key.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return domain.ErrLookupPrefixConflict
		}
		return apperrors.Wrap(err, "failed to create api key")
	}
	return nil
}

// Get retrieves an APIKey by ID.
func (p *PostgreSQLAPIKeyRepository) Get(ctx context.Context, id uuid.UUID) (*domain.APIKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pgAPIKeyColumns + ` FROM api_keys WHERE id = $1`

	key, err := scanPostgreSQLAPIKey(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAPIKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get api key")
	}
	return key, nil
}

// GetByLookupPrefix retrieves an APIKey by lookup prefix, revoked and expired keys included.
func (p *PostgreSQLAPIKeyRepository) GetByLookupPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pgAPIKeyColumns + ` FROM api_keys WHERE lookup_prefix = $1`

	key, err := scanPostgreSQLAPIKey(querier.QueryRowContext(ctx, query, prefix))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAPIKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get api key by lookup prefix")
	}
	return key, nil
}

// ListByOwner returns the non-revoked keys of ownerID, newest first.
func (p *PostgreSQLAPIKeyRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.APIKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + pgAPIKeyColumns + `
			  FROM api_keys
			  WHERE owner_id = $1 AND revoked = FALSE
			  ORDER BY created_at DESC, id DESC`

	rows, err := querier.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list api keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	keys := make([]*domain.APIKey, 0)
	for rows.Next() {
		key, err := scanPostgreSQLAPIKey(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan api key")
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate api keys")
	}

	return keys, nil
}

// CountByOwner returns the number of non-revoked keys of ownerID.
func (p *PostgreSQLAPIKeyRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COUNT(*) FROM api_keys WHERE owner_id = $1 AND revoked = FALSE`

	var count int
	if err := querier.QueryRowContext(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count api keys")
	}
	return count, nil
}

// Update sets name and/or permissions (nil leaves the column untouched) and returns the stored key.
func (p *PostgreSQLAPIKeyRepository) Update(
	ctx context.Context,
	id uuid.UUID,
	name *string,
	permissions []string,
	updatedAt time.Time,
) (*domain.APIKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE api_keys
			  SET name = COALESCE($1, name),
				  permissions = COALESCE($2, permissions),
				  updated_at = $3
			  WHERE id = $4
			  RETURNING ` + pgAPIKeyColumns

	var permissionsArg any
	if permissions != nil {
		permissionsArg = pq.Array(permissions)
	}

	key, err := scanPostgreSQLAPIKey(querier.QueryRowContext(ctx, query, name, permissionsArg, updatedAt, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAPIKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to update api key")
	}
	return key, nil
}

// SetRevoked revokes a key that is not revoked yet. Returns false when nothing changed.
func (p *PostgreSQLAPIKeyRepository) SetRevoked(ctx context.Context, id uuid.UUID, revokedAt time.Time) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE api_keys
			  SET revoked = TRUE, revoked_at = $1, updated_at = $1
			  WHERE id = $2 AND revoked = FALSE`

	result, err := querier.ExecContext(ctx, query, revokedAt, id)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to revoke api key")
	}
	return affectedOne(result, "failed to revoke api key")
}

// IncrementUsage atomically adds one to usage_count and sets last_used_at and last_used_ip.
// A nil usedFrom keeps the previously recorded address.
func (p *PostgreSQLAPIKeyRepository) IncrementUsage(
	ctx context.Context,
	id uuid.UUID,
	usedAt time.Time,
	usedFrom *string,
) (bool, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE api_keys
			  SET usage_count = usage_count + 1, last_used_at = $1, last_used_ip = COALESCE($2, last_used_ip)
			  WHERE id = $3`

	result, err := querier.ExecContext(ctx, query, usedAt, usedFrom, id)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to increment api key usage")
	}
	return affectedOne(result, "failed to increment api key usage")
}

// DeleteExpired removes keys whose expiration is before the given time. In dry-run mode
// it only counts them.
func (p *PostgreSQLAPIKeyRepository) DeleteExpired(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	if dryRun {
		var count int64
		query := `SELECT COUNT(*) FROM api_keys WHERE expires_at IS NOT NULL AND expires_at < $1`
		if err := querier.QueryRowContext(ctx, query, before).Scan(&count); err != nil {
			return 0, apperrors.Wrap(err, "failed to count expired api keys")
		}
		return count, nil
	}

	query := `DELETE FROM api_keys WHERE expires_at IS NOT NULL AND expires_at < $1`
	result, err := querier.ExecContext(ctx, query, before)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired api keys")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows")
	}
	return count, nil
}

func affectedOne(result sql.Result, message string) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, message)
	}
	return rows > 0, nil
}

// NewPostgreSQLAPIKeyRepository creates a new PostgreSQL APIKey repository.
func NewPostgreSQLAPIKeyRepository(db *sql.DB) *PostgreSQLAPIKeyRepository {
	return &PostgreSQLAPIKeyRepository{db: db}
}

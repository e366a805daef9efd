package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/allisson/apikeys/internal/apikey/domain"
	"github.com/allisson/apikeys/internal/database"
	apperrors "github.com/allisson/apikeys/internal/errors"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

const mysqlAPIKeyColumns = `id, owner_id, name, secret_hash, lookup_prefix, permissions, usage_count,
			  last_used_at, last_used_ip, expires_at, revoked, revoked_at, created_at, updated_at`

// MySQLAPIKeyRepository implements APIKey persistence for MySQL.
// Uses BINARY(16) for UUIDs and a JSON column for permissions.
type MySQLAPIKeyRepository struct {
	db *sql.DB
}

func scanMySQLAPIKey(row rowScanner) (*domain.APIKey, error) {
	var key domain.APIKey
	var idBytes []byte
	var permissionsJSON []byte

	err := row.Scan(
		&idBytes,
		&key.OwnerID,
		&key.Name,
		&key.SecretHash,
		&key.LookupPrefix,
		&permissionsJSON,
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

	if err := key.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal api key id")
	}
	if err := json.Unmarshal(permissionsJSON, &key.Permissions); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal api key permissions")
	}
	return &key, nil
}

// Create inserts a new APIKey. A duplicate lookup prefix yields domain.ErrLookupPrefixConflict.
func (m *MySQLAPIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO api_keys (` + mysqlAPIKeyColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	id, err := key.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal api key id")
	}

	permissionsJSON, err := json.Marshal(key.Permissions)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal api key permissions")
	}

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		key.OwnerID,
		key.Name,
		key.SecretHash,
		key.LookupPrefix,
		string(permissionsJSON),
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
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
			return domain.ErrLookupPrefixConflict
		}
		return apperrors.Wrap(err, "failed to create api key")
	}
	return nil
}

// Get retrieves an APIKey by ID.
func (m *MySQLAPIKeyRepository) Get(ctx context.Context, id uuid.UUID) (*domain.APIKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlAPIKeyColumns + ` FROM api_keys WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal api key id")
	}

	key, err := scanMySQLAPIKey(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAPIKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get api key")
	}
	return key, nil
}

// GetByLookupPrefix retrieves an APIKey by lookup prefix, revoked and expired keys included.
func (m *MySQLAPIKeyRepository) GetByLookupPrefix(ctx context.Context, prefix string) (*domain.APIKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlAPIKeyColumns + ` FROM api_keys WHERE lookup_prefix = ?`

	key, err := scanMySQLAPIKey(querier.QueryRowContext(ctx, query, prefix))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAPIKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get api key by lookup prefix")
	}
	return key, nil
}

// ListByOwner returns the non-revoked keys of ownerID, newest first.
func (m *MySQLAPIKeyRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.APIKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + mysqlAPIKeyColumns + `
			  FROM api_keys
			  WHERE owner_id = ? AND revoked = FALSE
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
		key, err := scanMySQLAPIKey(rows)
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
func (m *MySQLAPIKeyRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COUNT(*) FROM api_keys WHERE owner_id = ? AND revoked = FALSE`

	var count int
	if err := querier.QueryRowContext(ctx, query, ownerID).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count api keys")
	}
	return count, nil
}

// Update sets name and/or permissions (nil leaves the column untouched) and returns the stored key.
func (m *MySQLAPIKeyRepository) Update(
	ctx context.Context,
	id uuid.UUID,
	name *string,
	permissions []string,
	updatedAt time.Time,
) (*domain.APIKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE api_keys
			  SET name = COALESCE(?, name),
				  permissions = COALESCE(?, permissions),
				  updated_at = ?
			  WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal api key id")
	}

	var permissionsArg any
	if permissions != nil {
		permissionsJSON, err := json.Marshal(permissions)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to marshal api key permissions")
		}
		permissionsArg = string(permissionsJSON)
	}

	if _, err := querier.ExecContext(ctx, query, name, permissionsArg, updatedAt, idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to update api key")
	}

	return m.Get(ctx, id)
}

// SetRevoked revokes a key that is not revoked yet. Returns false when nothing changed.
func (m *MySQLAPIKeyRepository) SetRevoked(ctx context.Context, id uuid.UUID, revokedAt time.Time) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE api_keys
			  SET revoked = TRUE, revoked_at = ?, updated_at = ?
			  WHERE id = ? AND revoked = FALSE`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal api key id")
	}

	result, err := querier.ExecContext(ctx, query, revokedAt, revokedAt, idBytes)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to revoke api key")
	}
	return affectedOne(result, "failed to revoke api key")
}

// IncrementUsage atomically adds one to usage_count and sets last_used_at and last_used_ip.
// A nil usedFrom keeps the previously recorded address.
func (m *MySQLAPIKeyRepository) IncrementUsage(
	ctx context.Context,
	id uuid.UUID,
	usedAt time.Time,
	usedFrom *string,
) (bool, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE api_keys
			  SET usage_count = usage_count + 1, last_used_at = ?, last_used_ip = COALESCE(?, last_used_ip)
			  WHERE id = ?`

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal api key id")
	}

	result, err := querier.ExecContext(ctx, query, usedAt, usedFrom, idBytes)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to increment api key usage")
	}
	return affectedOne(result, "failed to increment api key usage")
}

// DeleteExpired removes keys whose expiration is before the given time. In dry-run mode
// it only counts them.
func (m *MySQLAPIKeyRepository) DeleteExpired(ctx context.Context, before time.Time, dryRun bool) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	if dryRun {
		var count int64
		query := `SELECT COUNT(*) FROM api_keys WHERE expires_at IS NOT NULL AND expires_at < ?`
		if err := querier.QueryRowContext(ctx, query, before).Scan(&count); err != nil {
			return 0, apperrors.Wrap(err, "failed to count expired api keys")
		}
		return count, nil
	}

	query := `DELETE FROM api_keys WHERE expires_at IS NOT NULL AND expires_at < ?`
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

// NewMySQLAPIKeyRepository creates a new MySQL APIKey repository.
func NewMySQLAPIKeyRepository(db *sql.DB) *MySQLAPIKeyRepository {
	return &MySQLAPIKeyRepository{db: db}
}

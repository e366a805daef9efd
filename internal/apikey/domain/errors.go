package domain

import (
	"github.com/allisson/apikeys/internal/errors"
)

// API key lifecycle errors.
var (
	// ErrAPIKeyNotFound indicates no key with the given id exists.
	ErrAPIKeyNotFound = errors.Wrap(errors.ErrNotFound, "api key not found")

	// ErrAPIKeyForbidden indicates the key exists but belongs to another owner.
	ErrAPIKeyForbidden = errors.Wrap(errors.ErrForbidden, "api key belongs to another owner")

	// ErrInvalidName indicates a blank or oversized key name.
	ErrInvalidName = errors.Wrap(errors.ErrInvalidInput, "invalid api key name")

	// ErrInvalidPermissions indicates an empty or malformed permission list.
	ErrInvalidPermissions = errors.Wrap(errors.ErrInvalidInput, "invalid api key permissions")

	// ErrExpiresAtInPast indicates an expiration that has already passed.
	ErrExpiresAtInPast = errors.Wrap(errors.ErrInvalidInput, "expires_at must be in the future")

	// ErrNothingToUpdate indicates an update request carrying neither name nor permissions.
	ErrNothingToUpdate = errors.Wrap(errors.ErrInvalidInput, "name or permissions must be provided")

	// ErrAPIKeyNotActive indicates an operation that requires an active key was attempted
	// on a revoked or expired one.
	ErrAPIKeyNotActive = errors.Wrap(errors.ErrInvalidInput, "api key is not active")

	// ErrAPIKeyLimitReached indicates the owner already holds the maximum number of keys.
	ErrAPIKeyLimitReached = errors.Wrap(errors.ErrConflict, "api key limit reached")

	// ErrLookupPrefixConflict indicates a freshly generated lookup prefix is already stored.
	ErrLookupPrefixConflict = errors.Wrap(errors.ErrConflict, "lookup prefix already exists")

	// ErrHashingUnavailable indicates the hashing backend could not complete the operation.
	ErrHashingUnavailable = errors.Wrap(errors.ErrUnavailable, "secret hashing unavailable")

	// ErrCredentialMissing indicates the request carried no credential.
	ErrCredentialMissing = errors.Wrap(errors.ErrUnauthorized, "credential missing")

	// ErrCredentialInvalid indicates the credential did not verify.
	ErrCredentialInvalid = errors.Wrap(errors.ErrUnauthorized, "credential invalid")
)

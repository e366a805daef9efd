// Package service provides the cryptographic building blocks of API keys: secret
// generation and encoding (KeyCodec) and one-way hashing with constant-time
// verification (SecretHasher).
package service

import "context"

// InvalidLookupPrefix is returned by ExtractLookupPrefix for input that cannot be a key.
// It never matches a stored prefix, so callers can skip the store lookup entirely.
const InvalidLookupPrefix = ""

// KeyCodec generates secrets and derives non-secret identifiers from them.
// Implementations hold no mutable state and are safe for concurrent use.
type KeyCodec interface {
	// Generate draws fresh random bytes and returns the formatted secret
	// ("<marker>_<body>") together with its lookup prefix.
	Generate() (secret string, lookupPrefix string, err error)

	// ExtractLookupPrefix returns the lookup prefix of candidate, or InvalidLookupPrefix
	// when candidate is too short, too long, or lacks the marker. It never panics.
	ExtractLookupPrefix(candidate string) string

	// Redact returns a form of candidate that is safe to log: its lookup prefix,
	// or a fixed placeholder when no prefix can be derived.
	Redact(candidate string) string
}

// SecretHasher hashes secrets for storage and verifies candidates against stored hashes.
//
// Hash output is self-describing (algorithm, parameters, salt and digest), so Verify needs
// nothing but the stored string. Both operations are CPU-bound and respect ctx: when ctx
// ends first they fail with domain.ErrHashingUnavailable.
type SecretHasher interface {
	// Hash returns a salted one-way hash of secret. Every call uses a fresh salt.
	Hash(ctx context.Context, secret string) (string, error)

	// Verify reports whether secret matches hash using a constant-time comparison.
	// A mismatch or a malformed hash yields (false, nil). Only backend failures,
	// including an expired ctx, return an error.
	Verify(ctx context.Context, secret, hash string) (bool, error)
}

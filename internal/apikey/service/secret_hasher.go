package service

import (
	"context"
	"fmt"

	"github.com/allisson/go-pwdhash"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/allisson/apikeys/internal/apikey/domain"
	apperrors "github.com/allisson/apikeys/internal/errors"
)

// bcryptMaxInput is the number of bytes bcrypt reads. Longer candidates are rejected
// outright so that trailing garbage appended to a valid secret never verifies.
const bcryptMaxInput = 72

// boundedRunner runs CPU-bound work on its own goroutine with at most N in flight.
type boundedRunner struct {
	sem *semaphore.Weighted
}

func newBoundedRunner(concurrency int) boundedRunner {
	if concurrency < 1 {
		concurrency = 1
	}
	return boundedRunner{sem: semaphore.NewWeighted(int64(concurrency))}
}

// run executes fn once a slot is free. The caller stops waiting when ctx ends; the slot
// stays taken until fn itself returns.
func (b boundedRunner) run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(domain.ErrHashingUnavailable, err.Error())
	}
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return apperrors.Wrap(domain.ErrHashingUnavailable, err.Error())
	}

	done := make(chan error, 1)
	go func() {
		defer b.sem.Release(1)
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return apperrors.Wrap(domain.ErrHashingUnavailable, ctx.Err().Error())
	}
}

// bcryptHasher implements SecretHasher with bcrypt.
type bcryptHasher struct {
	cost   int
	runner boundedRunner
}

// Hash hashes secret with the configured bcrypt cost.
func (h *bcryptHasher) Hash(ctx context.Context, secret string) (string, error) {
	var hashed []byte
	err := h.runner.run(ctx, func() error {
		var err error
		hashed, err = bcrypt.GenerateFromPassword([]byte(secret), h.cost)
		return err
	})
	if err != nil {
		if apperrors.Is(err, domain.ErrHashingUnavailable) {
			return "", err
		}
		return "", apperrors.Wrap(err, "failed to hash secret")
	}
	return string(hashed), nil
}

// Verify compares secret with a bcrypt hash.
func (h *bcryptHasher) Verify(ctx context.Context, secret, hash string) (bool, error) {
	if len(secret) > bcryptMaxInput {
		return false, nil
	}

	var matched bool
	err := h.runner.run(ctx, func() error {
		// Mismatch and malformed hashes both end up as false.
		matched = bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
		return nil
	})
	if err != nil {
		return false, err
	}
	return matched, nil
}

// NewBcryptHasher creates a bcrypt SecretHasher running at most concurrency hashes at once.
func NewBcryptHasher(cost, concurrency int) SecretHasher {
	return &bcryptHasher{cost: cost, runner: newBoundedRunner(concurrency)}
}

// argon2idHasher implements SecretHasher with Argon2id in PHC string format.
type argon2idHasher struct {
	hasher *pwdhash.PasswordHasher
	runner boundedRunner
}

// Hash hashes secret with Argon2id.
func (h *argon2idHasher) Hash(ctx context.Context, secret string) (string, error) {
	var hashed string
	err := h.runner.run(ctx, func() error {
		var err error
		hashed, err = h.hasher.Hash([]byte(secret))
		return err
	})
	if err != nil {
		if apperrors.Is(err, domain.ErrHashingUnavailable) {
			return "", err
		}
		return "", apperrors.Wrap(err, "failed to hash secret")
	}
	return hashed, nil
}

// Verify compares secret with an Argon2id PHC hash.
func (h *argon2idHasher) Verify(ctx context.Context, secret, hash string) (bool, error) {
	var matched bool
	err := h.runner.run(ctx, func() error {
		ok, err := h.hasher.Verify([]byte(secret), hash)
		matched = err == nil && ok
		return nil
	})
	if err != nil {
		return false, err
	}
	return matched, nil
}

// NewArgon2idHasher creates an Argon2id SecretHasher using the moderate policy.
func NewArgon2idHasher(concurrency int) (SecretHasher, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create argon2id hasher")
	}
	return &argon2idHasher{hasher: hasher, runner: newBoundedRunner(concurrency)}, nil
}

// NewSecretHasher returns the hasher selected by params.HashAlgorithm.
func NewSecretHasher(params domain.KeyParams) (SecretHasher, error) {
	switch params.HashAlgorithm {
	case domain.HashAlgorithmBcrypt:
		return NewBcryptHasher(params.BcryptCost, params.HashConcurrency), nil
	case domain.HashAlgorithmArgon2id:
		return NewArgon2idHasher(params.HashConcurrency)
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", params.HashAlgorithm)
	}
}

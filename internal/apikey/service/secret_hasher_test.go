package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/allisson/apikeys/internal/apikey/domain"
)

// mutateAt returns s with the character at i replaced by a different one.
func mutateAt(s string, i int) string {
	replacement := byte('A')
	if s[i] == 'A' {
		replacement = 'B'
	}
	return s[:i] + string(replacement) + s[i+1:]
}

func testHashers(t *testing.T) map[string]SecretHasher {
	t.Helper()

	argon, err := NewArgon2idHasher(2)
	require.NoError(t, err)

	return map[string]SecretHasher{
		"bcrypt":   NewBcryptHasher(bcrypt.MinCost, 2),
		"argon2id": argon,
	}
}

func TestSecretHasher_RoundTrip(t *testing.T) {
	ctx := context.Background()
	secret, _, err := NewKeyCodec(domain.DefaultKeyParams()).Generate()
	require.NoError(t, err)

	for name, hasher := range testHashers(t) {
		t.Run(name, func(t *testing.T) {
			hash, err := hasher.Hash(ctx, secret)
			require.NoError(t, err)
			assert.NotEqual(t, secret, hash)
			assert.NotContains(t, hash, secret)

			ok, err := hasher.Verify(ctx, secret, hash)
			require.NoError(t, err)
			assert.True(t, ok)

			for i := range len(secret) {
				ok, err := hasher.Verify(ctx, mutateAt(secret, i), hash)
				require.NoError(t, err)
				assert.False(t, ok, "mutation at %d verified", i)
			}

			for _, variant := range []string{secret[:len(secret)-1], secret + "A"} {
				ok, err := hasher.Verify(ctx, variant, hash)
				require.NoError(t, err)
				assert.False(t, ok, "length variant %d verified", len(variant))
			}
		})
	}
}

func TestSecretHasher_FreshSaltPerCall(t *testing.T) {
	ctx := context.Background()

	for name, hasher := range testHashers(t) {
		t.Run(name, func(t *testing.T) {
			hash1, err := hasher.Hash(ctx, "apk_same-secret")
			require.NoError(t, err)
			hash2, err := hasher.Hash(ctx, "apk_same-secret")
			require.NoError(t, err)

			assert.NotEqual(t, hash1, hash2)
		})
	}
}

func TestSecretHasher_MalformedHash(t *testing.T) {
	ctx := context.Background()

	for name, hasher := range testHashers(t) {
		t.Run(name, func(t *testing.T) {
			for _, hash := range []string{"", "not-a-hash", "$2a$04$short", "$argon2id$v=19$broken"} {
				ok, err := hasher.Verify(ctx, "apk_anything", hash)
				assert.NoError(t, err)
				assert.False(t, ok)
			}
		})
	}
}

func TestSecretHasher_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, hasher := range testHashers(t) {
		t.Run(name, func(t *testing.T) {
			hash, err := hasher.Hash(ctx, "apk_secret")
			assert.ErrorIs(t, err, domain.ErrHashingUnavailable)
			assert.Empty(t, hash)

			ok, err := hasher.Verify(ctx, "apk_secret", "$2a$04$anything")
			assert.ErrorIs(t, err, domain.ErrHashingUnavailable)
			assert.False(t, ok)
		})
	}
}

func TestBcryptHasher(t *testing.T) {
	ctx := context.Background()
	hasher := NewBcryptHasher(bcrypt.MinCost, 1)

	t.Run("Success_SelfDescribingHash", func(t *testing.T) {
		hash, err := hasher.Hash(ctx, "apk_secret")
		require.NoError(t, err)

		cost, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err)
		assert.Equal(t, bcrypt.MinCost, cost)
		assert.True(t, strings.HasPrefix(hash, "$2a$"))
	})

	t.Run("Success_RejectsTrailingGarbage", func(t *testing.T) {
		secret := "apk_" + strings.Repeat("x", 68)
		hash, err := hasher.Hash(ctx, secret)
		require.NoError(t, err)

		ok, err := hasher.Verify(ctx, secret+"extra", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Error_SecretTooLong", func(t *testing.T) {
		_, err := hasher.Hash(ctx, strings.Repeat("x", 73))
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrHashingUnavailable)
	})
}

func TestBoundedRunner(t *testing.T) {
	t.Run("Success_AbandonsOnDeadline", func(t *testing.T) {
		runner := newBoundedRunner(1)
		release := make(chan struct{})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := runner.run(ctx, func() error {
			<-release
			return nil
		})
		assert.ErrorIs(t, err, domain.ErrHashingUnavailable)

		// The slot stays taken until the work returns.
		assert.False(t, runner.sem.TryAcquire(1))
		close(release)
		require.Eventually(t, func() bool {
			if runner.sem.TryAcquire(1) {
				runner.sem.Release(1)
				return true
			}
			return false
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("Error_WaitingForSlot", func(t *testing.T) {
		runner := newBoundedRunner(1)
		require.True(t, runner.sem.TryAcquire(1))
		defer runner.sem.Release(1)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		err := runner.run(ctx, func() error { return nil })
		assert.ErrorIs(t, err, domain.ErrHashingUnavailable)
	})
}

func TestNewSecretHasher(t *testing.T) {
	params := domain.DefaultKeyParams()
	params.BcryptCost = bcrypt.MinCost

	hasher, err := NewSecretHasher(params)
	require.NoError(t, err)
	assert.IsType(t, &bcryptHasher{}, hasher)

	params.HashAlgorithm = domain.HashAlgorithmArgon2id
	hasher, err = NewSecretHasher(params)
	require.NoError(t, err)
	assert.IsType(t, &argon2idHasher{}, hasher)

	params.HashAlgorithm = "scrypt"
	_, err = NewSecretHasher(params)
	assert.Error(t, err)
}

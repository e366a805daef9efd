package domain

import (
	"encoding/base64"
	"runtime"
	"strings"

	validation "github.com/jellydator/validation"
	"golang.org/x/crypto/bcrypt"
)

// Supported secret hashing algorithms.
const (
	HashAlgorithmBcrypt   = "bcrypt"
	HashAlgorithmArgon2id = "argon2id"
)

const (
	// MinSecretBytes is the smallest accepted random block (256 bits).
	MinSecretBytes = 32
	// bcryptMaxInput is the number of bytes bcrypt actually reads from its input.
	bcryptMaxInput = 72
	// markerSeparator joins the public marker and the encoded body.
	markerSeparator = "_"
)

// KeyParams holds the tunable parameters of key generation and hashing. It is built once
// from configuration and injected into the codec and the hasher.
type KeyParams struct {
	Marker             string // Public marker placed before the encoded body, e.g. "apk"
	SecretBytes        int    // Random bytes per secret
	LookupPrefixLength int    // Characters of the secret used as lookup prefix
	HashAlgorithm      string // HashAlgorithmBcrypt or HashAlgorithmArgon2id
	BcryptCost         int    // Work factor when HashAlgorithm is bcrypt
	HashConcurrency    int    // Maximum concurrent hash computations
}

// DefaultKeyParams returns the production defaults.
func DefaultKeyParams() KeyParams {
	return KeyParams{
		Marker:             "apk",
		SecretBytes:        32,
		LookupPrefixLength: 16,
		HashAlgorithm:      HashAlgorithmBcrypt,
		BcryptCost:         12,
		HashConcurrency:    runtime.NumCPU(),
	}
}

// MarkerPrefix returns the marker followed by the separator, e.g. "apk_".
func (p KeyParams) MarkerPrefix() string {
	return p.Marker + markerSeparator
}

// SecretLength returns the length of a formatted secret.
func (p KeyParams) SecretLength() int {
	return len(p.MarkerPrefix()) + base64.RawURLEncoding.EncodedLen(p.SecretBytes)
}

// Validate checks the parameters are internally consistent.
func (p KeyParams) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Marker,
			validation.Required,
			validation.Length(1, 16),
			validation.By(func(any) error {
				if strings.Contains(p.Marker, markerSeparator) {
					return validation.NewError("validation_marker_separator", "must not contain \"_\"")
				}
				return nil
			}),
		),
		validation.Field(&p.SecretBytes, validation.Required, validation.Min(MinSecretBytes)),
		validation.Field(&p.LookupPrefixLength,
			validation.Required,
			validation.Min(len(p.MarkerPrefix())+1),
			validation.Max(p.SecretLength()),
		),
		validation.Field(&p.HashAlgorithm,
			validation.Required,
			validation.In(HashAlgorithmBcrypt, HashAlgorithmArgon2id),
		),
		validation.Field(&p.BcryptCost,
			validation.When(p.HashAlgorithm == HashAlgorithmBcrypt,
				validation.Required,
				validation.Min(bcrypt.MinCost),
				validation.Max(bcrypt.MaxCost),
			),
		),
		validation.Field(&p.HashConcurrency, validation.Required, validation.Min(1)),
	)
	if err != nil {
		return err
	}
	if p.HashAlgorithm == HashAlgorithmBcrypt && p.SecretLength() > bcryptMaxInput {
		return validation.NewError(
			"validation_secret_too_long",
			"formatted secret exceeds the 72 bytes bcrypt reads; lower API_KEY_SECRET_BYTES or shorten the marker",
		)
	}
	return nil
}

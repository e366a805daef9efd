package service

import (
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"

	"github.com/allisson/apikeys/internal/apikey/domain"
	apperrors "github.com/allisson/apikeys/internal/errors"
)

// maxCandidateLength bounds the input accepted for verification.
const maxCandidateLength = 256

// redactedPlaceholder is logged in place of credentials that have no lookup prefix.
const redactedPlaceholder = "<invalid>"

type keyCodec struct {
	params domain.KeyParams
	random io.Reader
}

// Generate reads SecretBytes from the random source and formats them as a secret.
func (c *keyCodec) Generate() (string, string, error) {
	randomBytes := make([]byte, c.params.SecretBytes)
	if _, err := io.ReadFull(c.random, randomBytes); err != nil {
		return "", "", apperrors.Wrap(domain.ErrHashingUnavailable, "failed to generate random secret: "+err.Error())
	}

	secret := c.params.MarkerPrefix() + base64.RawURLEncoding.EncodeToString(randomBytes)
	return secret, secret[:c.params.LookupPrefixLength], nil
}

// ExtractLookupPrefix slices the lookup prefix from candidate.
func (c *keyCodec) ExtractLookupPrefix(candidate string) string {
	if len(candidate) < c.params.LookupPrefixLength || len(candidate) > maxCandidateLength {
		return InvalidLookupPrefix
	}
	if !strings.HasPrefix(candidate, c.params.MarkerPrefix()) {
		return InvalidLookupPrefix
	}
	prefix := candidate[:c.params.LookupPrefixLength]
	for i := len(c.params.MarkerPrefix()); i < len(prefix); i++ {
		if !isBase64URLChar(prefix[i]) {
			return InvalidLookupPrefix
		}
	}
	return prefix
}

func isBase64URLChar(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') || b == '-' || b == '_'
}

// Redact returns the lookup prefix of candidate or a placeholder.
func (c *keyCodec) Redact(candidate string) string {
	if prefix := c.ExtractLookupPrefix(candidate); prefix != InvalidLookupPrefix {
		return prefix
	}
	return redactedPlaceholder
}

// NewKeyCodec creates a KeyCodec reading from crypto/rand.
func NewKeyCodec(params domain.KeyParams) KeyCodec {
	return NewKeyCodecWithReader(params, rand.Reader)
}

// NewKeyCodecWithReader creates a KeyCodec reading random bytes from r.
func NewKeyCodecWithReader(params domain.KeyParams, r io.Reader) KeyCodec {
	return &keyCodec{params: params, random: r}
}

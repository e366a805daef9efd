package domain

import (
	"log/slog"
	"time"
)

// CreateAPIKeyInput contains the parameters for creating a new API key.
// The secret is generated by the system and cannot be supplied by the caller.
type CreateAPIKeyInput struct {
	OwnerID     string
	Name        string
	Permissions []string
	ExpiresAt   *time.Time // nil creates a non-expiring key
}

// CreateAPIKeyOutput is the result of creating or rotating a key.
// SECURITY: PlainSecret is returned exactly once and is never stored or retrievable again.
type CreateAPIKeyOutput struct {
	PlainSecret string  // Full credential, hand it to the owner and forget it
	APIKey      *APIKey // Stored record without SecretHash
}

// LogValue keeps the plaintext out of structured logs.
func (o CreateAPIKeyOutput) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("plain_secret", "[REDACTED]")}
	if o.APIKey != nil {
		attrs = append(attrs,
			slog.String("key_id", o.APIKey.ID.String()),
			slog.String("lookup_prefix", o.APIKey.LookupPrefix),
		)
	}
	return slog.GroupValue(attrs...)
}

// UpdateAPIKeyInput contains the mutable fields of a key. Nil fields are left unchanged.
type UpdateAPIKeyInput struct {
	Name        *string
	Permissions []string
}

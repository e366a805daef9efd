package domain

import (
	"slices"

	"github.com/google/uuid"
)

// Principal is the identity derived from a successfully verified key.
type Principal struct {
	OwnerID     string
	Permissions []string
	KeyID       uuid.UUID
	KeyName     string
}

// NewPrincipal builds the principal for a verified key.
func NewPrincipal(key *APIKey) *Principal {
	return &Principal{
		OwnerID:     key.OwnerID,
		Permissions: slices.Clone(key.Permissions),
		KeyID:       key.ID,
		KeyName:     key.Name,
	}
}

// HasPermission reports whether the principal holds permission, either exactly or through "*".
func (p *Principal) HasPermission(permission string) bool {
	return p != nil && hasPermission(p.Permissions, permission)
}

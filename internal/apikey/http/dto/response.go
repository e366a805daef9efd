// Package dto provides data transfer objects for the API key HTTP endpoints.
package dto

import (
	"time"

	"github.com/allisson/apikeys/internal/apikey/domain"
)

// WhoamiResponse describes the caller's own key. Never carries secret material.
type WhoamiResponse struct {
	OwnerID     string     `json:"owner_id"`
	KeyID       string     `json:"key_id"`
	KeyName     string     `json:"key_name"`
	Permissions []string   `json:"permissions"`
	UsageCount  int64      `json:"usage_count"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	LastUsedIP  *string    `json:"last_used_ip,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// MapWhoamiResponse combines the principal with its key's usage statistics.
func MapWhoamiResponse(principal *domain.Principal, stats *domain.UsageStats) WhoamiResponse {
	return WhoamiResponse{
		OwnerID:     principal.OwnerID,
		KeyID:       principal.KeyID.String(),
		KeyName:     principal.KeyName,
		Permissions: principal.Permissions,
		UsageCount:  stats.UsageCount,
		LastUsedAt:  stats.LastUsedAt,
		LastUsedIP:  stats.LastUsedIP,
		CreatedAt:   stats.CreatedAt,
	}
}

package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/allisson/apikeys/internal/apikey/domain"
)

// apiKeyView is the JSON shape of a key printed by the CLI. It never carries the hash.
type apiKeyView struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Name         string     `json:"name"`
	LookupPrefix string     `json:"lookup_prefix"`
	Permissions  []string   `json:"permissions"`
	UsageCount   int64      `json:"usage_count"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	LastUsedIP   *string    `json:"last_used_ip,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Revoked      bool       `json:"revoked"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func newAPIKeyView(key *domain.APIKey) apiKeyView {
	return apiKeyView{
		ID:           key.ID.String(),
		OwnerID:      key.OwnerID,
		Name:         key.Name,
		LookupPrefix: key.LookupPrefix,
		Permissions:  key.Permissions,
		UsageCount:   key.UsageCount,
		LastUsedAt:   key.LastUsedAt,
		LastUsedIP:   key.LastUsedIP,
		ExpiresAt:    key.ExpiresAt,
		Revoked:      key.Revoked,
		RevokedAt:    key.RevokedAt,
		CreatedAt:    key.CreatedAt,
		UpdatedAt:    key.UpdatedAt,
	}
}

// issuedKeyView is printed by create and rotate, the only moments the secret is visible.
type issuedKeyView struct {
	Secret string     `json:"secret"`
	APIKey apiKeyView `json:"api_key"`
}

// writeAPIKeyText prints the human-readable description of a key.
func writeAPIKeyText(writer io.Writer, key *domain.APIKey) {
	_, _ = fmt.Fprintf(writer, "ID:            %s\n", key.ID)
	_, _ = fmt.Fprintf(writer, "Owner:         %s\n", key.OwnerID)
	_, _ = fmt.Fprintf(writer, "Name:          %s\n", key.Name)
	_, _ = fmt.Fprintf(writer, "Lookup prefix: %s\n", key.LookupPrefix)
	_, _ = fmt.Fprintf(writer, "Permissions:   %s\n", strings.Join(key.Permissions, ", "))
	_, _ = fmt.Fprintf(writer, "Usage count:   %d\n", key.UsageCount)
	_, _ = fmt.Fprintf(writer, "Last used:     %s\n", formatOptionalTime(key.LastUsedAt))
	_, _ = fmt.Fprintf(writer, "Last IP:       %s\n", formatOptionalString(key.LastUsedIP))
	_, _ = fmt.Fprintf(writer, "Expires:       %s\n", formatOptionalTime(key.ExpiresAt))
	if key.Revoked {
		_, _ = fmt.Fprintf(writer, "Revoked:       %s\n", formatOptionalTime(key.RevokedAt))
	}
	_, _ = fmt.Fprintf(writer, "Created:       %s\n", key.CreatedAt.UTC().Format(time.RFC3339))
}

// writeIssuedKey prints a freshly issued secret in the requested format.
func writeIssuedKey(writer io.Writer, format, title string, output *domain.CreateAPIKeyOutput) {
	if format == formatJSON {
		writeJSON(writer, issuedKeyView{
			Secret: output.PlainSecret,
			APIKey: newAPIKeyView(output.APIKey),
		})
		return
	}

	_, _ = fmt.Fprintf(writer, "\n%s\n", title)
	writeAPIKeyText(writer, output.APIKey)
	_, _ = fmt.Fprintf(writer, "Secret:        %s\n", output.PlainSecret)
	_, _ = fmt.Fprintln(writer, "\nIMPORTANT: The secret is shown only once. Store it securely.")
}

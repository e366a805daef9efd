package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apikeyUseCase "github.com/allisson/apikeys/internal/apikey/usecase"
)

// RunAPIKeyStats prints the usage counters of a key owned by ownerID.
func RunAPIKeyStats(
	ctx context.Context,
	apiKeyUseCase apikeyUseCase.APIKeyUseCase,
	logger *slog.Logger,
	io IOTuple,
	ownerID string,
	id string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	keyID, err := parseKeyID(id)
	if err != nil {
		return err
	}

	stats, err := apiKeyUseCase.UsageStats(ctx, ownerID, keyID)
	if err != nil {
		return fmt.Errorf("failed to get api key usage stats: %w", err)
	}

	if format == formatJSON {
		writeJSON(io.Writer, map[string]any{
			"key_id":       stats.KeyID.String(),
			"usage_count":  stats.UsageCount,
			"last_used_at": stats.LastUsedAt,
			"last_used_ip": stats.LastUsedIP,
			"created_at":   stats.CreatedAt,
		})
	} else {
		_, _ = fmt.Fprintf(io.Writer, "Key ID:      %s\n", stats.KeyID)
		_, _ = fmt.Fprintf(io.Writer, "Usage count: %d\n", stats.UsageCount)
		_, _ = fmt.Fprintf(io.Writer, "Last used:   %s\n", formatOptionalTime(stats.LastUsedAt))
		_, _ = fmt.Fprintf(io.Writer, "Last IP:     %s\n", formatOptionalString(stats.LastUsedIP))
		_, _ = fmt.Fprintf(io.Writer, "Created:     %s\n", stats.CreatedAt.UTC().Format(time.RFC3339))
	}

	logger.Debug("api key usage stats retrieved", slog.String("key_id", keyID.String()))
	return nil
}

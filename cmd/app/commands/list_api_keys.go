package commands

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"

	apikeyUseCase "github.com/allisson/apikeys/internal/apikey/usecase"
)

// RunListAPIKeys prints the non-revoked keys of ownerID, newest first.
func RunListAPIKeys(
	ctx context.Context,
	apiKeyUseCase apikeyUseCase.APIKeyUseCase,
	logger *slog.Logger,
	io IOTuple,
	ownerID string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	keys, err := apiKeyUseCase.List(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to list api keys: %w", err)
	}

	if format == formatJSON {
		views := make([]apiKeyView, 0, len(keys))
		for _, key := range keys {
			views = append(views, newAPIKeyView(key))
		}
		writeJSON(io.Writer, map[string]any{"owner_id": ownerID, "api_keys": views})
	} else {
		if len(keys) == 0 {
			_, _ = fmt.Fprintf(io.Writer, "No API keys found for owner %s\n", ownerID)
		} else {
			tw := tabwriter.NewWriter(io.Writer, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tPREFIX\tUSAGE\tLAST USED\tEXPIRES")
			for _, key := range keys {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					key.ID,
					key.Name,
					key.LookupPrefix,
					key.UsageCount,
					formatOptionalTime(key.LastUsedAt),
					formatOptionalTime(key.ExpiresAt),
				)
			}
			_ = tw.Flush()
		}
	}

	logger.Debug("api keys listed", slog.String("owner_id", ownerID), slog.Int("count", len(keys)))
	return nil
}

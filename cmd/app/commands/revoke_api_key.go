package commands

import (
	"context"
	"fmt"
	"log/slog"

	apikeyUseCase "github.com/allisson/apikeys/internal/apikey/usecase"
)

// RunRevokeAPIKey permanently disables a key. Revoking an already revoked key succeeds.
func RunRevokeAPIKey(
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

	if err := apiKeyUseCase.Revoke(ctx, ownerID, keyID); err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}

	if format == formatJSON {
		writeJSON(io.Writer, map[string]any{"id": keyID.String(), "revoked": true})
	} else {
		_, _ = fmt.Fprintf(io.Writer, "API key %s revoked\n", keyID)
	}

	logger.Info("api key revoked", slog.String("key_id", keyID.String()))
	return nil
}

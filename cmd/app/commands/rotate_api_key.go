package commands

import (
	"context"
	"fmt"
	"log/slog"

	apikeyUseCase "github.com/allisson/apikeys/internal/apikey/usecase"
)

// RunRotateAPIKey revokes an active key and prints its replacement secret once.
// The replacement keeps the permissions and expiration of the old key.
func RunRotateAPIKey(
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

	output, err := apiKeyUseCase.Rotate(ctx, ownerID, keyID)
	if err != nil {
		return fmt.Errorf("failed to rotate api key: %w", err)
	}

	writeIssuedKey(io.Writer, format, "API key rotated successfully! The old key no longer authenticates.", output)

	logger.Info("api key rotated",
		slog.String("old_key_id", keyID.String()),
		slog.Any("api_key", output),
	)
	return nil
}

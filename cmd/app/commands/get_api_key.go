package commands

import (
	"context"
	"fmt"
	"log/slog"

	apikeyUseCase "github.com/allisson/apikeys/internal/apikey/usecase"
)

// RunGetAPIKey prints a single key owned by ownerID.
func RunGetAPIKey(
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

	key, err := apiKeyUseCase.Get(ctx, ownerID, keyID)
	if err != nil {
		return fmt.Errorf("failed to get api key: %w", err)
	}

	if format == formatJSON {
		writeJSON(io.Writer, newAPIKeyView(key))
	} else {
		writeAPIKeyText(io.Writer, key)
	}

	logger.Debug("api key retrieved", slog.String("key_id", key.ID.String()))
	return nil
}

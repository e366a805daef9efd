package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/allisson/apikeys/internal/apikey/domain"
	apikeyUseCase "github.com/allisson/apikeys/internal/apikey/usecase"
)

// RunUpdateAPIKey renames a key and/or replaces its permissions. Empty name or
// permissions leave the field unchanged.
func RunUpdateAPIKey(
	ctx context.Context,
	apiKeyUseCase apikeyUseCase.APIKeyUseCase,
	logger *slog.Logger,
	io IOTuple,
	ownerID string,
	id string,
	name string,
	permissions string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	keyID, err := parseKeyID(id)
	if err != nil {
		return err
	}

	input := &domain.UpdateAPIKeyInput{Permissions: parsePermissions(permissions)}
	if name != "" {
		input.Name = &name
	}

	key, err := apiKeyUseCase.Update(ctx, ownerID, keyID, input)
	if err != nil {
		return fmt.Errorf("failed to update api key: %w", err)
	}

	if format == formatJSON {
		writeJSON(io.Writer, newAPIKeyView(key))
	} else {
		_, _ = fmt.Fprintln(io.Writer, "\nAPI key updated successfully!")
		writeAPIKeyText(io.Writer, key)
	}

	logger.Info("api key updated", slog.String("key_id", key.ID.String()))
	return nil
}

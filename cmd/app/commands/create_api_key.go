package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/allisson/apikeys/internal/apikey/domain"
	apikeyUseCase "github.com/allisson/apikeys/internal/apikey/usecase"
)

// RunCreateAPIKey issues a new API key for ownerID and prints the secret once.
// permissions is a comma-separated list; expiresAt is empty, an RFC 3339 timestamp or a
// duration from now.
//
// Requirements: Database must be migrated and accessible.
func RunCreateAPIKey(
	ctx context.Context,
	apiKeyUseCase apikeyUseCase.APIKeyUseCase,
	logger *slog.Logger,
	io IOTuple,
	ownerID string,
	name string,
	permissions string,
	expiresAt string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	expiration, err := parseExpiresAt(expiresAt, time.Now())
	if err != nil {
		return err
	}

	logger.Info("creating api key", slog.String("owner_id", ownerID), slog.String("name", name))

	output, err := apiKeyUseCase.Create(ctx, &domain.CreateAPIKeyInput{
		OwnerID:     ownerID,
		Name:        name,
		Permissions: parsePermissions(permissions),
		ExpiresAt:   expiration,
	})
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}

	writeIssuedKey(io.Writer, format, "API key created successfully!", output)

	logger.Info("api key created", slog.Any("api_key", output))
	return nil
}

// Package commands contains CLI command implementations for the application.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/google/uuid"

	"github.com/allisson/apikeys/internal/app"
)

// Output formats accepted by the --format flag.
const (
	formatText = "text"
	formatJSON = "json"
)

// IOTuple holds reader and writer for commands, allowing for testing.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO returns an IOTuple with os.Stdin and os.Stdout.
func DefaultIO() IOTuple {
	return IOTuple{
		Reader: os.Stdin,
		Writer: os.Stdout,
	}
}

// closeContainer closes all resources in the container and logs any errors.
func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

// closeMigrate closes the migration instance and logs any errors.
func closeMigrate(migrate *migrate.Migrate, logger *slog.Logger) {
	sourceError, databaseError := migrate.Close()
	if sourceError != nil || databaseError != nil {
		logger.Error(
			"failed to close the migrate",
			slog.Any("source_error", sourceError),
			slog.Any("database_error", databaseError),
		)
	}
}

// validateFormat rejects anything but "text" and "json".
func validateFormat(format string) error {
	if format != formatText && format != formatJSON {
		return fmt.Errorf("invalid format: %s (valid options: text, json)", format)
	}
	return nil
}

// parseKeyID parses the --id flag.
func parseKeyID(id string) (uuid.UUID, error) {
	keyID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid key id %q: %w", id, err)
	}
	return keyID, nil
}

// parsePermissions splits a comma-separated permission list. Normalization and
// validation happen in the use case.
func parsePermissions(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	return strings.Split(input, ",")
}

// parseExpiresAt accepts an RFC 3339 timestamp or a Go duration relative to now
// ("720h"). An empty string means the key never expires.
func parseExpiresAt(input string, now time.Time) (*time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339, input); err == nil {
		t = t.UTC()
		return &t, nil
	}

	d, err := time.ParseDuration(input)
	if err != nil {
		return nil, fmt.Errorf("invalid expiration %q: use RFC 3339 (2026-01-02T15:04:05Z) or a duration (720h)", input)
	}
	if d <= 0 {
		return nil, fmt.Errorf("invalid expiration %q: duration must be positive", input)
	}
	t := now.UTC().Add(d)
	return &t, nil
}

// formatOptionalTime renders nil as "never".
func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.UTC().Format(time.RFC3339)
}

// formatOptionalString prints a missing value as "unknown".
func formatOptionalString(s *string) string {
	if s == nil {
		return "unknown"
	}
	return *s
}

// writeJSON writes v indented, for machine consumption.
func writeJSON(writer io.Writer, v any) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to marshal JSON: %v\n", err)
		return
	}

	_, _ = fmt.Fprintln(writer, string(jsonBytes))
}

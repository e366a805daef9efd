package commands

import (
	"context"
	"fmt"
	"log/slog"

	apikeyUseCase "github.com/allisson/apikeys/internal/apikey/usecase"
)

// RunCleanAuditLogs deletes audit logs older than the specified number of days.
// Supports dry-run mode to preview deletion count and both text/JSON output formats.
//
// Requirements: Database must be migrated and accessible.
func RunCleanAuditLogs(
	ctx context.Context,
	auditLogUseCase apikeyUseCase.AuditLogUseCase,
	logger *slog.Logger,
	io IOTuple,
	days int,
	dryRun bool,
	format string,
) error {
	if days < 0 {
		return fmt.Errorf("days must be a positive number, got: %d", days)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("cleaning audit logs", slog.Int("days", days), slog.Bool("dry_run", dryRun))

	count, err := auditLogUseCase.DeleteOlderThan(ctx, days, dryRun)
	if err != nil {
		return fmt.Errorf("failed to delete audit logs: %w", err)
	}

	if format == formatJSON {
		writeJSON(io.Writer, map[string]any{"count": count, "days": days, "dry_run": dryRun})
	} else if dryRun {
		_, _ = fmt.Fprintf(io.Writer, "Dry-run mode: Would delete %d audit log(s) older than %d day(s)\n", count, days)
	} else {
		_, _ = fmt.Fprintf(io.Writer, "Successfully deleted %d audit log(s) older than %d day(s)\n", count, days)
	}

	logger.Info("cleanup completed",
		slog.Int64("count", count),
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)
	return nil
}

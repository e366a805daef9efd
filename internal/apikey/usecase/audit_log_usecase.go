package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/apikeys/internal/apikey/domain"
	apperrors "github.com/allisson/apikeys/internal/errors"
)

const defaultAuditWriteTimeout = 5 * time.Second

// auditLogUseCase implements AuditSink and AuditLogUseCase.
type auditLogUseCase struct {
	auditLogRepo AuditLogRepository
	logger       *slog.Logger
	writeTimeout time.Duration
}

// Record persists an audit event. The write survives cancellation of the caller's context,
// and a failed write is logged instead of returned.
func (a *auditLogUseCase) Record(ctx context.Context, event *domain.AuditEvent) {
	if event.ID == uuid.Nil {
		event.ID = uuid.Must(uuid.NewV7())
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if event.ResourceType == "" {
		event.ResourceType = domain.AuditResourceType
	}
	if event.Severity == "" {
		event.Severity = domain.AuditSeverityInfo
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.writeTimeout)
	defer cancel()

	if err := a.auditLogRepo.Create(writeCtx, event); err != nil {
		a.logger.Error("failed to record audit event",
			slog.String("action", string(event.Action)),
			slog.String("resource_id", event.ResourceID),
			slog.Any("error", err),
		)
	}
}

// DeleteOlderThan removes audit events created more than days days ago.
func (a *auditLogUseCase) DeleteOlderThan(ctx context.Context, days int, dryRun bool) (int64, error) {
	if days < 0 {
		return 0, apperrors.Wrap(apperrors.ErrInvalidInput, "days must not be negative")
	}

	before := time.Now().UTC().AddDate(0, 0, -days)
	count, err := a.auditLogRepo.DeleteOlderThan(ctx, before, dryRun)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete audit logs")
	}
	return count, nil
}

// AuditLogService is both the sink used by the lifecycle and the retention use case.
type AuditLogService interface {
	AuditSink
	AuditLogUseCase
}

// NewAuditLogUseCase creates a new AuditLogService with the provided dependencies.
func NewAuditLogUseCase(auditLogRepo AuditLogRepository, logger *slog.Logger) AuditLogService {
	return &auditLogUseCase{
		auditLogRepo: auditLogRepo,
		logger:       logger,
		writeTimeout: defaultAuditWriteTimeout,
	}
}

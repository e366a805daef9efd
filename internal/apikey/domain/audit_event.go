package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names a mutation recorded in the audit trail.
type AuditAction string

const (
	AuditActionCreate AuditAction = "api_key.create"
	AuditActionUpdate AuditAction = "api_key.update"
	AuditActionRevoke AuditAction = "api_key.revoke"
	AuditActionRotate AuditAction = "api_key.rotate"
)

// AuditSeverity grades an audit event.
type AuditSeverity string

const (
	AuditSeverityInfo    AuditSeverity = "info"
	AuditSeverityWarning AuditSeverity = "warning"
)

// AuditResourceType is the resource type attached to every API key audit event.
const AuditResourceType = "api-key"

// AuditEvent is a single entry of the audit trail.
type AuditEvent struct {
	ID           uuid.UUID
	OwnerID      string
	Action       AuditAction
	ResourceType string
	ResourceID   string
	Severity     AuditSeverity
	Metadata     map[string]any
	CreatedAt    time.Time
}

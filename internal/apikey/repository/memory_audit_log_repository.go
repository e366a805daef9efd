package repository

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/allisson/apikeys/internal/apikey/domain"
)

// MemoryAuditLogRepository keeps AuditEvents in process memory.
type MemoryAuditLogRepository struct {
	mu     sync.Mutex
	events []*domain.AuditEvent
}

// Create appends a copy of event.
func (r *MemoryAuditLogRepository) Create(_ context.Context, event *domain.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *event
	c.Metadata = maps.Clone(event.Metadata)
	r.events = append(r.events, &c)
	return nil
}

// DeleteOlderThan removes events created before the given time. In dry-run mode it only
// counts them.
func (r *MemoryAuditLogRepository) DeleteOlderThan(_ context.Context, before time.Time, dryRun bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.events[:0:0]
	var count int64
	for _, event := range r.events {
		if event.CreatedAt.Before(before) {
			count++
			continue
		}
		kept = append(kept, event)
	}
	if !dryRun {
		r.events = kept
	}
	return count, nil
}

// Events returns a snapshot of the stored events in insertion order.
func (r *MemoryAuditLogRepository) Events() []domain.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := make([]domain.AuditEvent, 0, len(r.events))
	for _, event := range r.events {
		events = append(events, *event)
	}
	return events
}

// NewMemoryAuditLogRepository creates an empty in-memory AuditEvent repository.
func NewMemoryAuditLogRepository() *MemoryAuditLogRepository {
	return &MemoryAuditLogRepository{}
}

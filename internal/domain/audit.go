package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions recorded by the core services.
const (
	AuditCreated           = "created"
	AuditStatusChanged     = "status_changed"
	AuditConfidenceUpdated = "confidence_updated"
	AuditTrustChanged      = "trust_changed"
	AuditDeduplicated      = "deduplicated"
)

// AuditEntry is one row of the append-only audit log, the system's ground
// truth for what happened. Entries are never mutated or pruned.
type AuditEntry struct {
	ID         uuid.UUID      `json:"id"`
	EntityType EntityType     `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Action     string         `json:"action"`
	Before     map[string]any `json:"before,omitempty"`
	After      map[string]any `json:"after,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// NewAuditEntry builds an entry for a state change on the given entity.
func NewAuditEntry(entityType EntityType, entityID uuid.UUID, action string, before, after map[string]any) *AuditEntry {
	return &AuditEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Before:     before,
		After:      after,
	}
}

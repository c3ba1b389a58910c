package domain

import (
	"context"

	"github.com/google/uuid"
)

// Mutating store methods that change audited entities take an *AuditEntry;
// the store appends it in the same transaction as the entity write so a
// crash never leaves an entity/audit pair inconsistent.

type SourceStore interface {
	Create(ctx context.Context, s *Source, entry *AuditEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Source, error)
	UpdateTrustLabel(ctx context.Context, id uuid.UUID, label TrustLabel, entry *AuditEntry) error
	Count(ctx context.Context) (int, error)
}

type NoteStore interface {
	Create(ctx context.Context, n *Note, entry *AuditEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Note, error)
	List(ctx context.Context, limit, offset int) ([]Note, error)
	ListByTag(ctx context.Context, tag string, limit int) ([]Note, error)
	ListByEntity(ctx context.Context, entity string, limit int) ([]Note, error)
	// Search runs full-text search; malformed query syntax returns an empty
	// result, never an error.
	Search(ctx context.Context, query string, limit int) ([]Note, error)
	SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	FindSimilar(ctx context.Context, embedding []float32, limit int) ([]NoteWithScore, error)
	Count(ctx context.Context) (int, error)
}

type BeliefStore interface {
	Create(ctx context.Context, b *Belief, entry *AuditEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Belief, error)
	List(ctx context.Context, status *BeliefStatus, limit, offset int) ([]Belief, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status BeliefStatus, entry *AuditEntry) error
	UpdateConfidence(ctx context.Context, id uuid.UUID, confidence float32, entry *AuditEntry) error
	ExistsByClaim(ctx context.Context, claimText string) (bool, error)
	CountByStatus(ctx context.Context) (map[BeliefStatus]int, error)
}

type EdgeStore interface {
	Create(ctx context.Context, e *Edge) error
	Query(ctx context.Context, entityType EntityType, entityID uuid.UUID, direction Direction, relType *RelType) ([]Edge, error)
	Exists(ctx context.Context, fromType EntityType, fromID uuid.UUID, relType RelType, toType EntityType, toID uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	Count(ctx context.Context) (int, error)
}

type SignalStore interface {
	Emit(ctx context.Context, s *Signal) error
	// Unprocessed returns unconsumed signals oldest-first, optionally
	// filtered by type ("" means all types).
	Unprocessed(ctx context.Context, signalType string, limit int) ([]Signal, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
	// IncrementRetry bumps the per-signal retry counter and returns the new
	// value.
	IncrementRetry(ctx context.Context, id uuid.UUID) (int, error)
	CountUnprocessed(ctx context.Context) (int, error)
}

type AuditStore interface {
	Append(ctx context.Context, e *AuditEntry) error
	History(ctx context.Context, entityType EntityType, entityID uuid.UUID) ([]AuditEntry, error)
	Count(ctx context.Context) (int, error)
}

// EmbeddingClient converts text to a fixed-dimension vector. It is
// optional: a nil client disables deduplication and semantic search while
// keyword-only operation keeps working.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

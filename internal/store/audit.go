package store

import (
	"context"
	"fmt"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditStore struct {
	db *pgxpool.Pool
}

func NewAuditStore(db *pgxpool.Pool) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, e *domain.AuditEntry) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO audit_log (entity_type, entity_id, action, before, after)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.EntityType, e.EntityID, e.Action, encodeAuditMap(e.Before), encodeAuditMap(e.After),
	).Scan(&e.ID, &e.CreatedAt)
}

// appendTx writes an audit entry inside an existing transaction. Used by
// the entity stores to keep entity writes and their audit rows atomic.
func appendAuditTx(ctx context.Context, tx pgx.Tx, e *domain.AuditEntry) error {
	if e == nil {
		return nil
	}
	return tx.QueryRow(ctx,
		`INSERT INTO audit_log (entity_type, entity_id, action, before, after)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.EntityType, e.EntityID, e.Action, encodeAuditMap(e.Before), encodeAuditMap(e.After),
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *AuditStore) History(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID) ([]domain.AuditEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, entity_type, entity_id, action, before, after, created_at
		 FROM audit_log
		 WHERE entity_type = $1 AND entity_id = $2
		 ORDER BY created_at ASC`,
		entityType, entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("audit history query: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var before, after []byte
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &before, &after, &e.CreatedAt); err != nil {
			return nil, err
		}
		if before != nil {
			e.Before = decodeJSONMap(before, "audit.before")
		}
		if after != nil {
			e.After = decodeJSONMap(after, "audit.after")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *AuditStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&count)
	return count, err
}

// encodeAuditMap preserves NULL for absent before/after snapshots.
func encodeAuditMap(m map[string]any) []byte {
	if m == nil {
		return nil
	}
	return encodeJSONMap(m)
}

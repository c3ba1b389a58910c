package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EdgeStore struct {
	db *pgxpool.Pool
}

func NewEdgeStore(db *pgxpool.Pool) *EdgeStore {
	return &EdgeStore{db: db}
}

func (s *EdgeStore) Create(ctx context.Context, e *domain.Edge) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO edges (from_type, from_id, rel_type, to_type, to_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		e.FromType, e.FromID, e.RelType, e.ToType, e.ToID,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *EdgeStore) Query(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, direction domain.Direction, relType *domain.RelType) ([]domain.Edge, error) {
	var conditions []string
	var args []any

	switch direction {
	case domain.DirectionOutgoing:
		conditions = append(conditions, fmt.Sprintf("from_type = $%d AND from_id = $%d", len(args)+1, len(args)+2))
		args = append(args, entityType, entityID)
	case domain.DirectionIncoming:
		conditions = append(conditions, fmt.Sprintf("to_type = $%d AND to_id = $%d", len(args)+1, len(args)+2))
		args = append(args, entityType, entityID)
	default:
		conditions = append(conditions, fmt.Sprintf(
			"((from_type = $%d AND from_id = $%d) OR (to_type = $%d AND to_id = $%d))",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4))
		args = append(args, entityType, entityID, entityType, entityID)
	}

	if relType != nil {
		conditions = append(conditions, fmt.Sprintf("rel_type = $%d", len(args)+1))
		args = append(args, *relType)
	}

	query := fmt.Sprintf(
		`SELECT id, from_type, from_id, rel_type, to_type, to_id, created_at
		 FROM edges WHERE %s ORDER BY created_at ASC`,
		strings.Join(conditions, " AND "),
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()

	var edges []domain.Edge
	for rows.Next() {
		var e domain.Edge
		if err := rows.Scan(&e.ID, &e.FromType, &e.FromID, &e.RelType, &e.ToType, &e.ToID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

func (s *EdgeStore) Exists(ctx context.Context, fromType domain.EntityType, fromID uuid.UUID, relType domain.RelType, toType domain.EntityType, toID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM edges
			WHERE from_type = $1 AND from_id = $2 AND rel_type = $3 AND to_type = $4 AND to_id = $5
		)`,
		fromType, fromID, relType, toType, toID,
	).Scan(&exists)
	return exists, err
}

func (s *EdgeStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM edges WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *EdgeStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM edges`).Scan(&count)
	return count, err
}

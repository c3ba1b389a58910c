package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BeliefStore struct {
	db *pgxpool.Pool
}

func NewBeliefStore(db *pgxpool.Pool) *BeliefStore {
	return &BeliefStore{db: db}
}

const beliefColumns = `id, claim_text, status, confidence, decay_model, scope, derived_from_agent, created_at, updated_at`

func (s *BeliefStore) Create(ctx context.Context, b *domain.Belief, entry *domain.AuditEntry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create belief: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO beliefs (claim_text, status, confidence, decay_model, scope, derived_from_agent)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		b.ClaimText, b.Status, b.Confidence, b.DecayModel, encodeJSONMap(b.Scope), b.DerivedFromAgent,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert belief: %w", err)
	}

	if entry != nil {
		entry.EntityID = b.ID
		if err := appendAuditTx(ctx, tx, entry); err != nil {
			return fmt.Errorf("audit belief create: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *BeliefStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+beliefColumns+` FROM beliefs WHERE id = $1`, id,
	)
	b, err := scanBelief(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *BeliefStore) List(ctx context.Context, status *domain.BeliefStatus, limit, offset int) ([]domain.Belief, error) {
	var rows pgx.Rows
	var err error
	if status != nil {
		rows, err = s.db.Query(ctx,
			`SELECT `+beliefColumns+` FROM beliefs WHERE status = $1 ORDER BY updated_at DESC LIMIT $2 OFFSET $3`,
			*status, limit, offset,
		)
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT `+beliefColumns+` FROM beliefs ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
			limit, offset,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("list beliefs: %w", err)
	}
	defer rows.Close()

	var beliefs []domain.Belief
	for rows.Next() {
		b, err := scanBelief(rows)
		if err != nil {
			return nil, fmt.Errorf("scan belief: %w", err)
		}
		beliefs = append(beliefs, *b)
	}
	return beliefs, rows.Err()
}

func (s *BeliefStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BeliefStatus, entry *domain.AuditEntry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin status update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE beliefs SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update belief status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := appendAuditTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("audit status update: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *BeliefStore) UpdateConfidence(ctx context.Context, id uuid.UUID, confidence float32, entry *domain.AuditEntry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin confidence update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE beliefs SET confidence = $1, updated_at = NOW() WHERE id = $2`,
		confidence, id,
	)
	if err != nil {
		return fmt.Errorf("update belief confidence: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := appendAuditTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("audit confidence update: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *BeliefStore) ExistsByClaim(ctx context.Context, claimText string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM beliefs WHERE claim_text = $1)`,
		claimText,
	).Scan(&exists)
	return exists, err
}

func (s *BeliefStore) CountByStatus(ctx context.Context) (map[domain.BeliefStatus]int, error) {
	rows, err := s.db.Query(ctx,
		`SELECT status, COUNT(*) FROM beliefs GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("count beliefs: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.BeliefStatus]int)
	for rows.Next() {
		var status domain.BeliefStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func scanBelief(row pgx.Row) (*domain.Belief, error) {
	b := &domain.Belief{}
	var scope []byte
	if err := row.Scan(&b.ID, &b.ClaimText, &b.Status, &b.Confidence, &b.DecayModel, &scope, &b.DerivedFromAgent, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Scope = decodeJSONMap(scope, "belief.scope")
	return b, nil
}

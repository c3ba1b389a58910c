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

type SourceStore struct {
	db *pgxpool.Pool
}

func NewSourceStore(db *pgxpool.Pool) *SourceStore {
	return &SourceStore{db: db}
}

func (s *SourceStore) Create(ctx context.Context, src *domain.Source, entry *domain.AuditEntry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create source: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO sources (kind, locator, trust_label)
		 VALUES ($1, $2, $3)
		 RETURNING id, captured_at`,
		src.Kind, src.Locator, src.TrustLabel,
	).Scan(&src.ID, &src.CapturedAt)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}

	if entry != nil {
		entry.EntityID = src.ID
		if err := appendAuditTx(ctx, tx, entry); err != nil {
			return fmt.Errorf("audit source create: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *SourceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Source, error) {
	src := &domain.Source{}
	err := s.db.QueryRow(ctx,
		`SELECT id, kind, locator, trust_label, captured_at FROM sources WHERE id = $1`,
		id,
	).Scan(&src.ID, &src.Kind, &src.Locator, &src.TrustLabel, &src.CapturedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return src, nil
}

func (s *SourceStore) UpdateTrustLabel(ctx context.Context, id uuid.UUID, label domain.TrustLabel, entry *domain.AuditEntry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin trust update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE sources SET trust_label = $1 WHERE id = $2`,
		label, id,
	)
	if err != nil {
		return fmt.Errorf("update trust label: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := appendAuditTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("audit trust update: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *SourceStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM sources`).Scan(&count)
	return count, err
}

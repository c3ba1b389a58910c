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

type SignalStore struct {
	db *pgxpool.Pool
}

func NewSignalStore(db *pgxpool.Pool) *SignalStore {
	return &SignalStore{db: db}
}

func (s *SignalStore) Emit(ctx context.Context, sig *domain.Signal) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO signals (type, payload)
		 VALUES ($1, $2)
		 RETURNING id, retry_count, created_at`,
		sig.Type, encodeJSONMap(sig.Payload),
	).Scan(&sig.ID, &sig.RetryCount, &sig.CreatedAt)
}

func (s *SignalStore) Unprocessed(ctx context.Context, signalType string, limit int) ([]domain.Signal, error) {
	var rows pgx.Rows
	var err error
	if signalType != "" {
		rows, err = s.db.Query(ctx,
			`SELECT id, type, payload, retry_count, created_at, processed_at
			 FROM signals
			 WHERE processed_at IS NULL AND type = $1
			 ORDER BY created_at ASC
			 LIMIT $2`,
			signalType, limit,
		)
	} else {
		rows, err = s.db.Query(ctx,
			`SELECT id, type, payload, retry_count, created_at, processed_at
			 FROM signals
			 WHERE processed_at IS NULL
			 ORDER BY created_at ASC
			 LIMIT $1`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("poll unprocessed signals: %w", err)
	}
	defer rows.Close()

	var signals []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var payload []byte
		if err := rows.Scan(&sig.ID, &sig.Type, &payload, &sig.RetryCount, &sig.CreatedAt, &sig.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Payload = decodeJSONMap(payload, "signal.payload")
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// MarkProcessed is monotonic: an already-processed signal keeps its
// original processed_at.
func (s *SignalStore) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE signals SET processed_at = NOW() WHERE id = $1 AND processed_at IS NULL`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either unknown id or already processed; distinguish for NotFound.
		var exists bool
		if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM signals WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
	}
	return nil
}

func (s *SignalStore) IncrementRetry(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`UPDATE signals SET retry_count = retry_count + 1 WHERE id = $1 RETURNING retry_count`,
		id,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return count, nil
}

func (s *SignalStore) CountUnprocessed(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM signals WHERE processed_at IS NULL`).Scan(&count)
	return count, err
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

type NoteStore struct {
	db *pgxpool.Pool
}

func NewNoteStore(db *pgxpool.Pool) *NoteStore {
	return &NoteStore{db: db}
}

const noteColumns = `id, content, content_type, source_id, tags, entities, content_hash, created_at`

func (s *NoteStore) Create(ctx context.Context, n *domain.Note, entry *domain.AuditEntry) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create note: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var embedding *pgvector.Vector
	if len(n.Embedding) > 0 {
		v := pgvector.NewVector(n.Embedding)
		embedding = &v
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO notes (content, content_type, source_id, tags, entities, content_hash, embedding)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		n.Content, n.ContentType, n.SourceID, n.Tags, n.Entities, n.ContentHash, embedding,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}

	if entry != nil {
		entry.EntityID = n.ID
		if err := appendAuditTx(ctx, tx, entry); err != nil {
			return fmt.Errorf("audit note create: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *NoteStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	n := &domain.Note{}
	err := s.db.QueryRow(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1`, id,
	).Scan(&n.ID, &n.Content, &n.ContentType, &n.SourceID, &n.Tags, &n.Entities, &n.ContentHash, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return n, nil
}

func (s *NoteStore) List(ctx context.Context, limit, offset int) ([]domain.Note, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+noteColumns+` FROM notes ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return scanNotes(rows)
}

func (s *NoteStore) ListByTag(ctx context.Context, tag string, limit int) ([]domain.Note, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE $1 = ANY(tags) ORDER BY created_at DESC LIMIT $2`,
		tag, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes by tag: %w", err)
	}
	return scanNotes(rows)
}

func (s *NoteStore) ListByEntity(ctx context.Context, entity string, limit int) ([]domain.Note, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE $1 = ANY(entities) ORDER BY created_at DESC LIMIT $2`,
		entity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list notes by entity: %w", err)
	}
	return scanNotes(rows)
}

// Search uses plainto_tsquery, which treats the input as plain words, so
// malformed query syntax yields an empty result rather than an error.
func (s *NoteStore) Search(ctx context.Context, query string, limit int) ([]domain.Note, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+noteColumns+`
		 FROM notes
		 WHERE content_tsv @@ plainto_tsquery('english', $1)
		 ORDER BY ts_rank(content_tsv, plainto_tsquery('english', $1)) DESC
		 LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	return scanNotes(rows)
}

func (s *NoteStore) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	tag, err := s.db.Exec(ctx,
		`UPDATE notes SET embedding = $1 WHERE id = $2`,
		vec, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *NoteStore) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]domain.NoteWithScore, error) {
	vec := pgvector.NewVector(embedding)
	rows, err := s.db.Query(ctx,
		`SELECT `+noteColumns+`, 1 - (embedding <=> $1) AS score
		 FROM notes
		 WHERE embedding IS NOT NULL
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find similar notes: %w", err)
	}
	defer rows.Close()

	var results []domain.NoteWithScore
	for rows.Next() {
		var ns domain.NoteWithScore
		if err := rows.Scan(&ns.ID, &ns.Content, &ns.ContentType, &ns.SourceID, &ns.Tags, &ns.Entities, &ns.ContentHash, &ns.CreatedAt, &ns.Score); err != nil {
			return nil, fmt.Errorf("scan similar note: %w", err)
		}
		results = append(results, ns)
	}
	return results, rows.Err()
}

func (s *NoteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count)
	return count, err
}

func scanNotes(rows pgx.Rows) ([]domain.Note, error) {
	defer rows.Close()
	var notes []domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.Content, &n.ContentType, &n.SourceID, &n.Tags, &n.Entities, &n.ContentHash, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

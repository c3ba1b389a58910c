package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/bonjohen/second-brain/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoteContentEmpty = errors.New("note content is required")
	ErrInvalidKind      = errors.New("unknown source kind")
	ErrInvalidTrust     = errors.New("unknown trust label")
	ErrNoteNotFound     = errors.New("note not found")
	ErrSourceNotFound   = errors.New("source not found")
)

// NoteService owns sources and immutable notes. Notes are created once and
// never updated or deleted; only the source trust label mutates.
type NoteService struct {
	notes   domain.NoteStore
	sources domain.SourceStore
	logger  *zap.Logger
}

func NewNoteService(notes domain.NoteStore, sources domain.SourceStore, logger *zap.Logger) *NoteService {
	return &NoteService{notes: notes, sources: sources, logger: logger}
}

func (s *NoteService) CreateSource(ctx context.Context, kind domain.SourceKind, locator string, trust domain.TrustLabel) (*domain.Source, error) {
	if !domain.ValidSourceKind(string(kind)) {
		return nil, ErrInvalidKind
	}
	if trust == "" {
		trust = domain.TrustUnknown
	}
	if !domain.ValidTrustLabel(string(trust)) {
		return nil, ErrInvalidTrust
	}

	src := &domain.Source{Kind: kind, Locator: locator, TrustLabel: trust}
	entry := domain.NewAuditEntry(domain.EntitySource, uuid.Nil, domain.AuditCreated, nil, sourceSnapshot(src))
	if err := s.sources.Create(ctx, src, entry); err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}
	return src, nil
}

func (s *NoteService) UpdateSourceTrust(ctx context.Context, id uuid.UUID, trust domain.TrustLabel) (*domain.Source, error) {
	if !domain.ValidTrustLabel(string(trust)) {
		return nil, ErrInvalidTrust
	}
	src, err := s.GetSource(ctx, id)
	if err != nil {
		return nil, err
	}

	before := sourceSnapshot(src)
	src.TrustLabel = trust
	entry := domain.NewAuditEntry(domain.EntitySource, id, domain.AuditTrustChanged, before, sourceSnapshot(src))
	if err := s.sources.UpdateTrustLabel(ctx, id, trust, entry); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("update source trust: %w", err)
	}
	return src, nil
}

func (s *NoteService) GetSource(ctx context.Context, id uuid.UUID) (*domain.Source, error) {
	src, err := s.sources.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, err
	}
	return src, nil
}

// CreateNote persists an immutable, content-addressed note. Tags and
// entities are normalized (lower-cased, deduplicated, sorted).
func (s *NoteService) CreateNote(ctx context.Context, content string, contentType domain.ContentType, sourceID uuid.UUID, tags, entities []string) (*domain.Note, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrNoteContentEmpty
	}
	if contentType == "" {
		contentType = domain.ContentTypeText
	}
	if !domain.ValidContentType(string(contentType)) {
		return nil, fmt.Errorf("unknown content type %q", contentType)
	}

	n := &domain.Note{
		Content:     content,
		ContentType: contentType,
		SourceID:    sourceID,
		Tags:        domain.NormalizeTerms(tags),
		Entities:    domain.NormalizeTerms(entities),
		ContentHash: domain.HashContent(content),
	}

	entry := domain.NewAuditEntry(domain.EntityNote, uuid.Nil, domain.AuditCreated, nil, map[string]any{
		"content_hash": n.ContentHash,
		"content_type": string(n.ContentType),
		"source_id":    sourceID.String(),
		"tags":         n.Tags,
	})
	if err := s.notes.Create(ctx, n, entry); err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}

	s.logger.Info("note created",
		zap.String("note_id", n.ID.String()),
		zap.Strings("tags", n.Tags),
		zap.Int("content_len", len(content)))
	return n, nil
}

// SetEmbedding attaches a semantic vector to an existing note. The note
// content itself stays immutable.
func (s *NoteService) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	if err := s.notes.SetEmbedding(ctx, id, embedding); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoteNotFound
		}
		return err
	}
	return nil
}

func (s *NoteService) Get(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	n, err := s.notes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	return n, nil
}

func (s *NoteService) List(ctx context.Context, limit, offset int) ([]domain.Note, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.notes.List(ctx, limit, offset)
}

func (s *NoteService) ListByTag(ctx context.Context, tag string, limit int) ([]domain.Note, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.notes.ListByTag(ctx, tag, limit)
}

// Search runs keyword full-text search. Malformed queries return empty
// results rather than an error.
func (s *NoteService) Search(ctx context.Context, query string, limit int) ([]domain.Note, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return s.notes.Search(ctx, query, limit)
}

// FindSimilar runs vector search over note embeddings.
func (s *NoteService) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]domain.NoteWithScore, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.notes.FindSimilar(ctx, embedding, limit)
}

func sourceSnapshot(src *domain.Source) map[string]any {
	return map[string]any{
		"kind":        string(src.Kind),
		"locator":     src.Locator,
		"trust_label": string(src.TrustLabel),
	}
}

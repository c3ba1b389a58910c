package service

import (
	"context"
	"regexp"

	"github.com/bonjohen/second-brain/internal/domain"
	"go.uber.org/zap"
)

var (
	tagPattern    = regexp.MustCompile(`#(\w[\w/-]*)`)
	entityPattern = regexp.MustCompile(`@(\w[\w/.:-]*)`)
)

// IngestionService turns raw captured content into a Source plus an
// immutable Note, then emits exactly one new_note signal. It is the only
// producer of new_note.
type IngestionService struct {
	notes    *NoteService
	signals  domain.SignalStore
	embedder domain.EmbeddingClient
	logger   *zap.Logger
}

func NewIngestionService(notes *NoteService, signals domain.SignalStore, embedder domain.EmbeddingClient, logger *zap.Logger) *IngestionService {
	return &IngestionService{notes: notes, signals: signals, embedder: embedder, logger: logger}
}

type IngestRequest struct {
	Content     string
	ContentType domain.ContentType
	SourceKind  domain.SourceKind
	Locator     string
	TrustLabel  domain.TrustLabel
	ExtraTags   []string
}

// Ingest runs the full pipeline: create Source, extract #tags and
// @entities, create the Note, store its embedding when a provider is
// configured, then emit new_note. The note is persisted before the signal,
// so a consumer always finds it.
func (s *IngestionService) Ingest(ctx context.Context, req IngestRequest) (*domain.Source, *domain.Note, error) {
	if req.SourceKind == "" {
		req.SourceKind = domain.SourceKindUser
	}
	if req.Locator == "" {
		req.Locator = "api:ingest"
	}
	if req.TrustLabel == "" {
		req.TrustLabel = domain.TrustUser
	}

	src, err := s.notes.CreateSource(ctx, req.SourceKind, req.Locator, req.TrustLabel)
	if err != nil {
		return nil, nil, err
	}

	tags := append(ExtractTags(req.Content), req.ExtraTags...)
	entities := ExtractEntities(req.Content)

	note, err := s.notes.CreateNote(ctx, req.Content, req.ContentType, src.ID, tags, entities)
	if err != nil {
		return nil, nil, err
	}

	if s.embedder != nil {
		if vec, err := s.embedder.Embed(ctx, note.Content); err != nil {
			s.logger.Warn("embedding failed, note stored without vector",
				zap.String("note_id", note.ID.String()),
				zap.Error(err))
		} else if err := s.notes.SetEmbedding(ctx, note.ID, vec); err != nil {
			s.logger.Warn("storing embedding failed",
				zap.String("note_id", note.ID.String()),
				zap.Error(err))
		}
	}

	sig := &domain.Signal{
		Type: domain.SignalNewNote,
		Payload: map[string]any{
			"note_id":   note.ID.String(),
			"source_id": src.ID.String(),
		},
	}
	if err := s.signals.Emit(ctx, sig); err != nil {
		return nil, nil, err
	}

	return src, note, nil
}

// ExtractTags collects #hashtag tokens: lowercase, deduplicated, sorted.
func ExtractTags(content string) []string {
	return extractMatches(tagPattern, content)
}

// ExtractEntities collects @entity tokens: lowercase, deduplicated, sorted.
func ExtractEntities(content string) []string {
	return extractMatches(entityPattern, content)
}

func extractMatches(pattern *regexp.Regexp, content string) []string {
	matches := pattern.FindAllStringSubmatch(content, -1)
	terms := make([]string, 0, len(matches))
	for _, m := range matches {
		terms = append(terms, m[1])
	}
	return domain.NormalizeTerms(terms)
}

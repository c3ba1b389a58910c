package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ask defaults
const (
	DefaultAskNoteLimit   = 10
	DefaultAskBeliefLimit = 10
)

// sentinel errors for ask
var ErrQuestionEmpty = fmt.Errorf("question must not be empty")

// Evidence is the retrieval result backing an answer: the matched notes
// and the beliefs those notes support.
type Evidence struct {
	Notes   []domain.Note   `json:"notes"`
	Beliefs []domain.Belief `json:"beliefs"`
}

// Answer is a templated response assembled from evidence. Every statement
// cites the entity it came from.
type Answer struct {
	Question string   `json:"question"`
	Text     string   `json:"text"`
	Evidence Evidence `json:"evidence"`
}

// AskService answers questions from stored notes and beliefs. Retrieval
// combines keyword search with semantic search when an embedding client is
// configured; relevant beliefs are found by walking supports edges from
// the matched notes.
type AskService struct {
	notes    *NoteService
	beliefs  *BeliefService
	edges    domain.EdgeStore
	embedder domain.EmbeddingClient
	logger   *zap.Logger

	NoteLimit   int
	BeliefLimit int
}

func NewAskService(notes *NoteService, beliefs *BeliefService, edges domain.EdgeStore, embedder domain.EmbeddingClient, logger *zap.Logger) *AskService {
	return &AskService{
		notes:       notes,
		beliefs:     beliefs,
		edges:       edges,
		embedder:    embedder,
		logger:      logger,
		NoteLimit:   DefaultAskNoteLimit,
		BeliefLimit: DefaultAskBeliefLimit,
	}
}

// Ask retrieves evidence for a question and renders a cited answer. A
// question with no matching evidence gets an explicit "nothing recorded"
// answer rather than an error.
func (s *AskService) Ask(ctx context.Context, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrQuestionEmpty
	}

	evidence, err := s.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Question: question,
		Text:     renderAnswer(question, evidence),
		Evidence: *evidence,
	}, nil
}

// Retrieve gathers the notes and beliefs relevant to a question.
func (s *AskService) Retrieve(ctx context.Context, question string) (*Evidence, error) {
	notes, err := s.notes.Search(ctx, question, s.NoteLimit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	if s.embedder != nil {
		vec, err := s.embedder.Embed(ctx, question)
		if err != nil {
			// Keyword results still stand; semantic search is best effort.
			s.logger.Warn("question embedding failed, keyword results only", zap.Error(err))
		} else {
			similar, err := s.notes.FindSimilar(ctx, vec, s.NoteLimit)
			if err != nil {
				return nil, fmt.Errorf("semantic search: %w", err)
			}
			notes = mergeNotes(notes, similar, s.NoteLimit)
		}
	}

	beliefs, err := s.supportedBeliefs(ctx, notes)
	if err != nil {
		return nil, err
	}

	return &Evidence{Notes: notes, Beliefs: beliefs}, nil
}

// supportedBeliefs follows supports edges out of the matched notes and
// loads the distinct target beliefs, skipping archived ones.
func (s *AskService) supportedBeliefs(ctx context.Context, notes []domain.Note) ([]domain.Belief, error) {
	seen := make(map[uuid.UUID]bool)
	var out []domain.Belief
	rel := domain.RelSupports

	for i := range notes {
		if len(out) >= s.BeliefLimit {
			break
		}
		edges, err := s.edges.Query(ctx, domain.EntityNote, notes[i].ID, domain.DirectionOutgoing, &rel)
		if err != nil {
			return nil, fmt.Errorf("query supports edges: %w", err)
		}
		for _, e := range edges {
			if e.ToType != domain.EntityBelief || seen[e.ToID] {
				continue
			}
			seen[e.ToID] = true
			belief, err := s.beliefs.Get(ctx, e.ToID)
			if err != nil {
				// Dangling edge; the graph does not enforce integrity.
				continue
			}
			if belief.Status == domain.StatusArchived {
				continue
			}
			out = append(out, *belief)
			if len(out) >= s.BeliefLimit {
				break
			}
		}
	}
	return out, nil
}

// mergeNotes appends semantic hits to the keyword hits, deduplicating by
// note ID and keeping keyword order first.
func mergeNotes(keyword []domain.Note, semantic []domain.NoteWithScore, limit int) []domain.Note {
	seen := make(map[uuid.UUID]bool, len(keyword))
	for i := range keyword {
		seen[keyword[i].ID] = true
	}
	out := keyword
	for i := range semantic {
		if len(out) >= limit {
			break
		}
		if seen[semantic[i].Note.ID] {
			continue
		}
		seen[semantic[i].Note.ID] = true
		out = append(out, semantic[i].Note)
	}
	return out
}

func renderAnswer(question string, ev *Evidence) string {
	if len(ev.Notes) == 0 && len(ev.Beliefs) == 0 {
		return fmt.Sprintf("Nothing recorded about %q yet.", question)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on %d notes and %d beliefs:\n", len(ev.Notes), len(ev.Beliefs))
	for i := range ev.Beliefs {
		belief := &ev.Beliefs[i]
		fmt.Fprintf(&b, "- %s (%s, confidence %.2f) [belief:%s]\n",
			belief.ClaimText, belief.Status, belief.Confidence, belief.ID)
	}
	for i := range ev.Notes {
		note := &ev.Notes[i]
		fmt.Fprintf(&b, "- %s [note:%s]\n",
			firstLineSnippet(note.Content, distillSnippetWidth), note.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/bonjohen/second-brain/internal/embedding"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Curator defaults
const (
	DefaultColdDays            = 90
	DefaultDedupSimilarity     = 0.92
	DefaultDedupMaxCandidates  = 200
	DefaultCuratorTimeBudget   = 30 * time.Second
	DefaultDistillMinGroupSize = 5

	distillTagPrefix    = "distill-"
	distillMemberLimit  = 10
	distillSnippetWidth = 80
)

// CuratorResult summarizes one maintenance run.
type CuratorResult struct {
	Archived     int `json:"archived"`
	Deduplicated int `json:"deduplicated"`
	Distilled    int `json:"distilled"`
}

// CuratorService runs the slow hygiene passes: archiving cold deprecated
// beliefs, merging near-duplicate active claims, and distilling large note
// clusters into summary notes. All passes are bounded so a run cannot
// monopolize the scheduler.
type CuratorService struct {
	notes    *NoteService
	beliefs  *BeliefService
	edges    domain.EdgeStore
	signals  domain.SignalStore
	audits   domain.AuditStore
	embedder domain.EmbeddingClient
	logger   *zap.Logger

	ColdDays            int
	SimilarityThreshold float32
	MaxCandidates       int
	TimeBudget          time.Duration
	DistillMinGroupSize int
}

func NewCuratorService(notes *NoteService, beliefs *BeliefService, edges domain.EdgeStore, signals domain.SignalStore, audits domain.AuditStore, embedder domain.EmbeddingClient, logger *zap.Logger) *CuratorService {
	return &CuratorService{
		notes:               notes,
		beliefs:             beliefs,
		edges:               edges,
		signals:             signals,
		audits:              audits,
		embedder:            embedder,
		logger:              logger,
		ColdDays:            DefaultColdDays,
		SimilarityThreshold: DefaultDedupSimilarity,
		MaxCandidates:       DefaultDedupMaxCandidates,
		TimeBudget:          DefaultCuratorTimeBudget,
		DistillMinGroupSize: DefaultDistillMinGroupSize,
	}
}

// Run executes the three passes in order. Each pass degrades to a partial
// result rather than failing the run when its budget expires.
func (s *CuratorService) Run(ctx context.Context) (*CuratorResult, error) {
	result := &CuratorResult{}
	deadline := time.Now().Add(s.TimeBudget)

	archived, err := s.ArchiveCold(ctx)
	result.Archived = archived
	if err != nil {
		return result, err
	}

	deduped, err := s.Deduplicate(ctx, deadline)
	result.Deduplicated = deduped
	if err != nil {
		return result, err
	}

	distilled, err := s.Distill(ctx)
	result.Distilled = distilled
	if err != nil {
		return result, err
	}

	s.logger.Info("curator run complete",
		zap.Int("archived", result.Archived),
		zap.Int("deduplicated", result.Deduplicated),
		zap.Int("distilled", result.Distilled))
	return result, nil
}

// ArchiveCold moves DEPRECATED beliefs untouched for ColdDays to ARCHIVED.
func (s *CuratorService) ArchiveCold(ctx context.Context) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -s.ColdDays)
	status := domain.StatusDeprecated

	var cold []domain.Belief
	for offset := 0; ; offset += listBatchSize {
		batch, err := s.beliefs.List(ctx, &status, listBatchSize, offset)
		if err != nil {
			return 0, fmt.Errorf("list deprecated beliefs: %w", err)
		}
		for i := range batch {
			if batch[i].UpdatedAt.Before(cutoff) {
				cold = append(cold, batch[i])
			}
		}
		if len(batch) < listBatchSize {
			break
		}
	}

	archived := 0
	for i := range cold {
		if _, err := s.beliefs.UpdateStatus(ctx, cold[i].ID, domain.StatusArchived); err != nil {
			if errors.Is(err, ErrBeliefNotFound) || errors.Is(err, ErrInvalidTransition) {
				s.logger.Warn("skipping cold belief that changed under curator",
					zap.String("belief_id", cold[i].ID.String()), zap.Error(err))
				continue
			}
			return archived, err
		}
		archived++
	}
	return archived, nil
}

// Deduplicate finds near-identical ACTIVE and PROPOSED claims by embedding
// similarity and merges each duplicate into its survivor, pairing every
// candidate at most once per pass. Without an embedding client the pass is
// a no-op. The pass stops early, returning what it merged so far, when the
// deadline passes.
func (s *CuratorService) Deduplicate(ctx context.Context, deadline time.Time) (int, error) {
	if s.embedder == nil {
		return 0, nil
	}

	candidates, err := s.dedupCandidates(ctx)
	if err != nil {
		return 0, err
	}
	if len(candidates) < 2 {
		return 0, nil
	}

	vectors := make([][]float32, len(candidates))
	for i := range candidates {
		if time.Now().After(deadline) {
			s.logger.Warn("dedup pass out of time while embedding",
				zap.Int("embedded", i), zap.Int("candidates", len(candidates)))
			return 0, nil
		}
		vec, err := s.embedder.Embed(ctx, candidates[i].ClaimText)
		if err != nil {
			return 0, fmt.Errorf("embed claim %s: %w", candidates[i].ID, err)
		}
		vectors[i] = vec
	}

	merged := 0
	gone := make(map[uuid.UUID]bool)
	for i := 0; i < len(candidates); i++ {
		if gone[candidates[i].ID] {
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			if time.Now().After(deadline) {
				s.logger.Warn("dedup pass out of time", zap.Int("merged", merged))
				return merged, nil
			}
			if gone[candidates[j].ID] {
				continue
			}
			if embedding.CosineSimilarity(vectors[i], vectors[j]) < s.SimilarityThreshold {
				continue
			}
			if err := s.merge(ctx, &candidates[i], &candidates[j]); err != nil {
				if errors.Is(err, ErrBeliefNotFound) || errors.Is(err, ErrInvalidTransition) {
					s.logger.Warn("skipping dedup merge that raced a status change",
						zap.String("belief_id", candidates[j].ID.String()), zap.Error(err))
					continue
				}
				return merged, err
			}
			gone[candidates[j].ID] = true
			merged++
			// Each survivor absorbs at most one duplicate per pass, so a
			// pass never exceeds half the candidate count; repeat runs
			// collapse longer duplicate chains.
			break
		}
	}
	return merged, nil
}

// dedupCandidates loads ACTIVE then PROPOSED beliefs, oldest first within
// each status, capped at MaxCandidates.
func (s *CuratorService) dedupCandidates(ctx context.Context) ([]domain.Belief, error) {
	var out []domain.Belief
	for _, status := range []domain.BeliefStatus{domain.StatusActive, domain.StatusProposed} {
		st := status
		for offset := 0; len(out) < s.MaxCandidates; offset += listBatchSize {
			limit := listBatchSize
			if remaining := s.MaxCandidates - len(out); remaining < limit {
				limit = remaining
			}
			batch, err := s.beliefs.List(ctx, &st, limit, offset)
			if err != nil {
				return nil, fmt.Errorf("list %s beliefs: %w", st, err)
			}
			out = append(out, batch...)
			if len(batch) < limit {
				break
			}
		}
	}
	if len(out) == s.MaxCandidates {
		s.logger.Warn("dedup candidate pool truncated", zap.Int("cap", s.MaxCandidates))
	}
	return out, nil
}

// merge folds dup into survivor: dup's edges are rewired to the survivor,
// dup is walked down to DEPRECATED through valid transitions, and a
// related_to edge plus audit entry record where it went.
func (s *CuratorService) merge(ctx context.Context, survivor, dup *domain.Belief) error {
	if err := s.rewireEdges(ctx, dup.ID, survivor.ID); err != nil {
		return err
	}

	// A PROPOSED duplicate has to pass through ACTIVE and CHALLENGED to
	// reach DEPRECATED.
	path := map[domain.BeliefStatus][]domain.BeliefStatus{
		domain.StatusProposed:   {domain.StatusActive, domain.StatusChallenged, domain.StatusDeprecated},
		domain.StatusActive:     {domain.StatusChallenged, domain.StatusDeprecated},
		domain.StatusChallenged: {domain.StatusDeprecated},
	}[dup.Status]
	for _, next := range path {
		if _, err := s.beliefs.UpdateStatus(ctx, dup.ID, next); err != nil {
			return err
		}
	}

	edge := &domain.Edge{
		FromType: domain.EntityBelief,
		FromID:   dup.ID,
		RelType:  domain.RelRelatedTo,
		ToType:   domain.EntityBelief,
		ToID:     survivor.ID,
	}
	if err := s.edges.Create(ctx, edge); err != nil {
		return fmt.Errorf("create merge edge: %w", err)
	}

	entry := domain.NewAuditEntry(domain.EntityBelief, dup.ID, domain.AuditDeduplicated,
		nil, map[string]any{"merged_into": survivor.ID.String()})
	if err := s.audits.Append(ctx, entry); err != nil {
		return fmt.Errorf("record deduplication: %w", err)
	}

	s.logger.Info("merged duplicate belief",
		zap.String("duplicate", dup.ID.String()),
		zap.String("survivor", survivor.ID.String()))
	return nil
}

// rewireEdges repoints every edge touching dup at the survivor, dropping
// edges that would become self-loops.
func (s *CuratorService) rewireEdges(ctx context.Context, dupID, survivorID uuid.UUID) error {
	edges, err := s.edges.Query(ctx, domain.EntityBelief, dupID, domain.DirectionBoth, nil)
	if err != nil {
		return fmt.Errorf("query duplicate edges: %w", err)
	}
	for i := range edges {
		e := edges[i]
		if e.FromType == domain.EntityBelief && e.FromID == dupID {
			e.FromID = survivorID
		}
		if e.ToType == domain.EntityBelief && e.ToID == dupID {
			e.ToID = survivorID
		}
		if _, err := s.edges.Delete(ctx, edges[i].ID); err != nil {
			return fmt.Errorf("delete duplicate edge: %w", err)
		}
		if e.FromType == e.ToType && e.FromID == e.ToID {
			continue
		}
		if exists, err := s.edges.Exists(ctx, e.FromType, e.FromID, e.RelType, e.ToType, e.ToID); err != nil {
			return fmt.Errorf("check rewired edge: %w", err)
		} else if exists {
			continue
		}
		e.ID = uuid.Nil
		if err := s.edges.Create(ctx, &e); err != nil {
			return fmt.Errorf("rewire edge: %w", err)
		}
	}
	return nil
}

// Distill summarizes every tag cluster of DistillMinGroupSize or more notes
// into a single summary note linked back to its members. A marker tag on
// the summary keeps each cluster from being distilled twice.
func (s *CuratorService) Distill(ctx context.Context) (int, error) {
	byTag := make(map[string][]domain.Note)
	for offset := 0; ; offset += listBatchSize {
		batch, err := s.notes.List(ctx, listBatchSize, offset)
		if err != nil {
			return 0, fmt.Errorf("list notes: %w", err)
		}
		for i := range batch {
			for _, tag := range batch[i].Tags {
				if strings.HasPrefix(tag, distillTagPrefix) || tag == "summary" {
					continue
				}
				byTag[tag] = append(byTag[tag], batch[i])
			}
		}
		if len(batch) < listBatchSize {
			break
		}
	}

	distilled := 0
	for tag, group := range byTag {
		if len(group) < s.DistillMinGroupSize {
			continue
		}
		done, err := s.notes.ListByTag(ctx, distillTagPrefix+tag, 1)
		if err != nil {
			return distilled, fmt.Errorf("check distill marker for %q: %w", tag, err)
		}
		if len(done) > 0 {
			continue
		}
		if err := s.distillGroup(ctx, tag, group); err != nil {
			return distilled, err
		}
		distilled++
	}
	return distilled, nil
}

func (s *CuratorService) distillGroup(ctx context.Context, tag string, group []domain.Note) error {
	members := group
	if len(members) > distillMemberLimit {
		members = members[:distillMemberLimit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summary of %d notes tagged #%s:\n", len(group), tag)
	for i := range members {
		fmt.Fprintf(&b, "- %s\n", firstLineSnippet(members[i].Content, distillSnippetWidth))
	}

	source, err := s.notes.CreateSource(ctx, domain.SourceKindUser, "curator:distill", domain.TrustUser)
	if err != nil {
		return fmt.Errorf("create distill source: %w", err)
	}

	summary, err := s.notes.CreateNote(ctx, b.String(), domain.ContentTypeText, source.ID,
		[]string{distillTagPrefix + tag, tag, "summary"}, nil)
	if err != nil {
		return fmt.Errorf("create summary note for %q: %w", tag, err)
	}

	for i := range members {
		edge := &domain.Edge{
			FromType: domain.EntityNote,
			FromID:   members[i].ID,
			RelType:  domain.RelDerivedFrom,
			ToType:   domain.EntityNote,
			ToID:     summary.ID,
		}
		if err := s.edges.Create(ctx, edge); err != nil {
			return fmt.Errorf("link summary member: %w", err)
		}
	}

	sig := &domain.Signal{
		Type: domain.SignalNoteDistilled,
		Payload: map[string]any{
			"note_id": summary.ID.String(),
			"tag":     tag,
		},
	}
	if err := s.signals.Emit(ctx, sig); err != nil {
		return fmt.Errorf("emit note_distilled: %w", err)
	}

	s.logger.Info("distilled note cluster",
		zap.String("tag", tag), zap.Int("notes", len(group)))
	return nil
}

func firstLineSnippet(content string, width int) string {
	line := content
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if len(line) > width {
		line = line[:width]
	}
	return line
}

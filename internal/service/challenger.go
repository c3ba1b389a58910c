package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChallengerAgent consumes belief_proposed signals and checks the new claim
// against the existing PROPOSED and ACTIVE beliefs. Each detected conflict
// records a contradicts edge in both directions, flips an ACTIVE opponent to
// CHALLENGED, rescores both parties, and emits belief_challenged.
type ChallengerAgent struct {
	beliefs    *BeliefService
	edges      domain.EdgeStore
	signals    domain.SignalStore
	detector   *ContradictionDetector
	confidence *ConfidenceEngine
	logger     *zap.Logger
}

func NewChallengerAgent(beliefs *BeliefService, edges domain.EdgeStore, signals domain.SignalStore, detector *ContradictionDetector, confidence *ConfidenceEngine, logger *zap.Logger) *ChallengerAgent {
	return &ChallengerAgent{
		beliefs:    beliefs,
		edges:      edges,
		signals:    signals,
		detector:   detector,
		confidence: confidence,
		logger:     logger,
	}
}

// HandleSignal processes a single belief_proposed signal. Registered with
// the dispatcher for domain.SignalBeliefProposed.
func (a *ChallengerAgent) HandleSignal(ctx context.Context, sig *domain.Signal) error {
	beliefID, err := uuid.Parse(sig.PayloadString("belief_id"))
	if err != nil {
		a.logger.Warn("belief_proposed signal without usable belief_id",
			zap.String("signal_id", sig.ID.String()))
		return nil
	}

	belief, err := a.beliefs.Get(ctx, beliefID)
	if err != nil {
		if errors.Is(err, ErrBeliefNotFound) {
			// Belief vanished between emit and dispatch; nothing to challenge.
			return nil
		}
		return fmt.Errorf("load belief %s: %w", beliefID, err)
	}

	_, err = a.Challenge(ctx, belief)
	return err
}

// Challenge runs contradiction detection for one belief and applies the
// consequences. Returns the IDs of the beliefs it found in conflict.
func (a *ChallengerAgent) Challenge(ctx context.Context, belief *domain.Belief) ([]uuid.UUID, error) {
	candidates, err := a.detector.LoadCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load contradiction candidates: %w", err)
	}

	hits := a.detector.Detect(belief, candidates)
	if len(hits) == 0 {
		return nil, nil
	}

	byID := make(map[uuid.UUID]*domain.Belief, len(candidates))
	for i := range candidates {
		byID[candidates[i].ID] = &candidates[i]
	}

	for _, otherID := range hits {
		other := byID[otherID]
		if other == nil {
			continue
		}
		if err := a.recordConflict(ctx, belief, other); err != nil {
			return hits, err
		}
	}

	// The new belief picked up incoming contradicts edges; bring its
	// stored confidence in line before lifecycle evaluation sees it.
	score, err := a.confidence.ScoreFromEdges(ctx, belief)
	if err != nil {
		return hits, fmt.Errorf("rescore challenged belief: %w", err)
	}
	if _, err := a.beliefs.UpdateConfidence(ctx, belief.ID, score); err != nil {
		return hits, err
	}

	return hits, nil
}

// recordConflict wires a contradicts edge in each direction so the conflict
// weighs on both parties' scores, then challenges an ACTIVE opponent.
// Re-detection of an already recorded pair is a no-op.
func (a *ChallengerAgent) recordConflict(ctx context.Context, belief, other *domain.Belief) error {
	exists, err := a.edges.Exists(ctx, domain.EntityBelief, belief.ID, domain.RelContradicts, domain.EntityBelief, other.ID)
	if err != nil {
		return fmt.Errorf("check contradicts edge: %w", err)
	}
	if exists {
		return nil
	}

	for _, pair := range [][2]uuid.UUID{{belief.ID, other.ID}, {other.ID, belief.ID}} {
		edge := &domain.Edge{
			FromType: domain.EntityBelief,
			FromID:   pair[0],
			RelType:  domain.RelContradicts,
			ToType:   domain.EntityBelief,
			ToID:     pair[1],
		}
		if err := a.edges.Create(ctx, edge); err != nil {
			return fmt.Errorf("create contradicts edge: %w", err)
		}
	}

	if other.Status == domain.StatusActive {
		if _, err := a.beliefs.UpdateStatus(ctx, other.ID, domain.StatusChallenged); err != nil {
			return fmt.Errorf("challenge belief %s: %w", other.ID, err)
		}
	}

	score, err := a.confidence.ScoreFromEdges(ctx, other)
	if err != nil {
		return fmt.Errorf("rescore belief %s: %w", other.ID, err)
	}
	if _, err := a.beliefs.UpdateConfidence(ctx, other.ID, score); err != nil {
		return err
	}

	sig := &domain.Signal{
		Type: domain.SignalBeliefChallenged,
		Payload: map[string]any{
			"belief_id":     other.ID.String(),
			"challenged_by": belief.ID.String(),
		},
	}
	if err := a.signals.Emit(ctx, sig); err != nil {
		return fmt.Errorf("emit belief_challenged: %w", err)
	}

	a.logger.Info("contradiction recorded",
		zap.String("belief_id", belief.ID.String()),
		zap.String("contradicts", other.ID.String()))
	return nil
}

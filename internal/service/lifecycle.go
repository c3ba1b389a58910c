package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bonjohen/second-brain/internal/domain"
	"go.uber.org/zap"
)

// Lifecycle thresholds
const (
	DefaultActivationThreshold  = 0.6
	DefaultDeprecationThreshold = 0.2
)

// LifecycleResult summarizes one AutoTransition sweep.
type LifecycleResult struct {
	Activated  int `json:"activated"`
	Deprecated int `json:"deprecated"`
}

// LifecycleService drives the automatic belief status transitions. It
// promotes healthy PROPOSED beliefs to ACTIVE and retires CHALLENGED
// beliefs whose confidence has collapsed.
type LifecycleService struct {
	beliefs    *BeliefService
	confidence *ConfidenceEngine
	detector   *ContradictionDetector
	logger     *zap.Logger

	ActivationThreshold  float32
	DeprecationThreshold float32
}

func NewLifecycleService(beliefs *BeliefService, confidence *ConfidenceEngine, detector *ContradictionDetector, logger *zap.Logger) *LifecycleService {
	return &LifecycleService{
		beliefs:              beliefs,
		confidence:           confidence,
		detector:             detector,
		logger:               logger,
		ActivationThreshold:  DefaultActivationThreshold,
		DeprecationThreshold: DefaultDeprecationThreshold,
	}
}

// AutoTransition evaluates every PROPOSED and CHALLENGED belief once.
// Recomputed confidence is persisted only when a transition fires; a belief
// that merely drifts keeps its stored value and update time, so decay keeps
// accruing across sweeps instead of being reset every tick.
func (s *LifecycleService) AutoTransition(ctx context.Context) (*LifecycleResult, error) {
	result := &LifecycleResult{}

	candidates, err := s.detector.LoadCandidates(ctx)
	if err != nil {
		return result, fmt.Errorf("load contradiction candidates: %w", err)
	}

	if err := s.sweep(ctx, domain.StatusProposed, func(ctx context.Context, b *domain.Belief, score float32) error {
		if score < s.ActivationThreshold {
			return nil
		}
		if len(s.detector.Detect(b, candidates)) > 0 {
			// Unresolved conflict keeps the belief out of ACTIVE until the
			// challenger has had its say.
			return nil
		}
		if _, err := s.beliefs.UpdateConfidence(ctx, b.ID, score); err != nil {
			return err
		}
		if _, err := s.beliefs.UpdateStatus(ctx, b.ID, domain.StatusActive); err != nil {
			return err
		}
		result.Activated++
		return nil
	}); err != nil {
		return result, err
	}

	if err := s.sweep(ctx, domain.StatusChallenged, func(ctx context.Context, b *domain.Belief, score float32) error {
		if score >= s.DeprecationThreshold {
			return nil
		}
		if _, err := s.beliefs.UpdateConfidence(ctx, b.ID, score); err != nil {
			return err
		}
		if _, err := s.beliefs.UpdateStatus(ctx, b.ID, domain.StatusDeprecated); err != nil {
			return err
		}
		result.Deprecated++
		return nil
	}); err != nil {
		return result, err
	}

	if result.Activated > 0 || result.Deprecated > 0 {
		s.logger.Info("lifecycle sweep applied transitions",
			zap.Int("activated", result.Activated),
			zap.Int("deprecated", result.Deprecated))
	}
	return result, nil
}

// sweep pages through beliefs in one status, rescoring each and handing it
// to apply. Offset pagination stays stable because UpdateStatus moves rows
// out of the queried status only after they have been visited.
func (s *LifecycleService) sweep(ctx context.Context, status domain.BeliefStatus, apply func(context.Context, *domain.Belief, float32) error) error {
	// Collect IDs first; mutating status mid-pagination would shift offsets.
	var pending []domain.Belief
	for offset := 0; ; offset += listBatchSize {
		batch, err := s.beliefs.List(ctx, &status, listBatchSize, offset)
		if err != nil {
			return fmt.Errorf("list %s beliefs: %w", status, err)
		}
		pending = append(pending, batch...)
		if len(batch) < listBatchSize {
			break
		}
	}

	for i := range pending {
		b := &pending[i]
		score, err := s.confidence.ScoreFromEdges(ctx, b)
		if err != nil {
			return fmt.Errorf("score belief %s: %w", b.ID, err)
		}
		if err := apply(ctx, b, score); err != nil {
			if errors.Is(err, ErrBeliefNotFound) || errors.Is(err, ErrInvalidTransition) {
				// Something else moved the belief during the sweep; skip it.
				s.logger.Warn("belief changed under lifecycle sweep",
					zap.String("belief_id", b.ID.String()), zap.Error(err))
				continue
			}
			return err
		}
	}
	return nil
}

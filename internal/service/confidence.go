package service

import (
	"context"
	"math"
	"time"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/google/uuid"
)

// Confidence defaults
const (
	DefaultBaseConfidence   = 0.5
	DefaultSupportWeight    = 0.1
	DefaultContradictWeight = 0.1
	DefaultHalfLifeDays     = 30.0
)

// DecayFactor returns the time-decay multiplier for a belief's confidence.
// NONE is constant 1.0; EXPONENTIAL halves every halfLifeDays. Negative
// elapsed time clamps to zero.
func DecayFactor(model domain.DecayModel, sinceUpdate time.Duration, halfLifeDays float64) float64 {
	if model != domain.DecayExponential {
		return 1.0
	}
	if halfLifeDays <= 0 {
		return 0.0
	}
	days := sinceUpdate.Hours() / 24
	if days <= 0 {
		return 1.0
	}
	return math.Pow(2, -days/halfLifeDays)
}

// ConfidenceEngine computes belief confidence from graph edges and elapsed
// time. Score is pure and deterministic; persisting the result is the
// caller's job.
type ConfidenceEngine struct {
	edges domain.EdgeStore

	BaseConfidence   float64
	SupportWeight    float64
	ContradictWeight float64
	HalfLifeDays     float64
}

func NewConfidenceEngine(edges domain.EdgeStore) *ConfidenceEngine {
	return &ConfidenceEngine{
		edges:            edges,
		BaseConfidence:   DefaultBaseConfidence,
		SupportWeight:    DefaultSupportWeight,
		ContradictWeight: DefaultContradictWeight,
		HalfLifeDays:     DefaultHalfLifeDays,
	}
}

// Score computes confidence from edge counts at the given instant:
// clamp((base + supportWeight*supports - contradictWeight*contradicts) * decay, 0, 1).
func (e *ConfidenceEngine) Score(b *domain.Belief, supports, contradicts int, now time.Time) float32 {
	raw := e.BaseConfidence + e.SupportWeight*float64(supports) - e.ContradictWeight*float64(contradicts)
	decay := DecayFactor(b.DecayModel, now.Sub(b.UpdatedAt), e.HalfLifeDays)
	return float32(clamp01(raw * decay))
}

// ScoreFromEdges counts the belief's evidence edges and scores it against
// the current clock. Only edges pointing at the belief count; an outgoing
// contradicts edge weighs on its target, not on its author.
func (e *ConfidenceEngine) ScoreFromEdges(ctx context.Context, b *domain.Belief) (float32, error) {
	supports, err := e.countIncoming(ctx, b.ID, domain.RelSupports)
	if err != nil {
		return 0, err
	}
	contradicts, err := e.countIncoming(ctx, b.ID, domain.RelContradicts)
	if err != nil {
		return 0, err
	}
	return e.Score(b, supports, contradicts, time.Now()), nil
}

func (e *ConfidenceEngine) countIncoming(ctx context.Context, beliefID uuid.UUID, rel domain.RelType) (int, error) {
	edges, err := e.edges.Query(ctx, domain.EntityBelief, beliefID, domain.DirectionIncoming, &rel)
	if err != nil {
		return 0, err
	}
	return len(edges), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

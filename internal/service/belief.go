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

// listBatchSize is the page size for full-table scans; scans loop until an
// empty page so no bucket is silently truncated.
const listBatchSize = 500

var (
	ErrClaimEmpty           = errors.New("claim text is required")
	ErrConfidenceOutOfRange = errors.New("confidence must be between 0 and 1")
	ErrInvalidDecayModel    = errors.New("unknown decay model")
	ErrBeliefNotFound       = errors.New("belief not found")
	ErrInvalidTransition    = errors.New("invalid status transition")
)

// BeliefService owns belief creation and the status/confidence mutations.
// Every state change appends exactly one audit entry in the same
// transaction as the row update.
type BeliefService struct {
	beliefs domain.BeliefStore
	logger  *zap.Logger
}

func NewBeliefService(beliefs domain.BeliefStore, logger *zap.Logger) *BeliefService {
	return &BeliefService{beliefs: beliefs, logger: logger}
}

// Create validates and persists a new belief in PROPOSED status.
func (s *BeliefService) Create(ctx context.Context, claimText string, confidence float32, decayModel domain.DecayModel, derivedFromAgent string, scope map[string]any) (*domain.Belief, error) {
	if strings.TrimSpace(claimText) == "" {
		return nil, ErrClaimEmpty
	}
	if confidence < 0 || confidence > 1 {
		return nil, ErrConfidenceOutOfRange
	}
	if decayModel == "" {
		decayModel = domain.DecayExponential
	}
	if !domain.ValidDecayModel(string(decayModel)) {
		return nil, ErrInvalidDecayModel
	}

	b := &domain.Belief{
		ClaimText:        claimText,
		Status:           domain.StatusProposed,
		Confidence:       confidence,
		DecayModel:       decayModel,
		Scope:            scope,
		DerivedFromAgent: derivedFromAgent,
	}

	entry := domain.NewAuditEntry(domain.EntityBelief, uuid.Nil, domain.AuditCreated, nil, beliefSnapshot(b))
	if err := s.beliefs.Create(ctx, b, entry); err != nil {
		return nil, fmt.Errorf("create belief: %w", err)
	}

	s.logger.Info("belief created",
		zap.String("belief_id", b.ID.String()),
		zap.String("agent", derivedFromAgent),
		zap.Float32("confidence", b.Confidence))
	return b, nil
}

// UpdateStatus transitions a belief along the lifecycle table. Illegal
// moves fail with ErrInvalidTransition and leave the row untouched.
func (s *BeliefService) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.BeliefStatus) (*domain.Belief, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, next)
	}

	before := beliefSnapshot(b)
	b.Status = next
	entry := domain.NewAuditEntry(domain.EntityBelief, id, domain.AuditStatusChanged, before, beliefSnapshot(b))
	if err := s.beliefs.UpdateStatus(ctx, id, next, entry); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBeliefNotFound
		}
		return nil, fmt.Errorf("update belief status: %w", err)
	}

	s.logger.Info("belief status changed",
		zap.String("belief_id", id.String()),
		zap.String("from", before["status"].(string)),
		zap.String("to", string(next)))
	return s.Get(ctx, id)
}

// UpdateConfidence persists a recomputed confidence, clamped to [0, 1].
func (s *BeliefService) UpdateConfidence(ctx context.Context, id uuid.UUID, confidence float32) (*domain.Belief, error) {
	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	clamped := confidence
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 1 {
		clamped = 1
	}

	before := beliefSnapshot(b)
	b.Confidence = clamped
	entry := domain.NewAuditEntry(domain.EntityBelief, id, domain.AuditConfidenceUpdated, before, beliefSnapshot(b))
	if err := s.beliefs.UpdateConfidence(ctx, id, clamped, entry); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBeliefNotFound
		}
		return nil, fmt.Errorf("update belief confidence: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *BeliefService) Get(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	b, err := s.beliefs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBeliefNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *BeliefService) List(ctx context.Context, status *domain.BeliefStatus, limit, offset int) ([]domain.Belief, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.beliefs.List(ctx, status, limit, offset)
}

// beliefSnapshot captures the audited view of a belief for before/after
// records.
func beliefSnapshot(b *domain.Belief) map[string]any {
	return map[string]any{
		"claim_text":         b.ClaimText,
		"status":             string(b.Status),
		"confidence":         b.Confidence,
		"decay_model":        string(b.DecayModel),
		"derived_from_agent": b.DerivedFromAgent,
	}
}

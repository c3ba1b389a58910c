package service

import (
	"context"
	"fmt"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// synthesisGroupMin is the smallest note group that becomes a belief.
	synthesisGroupMin = 2
	// synthesisGroupLimit bounds how many existing notes join a group.
	synthesisGroupLimit = 100
)

// SynthesisAgent consumes new_note signals, groups the note with existing
// notes sharing a tag or entity, and proposes one belief per qualifying
// group. Duplicate claim text is suppressed, which also makes re-running on
// unchanged input a no-op.
type SynthesisAgent struct {
	notes   domain.NoteStore
	beliefs *BeliefService
	edges   domain.EdgeStore
	signals domain.SignalStore
	logger  *zap.Logger
}

func NewSynthesisAgent(notes domain.NoteStore, beliefs *BeliefService, edges domain.EdgeStore, signals domain.SignalStore, logger *zap.Logger) *SynthesisAgent {
	return &SynthesisAgent{notes: notes, beliefs: beliefs, edges: edges, signals: signals, logger: logger}
}

// HandleSignal processes a single new_note signal. Registered with the
// dispatcher for domain.SignalNewNote.
func (a *SynthesisAgent) HandleSignal(ctx context.Context, sig *domain.Signal) error {
	noteID, err := uuid.Parse(sig.PayloadString("note_id"))
	if err != nil {
		// Malformed payload; nothing to synthesize, don't retry forever.
		a.logger.Warn("new_note signal without usable note_id",
			zap.String("signal_id", sig.ID.String()))
		return nil
	}

	note, err := a.notes.GetByID(ctx, noteID)
	if err != nil {
		return fmt.Errorf("load note %s: %w", noteID, err)
	}

	_, err = a.SynthesizeFromNote(ctx, note)
	return err
}

// SynthesizeFromNote builds tag and entity groups around one note and
// creates a proposed belief (plus supports edges and a belief_proposed
// signal) for every group with at least two members.
func (a *SynthesisAgent) SynthesizeFromNote(ctx context.Context, note *domain.Note) ([]uuid.UUID, error) {
	var created []uuid.UUID

	for _, tag := range note.Tags {
		group, err := a.notes.ListByTag(ctx, tag, synthesisGroupLimit)
		if err != nil {
			return created, fmt.Errorf("group notes by tag %q: %w", tag, err)
		}
		id, err := a.proposeFromGroup(ctx, "tag", tag, mergeGroup(note, group))
		if err != nil {
			return created, err
		}
		if id != uuid.Nil {
			created = append(created, id)
		}
	}

	for _, entity := range note.Entities {
		group, err := a.notes.ListByEntity(ctx, entity, synthesisGroupLimit)
		if err != nil {
			return created, fmt.Errorf("group notes by entity %q: %w", entity, err)
		}
		id, err := a.proposeFromGroup(ctx, "entity", entity, mergeGroup(note, group))
		if err != nil {
			return created, err
		}
		if id != uuid.Nil {
			created = append(created, id)
		}
	}

	return created, nil
}

// proposeFromGroup creates one belief for a qualifying group. Returns
// uuid.Nil when the group is too small or the claim already exists.
func (a *SynthesisAgent) proposeFromGroup(ctx context.Context, kind, value string, group []domain.Note) (uuid.UUID, error) {
	if len(group) < synthesisGroupMin {
		return uuid.Nil, nil
	}

	claim := fmt.Sprintf("Multiple notes discuss %s (%d sources)", value, len(group))
	exists, err := a.beliefs.beliefs.ExistsByClaim(ctx, claim)
	if err != nil {
		return uuid.Nil, fmt.Errorf("check duplicate claim: %w", err)
	}
	if exists {
		return uuid.Nil, nil
	}

	confidence := float32(0.3 + 0.1*float64(len(group)))
	if confidence > 0.9 {
		confidence = 0.9
	}

	belief, err := a.beliefs.Create(ctx, claim, confidence, domain.DecayExponential, "synthesis", map[string]any{
		"group_key":  kind + ":" + value,
		"note_count": len(group),
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("create synthesized belief: %w", err)
	}

	for i := range group {
		edge := &domain.Edge{
			FromType: domain.EntityNote,
			FromID:   group[i].ID,
			RelType:  domain.RelSupports,
			ToType:   domain.EntityBelief,
			ToID:     belief.ID,
		}
		if err := a.edges.Create(ctx, edge); err != nil {
			return belief.ID, fmt.Errorf("create supports edge: %w", err)
		}
	}

	sig := &domain.Signal{
		Type: domain.SignalBeliefProposed,
		Payload: map[string]any{
			"belief_id": belief.ID.String(),
			"group_key": kind + ":" + value,
		},
	}
	if err := a.signals.Emit(ctx, sig); err != nil {
		return belief.ID, fmt.Errorf("emit belief_proposed: %w", err)
	}

	a.logger.Info("belief proposed from note group",
		zap.String("belief_id", belief.ID.String()),
		zap.String("group_key", kind+":"+value),
		zap.Int("note_count", len(group)))
	return belief.ID, nil
}

// mergeGroup ensures the triggering note is part of its own group even
// before the store's read view includes it.
func mergeGroup(note *domain.Note, group []domain.Note) []domain.Note {
	for i := range group {
		if group[i].ID == note.ID {
			return group
		}
	}
	return append(group, *note)
}

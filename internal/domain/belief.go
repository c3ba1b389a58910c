package domain

import (
	"time"

	"github.com/google/uuid"
)

type BeliefStatus string

const (
	StatusProposed   BeliefStatus = "proposed"
	StatusActive     BeliefStatus = "active"
	StatusChallenged BeliefStatus = "challenged"
	StatusDeprecated BeliefStatus = "deprecated"
	StatusArchived   BeliefStatus = "archived"
)

func ValidBeliefStatus(s string) bool {
	switch BeliefStatus(s) {
	case StatusProposed, StatusActive, StatusChallenged, StatusDeprecated, StatusArchived:
		return true
	}
	return false
}

// validTransitions is the complete belief lifecycle. Archived is terminal.
var validTransitions = map[BeliefStatus][]BeliefStatus{
	StatusProposed:   {StatusActive},
	StatusActive:     {StatusChallenged},
	StatusChallenged: {StatusActive, StatusDeprecated},
	StatusDeprecated: {StatusArchived},
	StatusArchived:   {},
}

// CanTransitionTo reports whether moving from s to next is a legal
// lifecycle transition.
func (s BeliefStatus) CanTransitionTo(next BeliefStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type DecayModel string

const (
	DecayNone        DecayModel = "none"
	DecayExponential DecayModel = "exponential"
)

func ValidDecayModel(m string) bool {
	switch DecayModel(m) {
	case DecayNone, DecayExponential:
		return true
	}
	return false
}

// Belief is a derived, confidence-scored claim with a managed lifecycle.
// Status and confidence are the only fields that change after creation.
type Belief struct {
	ID               uuid.UUID      `json:"id"`
	ClaimText        string         `json:"claim_text"`
	Status           BeliefStatus   `json:"status"`
	Confidence       float32        `json:"confidence"`
	DecayModel       DecayModel     `json:"decay_model"`
	Scope            map[string]any `json:"scope,omitempty"`
	DerivedFromAgent string         `json:"derived_from_agent,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

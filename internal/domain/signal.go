package domain

import (
	"time"

	"github.com/google/uuid"
)

// Signal types emitted by the core pipeline.
const (
	SignalNewNote          = "new_note"
	SignalBeliefProposed   = "belief_proposed"
	SignalBeliefChallenged = "belief_challenged"
	SignalNoteDistilled    = "note_distilled"
)

// Signal is an internal event on the append-only bus. Consumption is
// idempotent: once ProcessedAt is set the signal is excluded from polls and
// never returns to the unprocessed pool.
type Signal struct {
	ID          uuid.UUID      `json:"id"`
	Type        string         `json:"type"`
	Payload     map[string]any `json:"payload,omitempty"`
	RetryCount  int            `json:"retry_count"`
	CreatedAt   time.Time      `json:"created_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}

// PayloadString returns the string value for key, or "" if absent or not a
// string.
func (s *Signal) PayloadString(key string) string {
	v, _ := s.Payload[key].(string)
	return v
}

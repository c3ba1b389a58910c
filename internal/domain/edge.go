package domain

import (
	"time"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityNote   EntityType = "note"
	EntityBelief EntityType = "belief"
	EntitySource EntityType = "source"
)

func ValidEntityType(t string) bool {
	switch EntityType(t) {
	case EntityNote, EntityBelief, EntitySource:
		return true
	}
	return false
}

type RelType string

const (
	RelSupports    RelType = "supports"
	RelContradicts RelType = "contradicts"
	RelDerivedFrom RelType = "derived_from"
	RelRelatedTo   RelType = "related_to"
)

func ValidRelType(r string) bool {
	switch RelType(r) {
	case RelSupports, RelContradicts, RelDerivedFrom, RelRelatedTo:
		return true
	}
	return false
}

type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// Edge is a directed, typed relationship between two entities. Endpoints
// are polymorphic (type, id) keys; the graph store does not enforce
// referential integrity, so dangling endpoints are legal and callers that
// need integrity must check it themselves.
type Edge struct {
	ID        uuid.UUID  `json:"id"`
	FromType  EntityType `json:"from_type"`
	FromID    uuid.UUID  `json:"from_id"`
	RelType   RelType    `json:"rel_type"`
	ToType    EntityType `json:"to_type"`
	ToID      uuid.UUID  `json:"to_id"`
	CreatedAt time.Time  `json:"created_at"`
}

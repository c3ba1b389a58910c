package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/google/uuid"
)

type GraphHandler struct {
	edges domain.EdgeStore
}

func NewGraphHandler(edges domain.EdgeStore) *GraphHandler {
	return &GraphHandler{edges: edges}
}

type createEdgeRequest struct {
	FromType string `json:"from_type"`
	FromID   string `json:"from_id"`
	RelType  string `json:"rel_type"`
	ToType   string `json:"to_type"`
	ToID     string `json:"to_id"`
}

func (h *GraphHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !domain.ValidEntityType(req.FromType) || !domain.ValidEntityType(req.ToType) {
		writeError(w, http.StatusBadRequest, "invalid entity type")
		return
	}
	if !domain.ValidRelType(req.RelType) {
		writeError(w, http.StatusBadRequest, "invalid rel_type")
		return
	}
	fromID, err := uuid.Parse(req.FromID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from_id")
		return
	}
	toID, err := uuid.Parse(req.ToID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to_id")
		return
	}

	edge := &domain.Edge{
		FromType: domain.EntityType(req.FromType),
		FromID:   fromID,
		RelType:  domain.RelType(req.RelType),
		ToType:   domain.EntityType(req.ToType),
		ToID:     toID,
	}
	if err := h.edges.Create(r.Context(), edge); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create edge")
		return
	}
	writeJSON(w, http.StatusCreated, edge)
}

// Query returns the edges touching one entity. Direction defaults to both;
// rel_type is an optional filter.
func (h *GraphHandler) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	entityType := q.Get("entity_type")
	if !domain.ValidEntityType(entityType) {
		writeError(w, http.StatusBadRequest, "invalid entity_type")
		return
	}
	entityID, err := uuid.Parse(q.Get("entity_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity_id")
		return
	}

	direction := domain.Direction(q.Get("direction"))
	switch direction {
	case "":
		direction = domain.DirectionBoth
	case domain.DirectionOutgoing, domain.DirectionIncoming, domain.DirectionBoth:
	default:
		writeError(w, http.StatusBadRequest, "invalid direction")
		return
	}

	var relType *domain.RelType
	if rt := q.Get("rel_type"); rt != "" {
		if !domain.ValidRelType(rt) {
			writeError(w, http.StatusBadRequest, "invalid rel_type")
			return
		}
		r := domain.RelType(rt)
		relType = &r
	}

	edges, err := h.edges.Query(r.Context(), domain.EntityType(entityType), entityID, direction, relType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query edges")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"edges": edges, "count": len(edges)})
}

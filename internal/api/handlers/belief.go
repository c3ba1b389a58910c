package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/bonjohen/second-brain/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type BeliefHandler struct {
	beliefs *service.BeliefService
	audits  domain.AuditStore
}

func NewBeliefHandler(beliefs *service.BeliefService, audits domain.AuditStore) *BeliefHandler {
	return &BeliefHandler{beliefs: beliefs, audits: audits}
}

type createBeliefRequest struct {
	ClaimText  string         `json:"claim_text"`
	Confidence float32        `json:"confidence,omitempty"`
	DecayModel string         `json:"decay_model,omitempty"`
	Scope      map[string]any `json:"scope,omitempty"`
}

func (h *BeliefHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBeliefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Confidence == 0 {
		req.Confidence = 0.5
	}

	belief, err := h.beliefs.Create(r.Context(), req.ClaimText, req.Confidence,
		domain.DecayModel(req.DecayModel), "", req.Scope)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClaimEmpty),
			errors.Is(err, service.ErrConfidenceOutOfRange),
			errors.Is(err, service.ErrInvalidDecayModel):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to create belief")
		}
		return
	}
	writeJSON(w, http.StatusCreated, belief)
}

func (h *BeliefHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	belief, err := h.beliefs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrBeliefNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get belief")
		return
	}
	writeJSON(w, http.StatusOK, belief)
}

func (h *BeliefHandler) List(w http.ResponseWriter, r *http.Request) {
	var status *domain.BeliefStatus
	if s := r.URL.Query().Get("status"); s != "" {
		if !domain.ValidBeliefStatus(s) {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		bs := domain.BeliefStatus(s)
		status = &bs
	}

	beliefs, err := h.beliefs.List(r.Context(), status, queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list beliefs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"beliefs": beliefs, "count": len(beliefs)})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *BeliefHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !domain.ValidBeliefStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown status")
		return
	}

	belief, err := h.beliefs.UpdateStatus(r.Context(), id, domain.BeliefStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBeliefNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update status")
		}
		return
	}
	writeJSON(w, http.StatusOK, belief)
}

func (h *BeliefHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	history, err := h.audits.History(r.Context(), domain.EntityBelief, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

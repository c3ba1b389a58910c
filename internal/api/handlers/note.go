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

type NoteHandler struct {
	notes     *service.NoteService
	ingestion *service.IngestionService
	audits    domain.AuditStore
}

func NewNoteHandler(notes *service.NoteService, ingestion *service.IngestionService, audits domain.AuditStore) *NoteHandler {
	return &NoteHandler{notes: notes, ingestion: ingestion, audits: audits}
}

type ingestRequest struct {
	Content     string   `json:"content"`
	ContentType string   `json:"content_type,omitempty"`
	SourceKind  string   `json:"source_kind,omitempty"`
	Locator     string   `json:"locator,omitempty"`
	TrustLabel  string   `json:"trust_label,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type ingestResponse struct {
	Source *domain.Source `json:"source"`
	Note   *domain.Note   `json:"note"`
}

func (h *NoteHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.SourceKind != "" && !domain.ValidSourceKind(req.SourceKind) {
		writeError(w, http.StatusBadRequest, "invalid source_kind")
		return
	}
	if req.TrustLabel != "" && !domain.ValidTrustLabel(req.TrustLabel) {
		writeError(w, http.StatusBadRequest, "invalid trust_label")
		return
	}
	if req.ContentType != "" && !domain.ValidContentType(req.ContentType) {
		writeError(w, http.StatusBadRequest, "invalid content_type")
		return
	}

	src, note, err := h.ingestion.Ingest(r.Context(), service.IngestRequest{
		Content:     req.Content,
		ContentType: domain.ContentType(req.ContentType),
		SourceKind:  domain.SourceKind(req.SourceKind),
		Locator:     req.Locator,
		TrustLabel:  domain.TrustLabel(req.TrustLabel),
		ExtraTags:   req.Tags,
	})
	if err != nil {
		if errors.Is(err, service.ErrNoteContentEmpty) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to ingest note")
		return
	}

	writeJSON(w, http.StatusCreated, ingestResponse{Source: src, Note: note})
}

func (h *NoteHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	note, err := h.notes.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNoteNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get note")
		return
	}
	writeJSON(w, http.StatusOK, note)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	var (
		notes []domain.Note
		err   error
	)
	if tag := r.URL.Query().Get("tag"); tag != "" {
		notes, err = h.notes.ListByTag(r.Context(), tag, limit)
	} else {
		notes, err = h.notes.List(r.Context(), limit, offset)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list notes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes, "count": len(notes)})
}

func (h *NoteHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	notes, err := h.notes.Search(r.Context(), query, queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes, "count": len(notes)})
}

func (h *NoteHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid note id")
		return
	}

	history, err := h.audits.History(r.Context(), domain.EntityNote, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

type updateTrustRequest struct {
	TrustLabel string `json:"trust_label"`
}

func (h *NoteHandler) GetSource(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}

	src, err := h.notes.GetSource(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrSourceNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get source")
		return
	}
	writeJSON(w, http.StatusOK, src)
}

func (h *NoteHandler) UpdateSourceTrust(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}

	var req updateTrustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	src, err := h.notes.UpdateSourceTrust(r.Context(), id, domain.TrustLabel(req.TrustLabel))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTrust):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSourceNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to update trust label")
		}
		return
	}
	writeJSON(w, http.StatusOK, src)
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgermatch/reconcile-backend/internal/api/dto"
	"github.com/ledgermatch/reconcile-backend/internal/application/review"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/storage"
)

// MatchesHandler handles match detail and unmatch HTTP requests.
type MatchesHandler struct {
	*Base
	svc *review.Service
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(repo storage.Repository, svc *review.Service) *MatchesHandler {
	return &MatchesHandler{
		Base: NewBase(repo),
		svc:  svc,
	}
}

// Get handles GET /api/matches/{id} - returns a match with its audit
// trail.
func (h *MatchesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	match, err := h.repo.GetMatch(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if match == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("match"))
		return
	}

	audit, err := h.repo.ListAudit(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.MatchResponse{Match: *match, Audit: audit})
}

// Unmatch handles POST /api/matches/{id}/unmatch - reverses an
// accepted match back to pending review.
func (h *MatchesHandler) Unmatch(w http.ResponseWriter, r *http.Request) {
	var req dto.RejectRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}
	if req.Actor == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("actor is required"))
		return
	}

	match, err := h.svc.Unmatch(r.Context(), chi.URLParam(r, "id"), req.Actor, req.Reason)
	if err != nil {
		writeServiceError(h.Base, w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.MatchResponse{Match: *match})
}

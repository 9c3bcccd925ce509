package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgermatch/reconcile-backend/internal/api/dto"
	"github.com/ledgermatch/reconcile-backend/internal/application/review"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/storage"
	"github.com/ledgermatch/reconcile-backend/internal/ledger"
)

// ReviewHandler handles review queue HTTP requests.
type ReviewHandler struct {
	*Base
	svc *review.Service
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(repo storage.Repository, svc *review.Service) *ReviewHandler {
	return &ReviewHandler{
		Base: NewBase(repo),
		svc:  svc,
	}
}

// List handles GET /api/review - paginated pending matches with
// score/status/date filters.
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := storage.MatchFilters{
		UserID:   r.URL.Query().Get("user_id"),
		Status:   r.URL.Query().Get("status"),
		MinScore: ParseIntParam(r, "min_score", 0),
		MaxScore: ParseIntParam(r, "max_score", 0),
		DaysBack: ParseIntParam(r, "days_back", 0),
		Limit:    ParseIntParam(r, "limit", 50),
		Offset:   ParseIntParam(r, "offset", 0),
	}

	page, err := h.svc.ListPending(r.Context(), filters)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, page)
}

// Accept handles POST /api/review/{id}/accept.
func (h *ReviewHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var req dto.DecisionRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}
	if req.Actor == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("actor is required"))
		return
	}

	match, err := h.svc.Accept(r.Context(), chi.URLParam(r, "id"), req.Actor)
	if err != nil {
		writeServiceError(h.Base, w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.MatchResponse{Match: *match})
}

// Reject handles POST /api/review/{id}/reject.
func (h *ReviewHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req dto.RejectRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}
	if req.Actor == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("actor is required"))
		return
	}

	match, err := h.svc.Reject(r.Context(), chi.URLParam(r, "id"), req.Actor, req.Reason)
	if err != nil {
		writeServiceError(h.Base, w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.MatchResponse{Match: *match})
}

// BatchAccept handles POST /api/review/batch-accept. Either every
// member is applied or none is; safety violations come back with
// per-member reasons.
func (h *ReviewHandler) BatchAccept(w http.ResponseWriter, r *http.Request) {
	var req dto.BatchAcceptRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}
	if req.Actor == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("actor is required"))
		return
	}
	if len(req.MatchIDs) == 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("match_ids must not be empty"))
		return
	}

	accepted, err := h.svc.BatchAccept(r.Context(), req.MatchIDs, req.Actor)
	if err != nil {
		var blocked *review.BatchSafetyError
		if errors.As(err, &blocked) {
			h.WriteError(w, http.StatusConflict, dto.BatchBlockedError(blocked.Violations))
			return
		}
		writeServiceError(h.Base, w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.BatchAcceptResponse{Accepted: accepted, Count: len(accepted)})
}

// writeServiceError maps review service errors onto API error responses.
func writeServiceError(b *Base, w http.ResponseWriter, err error) {
	var invalid *storage.InvalidTransitionError
	var rejection *ledger.RejectionError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		b.WriteError(w, http.StatusNotFound, dto.NotFoundError("match"))
	case errors.As(err, &invalid):
		b.WriteError(w, http.StatusConflict, dto.InvalidStateError(invalid.Error()))
	case errors.As(err, &rejection):
		b.WriteError(w, http.StatusUnprocessableEntity, dto.LedgerRejectedError(rejection.Reason))
	default:
		b.WriteError(w, http.StatusInternalServerError, dto.InternalError())
	}
}

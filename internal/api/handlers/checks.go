package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgermatch/reconcile-backend/internal/api/dto"
	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/storage"
)

// ChecksHandler handles consistency check HTTP requests.
type ChecksHandler struct {
	*Base
}

// NewChecksHandler creates a new checks handler.
func NewChecksHandler(repo storage.Repository) *ChecksHandler {
	return &ChecksHandler{Base: NewBase(repo)}
}

// List handles GET /api/checks - returns a user's consistency checks,
// optionally filtered by status.
func (h *ChecksHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("user_id is required"))
		return
	}

	status := model.CheckStatus(r.URL.Query().Get("status"))

	checks, err := h.repo.ListChecks(r.Context(), userID, status)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.CheckListResponse{Checks: checks, Count: len(checks)})
}

// Resolve handles POST /api/checks/{id}/resolve - approves, rejects, or
// flags a pending check.
func (h *ChecksHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req dto.ResolveCheckRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}

	status := model.CheckStatus(req.Status)
	switch status {
	case model.CheckApproved, model.CheckRejected, model.CheckFlagged:
	default:
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("status must be approved, rejected, or flagged"))
		return
	}

	check, err := h.repo.ResolveCheck(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if check == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("check"))
		return
	}

	h.WriteJSON(w, http.StatusOK, check)
}

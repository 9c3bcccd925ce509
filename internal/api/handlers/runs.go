package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ledgermatch/reconcile-backend/internal/api/dto"
	"github.com/ledgermatch/reconcile-backend/internal/application/engine"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/storage"
)

// RunsHandler handles matching run HTTP requests.
type RunsHandler struct {
	*Base
	engine *engine.Engine
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository, eng *engine.Engine) *RunsHandler {
	return &RunsHandler{
		Base:   NewBase(repo),
		engine: eng,
	}
}

// Start handles POST /api/runs - executes a matching run synchronously
// and returns its summary.
func (h *RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req dto.RunRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("user_id is required"))
		return
	}

	opts := engine.Options{
		UserID: req.UserID,
		DryRun: req.DryRun,
	}
	if req.RuleVersionID != "" {
		version, err := h.repo.GetRuleVersion(r.Context(), req.RuleVersionID)
		if err != nil {
			h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
			return
		}
		if version == nil {
			h.WriteError(w, http.StatusNotFound, dto.NotFoundError("rule version"))
			return
		}
		rules, err := storage.RulesForVersion(*version)
		if err != nil {
			h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
			return
		}
		opts.Rules = &rules
	}

	summary, err := h.engine.Run(r.Context(), opts)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.RunResponse{
		RunID:         summary.RunID,
		RuleVersionID: summary.RuleVersionID,
		TxnsSeen:      summary.TxnsSeen,
		Matched:       summary.Matched,
		AutoAccepted:  summary.AutoAccepted,
		PendingReview: summary.PendingReview,
		Unmatched:     summary.Unmatched,
		Errored:       summary.Errored,
		NewChecks:     summary.NewChecks,
		Errors:        summary.Errors,
	})
}

// List handles GET /api/runs - returns recent matching runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := ParseIntParam(r, "limit", 20)
	userID := r.URL.Query().Get("user_id")

	runs, err := h.repo.ListRuns(r.Context(), userID, limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.RunListResponse{Runs: runs, Count: len(runs)})
}

// Get handles GET /api/runs/{id} - returns a single run by ID.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid run ID"))
		return
	}

	run, err := h.repo.GetRun(r.Context(), id)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if run == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}

	h.WriteJSON(w, http.StatusOK, run)
}

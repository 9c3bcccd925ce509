package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/api/dto"
	"github.com/ledgermatch/reconcile-backend/internal/domain/dedup"
	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/storage"
)

// TransactionsHandler handles transaction ingestion.
type TransactionsHandler struct {
	*Base
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(repo storage.Repository) *TransactionsHandler {
	return &TransactionsHandler{Base: NewBase(repo)}
}

// Ingest handles POST /api/transactions - idempotent batch upsert.
// Transactions already known (same user, same dedup hash) collapse onto
// the existing row, accumulating source refs.
func (h *TransactionsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req dto.IngestRequest
	if !h.DecodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("user_id is required"))
		return
	}
	if len(req.Transactions) == 0 {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("transactions must not be empty"))
		return
	}

	response := dto.IngestResponse{IDs: make([]string, 0, len(req.Transactions))}
	for _, payload := range req.Transactions {
		txn, err := toTransaction(req.UserID, payload)
		if err != "" {
			h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err))
			return
		}

		stored, created, uerr := h.repo.UpsertTransaction(r.Context(), txn)
		if uerr != nil {
			h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
			return
		}
		if created {
			response.Created++
		} else {
			response.Duplicates++
		}
		response.IDs = append(response.IDs, stored.ID)
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// toTransaction validates and converts one payload. Returns a non-empty
// message on validation failure.
func toTransaction(userID string, p dto.TransactionPayload) (model.AtomicTransaction, string) {
	var txn model.AtomicTransaction

	date, err := parseDate(p.Date)
	if err != nil {
		return txn, "invalid date: " + p.Date
	}

	amount, err := decimal.NewFromString(p.Amount)
	if err != nil || amount.Sign() <= 0 {
		return txn, "invalid amount: " + p.Amount
	}

	direction := model.Direction(p.Direction)
	if direction != model.DirectionIn && direction != model.DirectionOut {
		return txn, "direction must be in or out"
	}

	if p.Description == "" {
		return txn, "description is required"
	}
	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}

	txn = model.AtomicTransaction{
		UserID:      userID,
		TxnDate:     date,
		Amount:      amount,
		Direction:   direction,
		Description: p.Description,
		Currency:    currency,
		DedupHash:   dedup.Hash(date, amount, direction, p.Description, p.Reference),
	}
	if p.SourceRef != "" {
		txn.SourceRefs = []string{p.SourceRef}
	}
	return txn, ""
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

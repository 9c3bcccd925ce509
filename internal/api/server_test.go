package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgermatch/reconcile-backend/internal/api"
	"github.com/ledgermatch/reconcile-backend/internal/api/dto"
	"github.com/ledgermatch/reconcile-backend/internal/application/engine"
	"github.com/ledgermatch/reconcile-backend/internal/application/review"
	"github.com/ledgermatch/reconcile-backend/internal/domain/consistency"
	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/domain/scorer"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/config"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/storage"
	"github.com/ledgermatch/reconcile-backend/internal/ledger"
)

var apiDate = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*api.Server, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := engine.New(repo, config.EngineConfig{
		Workers:        2,
		FeeAccountCode: "bank_fees",
		Rules:          scorer.DefaultRules(),
	}, consistency.DefaultConfig(), logger)
	rev := review.NewService(repo, scorer.DefaultRules(), "bank_fees", logger)
	server := api.NewServer(api.DefaultConfig(), repo, eng, rev, logger)
	return server, repo
}

func doJSON(t *testing.T, server *api.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

// seedPendingMatch wires one transaction, one equal-amount entry, and a
// match in the given status so review endpoints have something to act on.
func seedPendingMatch(t *testing.T, repo *storage.MockRepository, id string, score int, status model.MatchStatus) {
	t.Helper()
	ctx := context.Background()

	txn := model.AtomicTransaction{
		ID:          "txn-" + id,
		UserID:      "u1",
		TxnDate:     apiDate,
		Amount:      decimal.RequireFromString("100.00"),
		Direction:   model.DirectionOut,
		Description: "VENDOR " + id,
		Currency:    "USD",
		DedupHash:   "hash-" + id,
	}
	_, _, err := repo.UpsertTransaction(ctx, txn)
	require.NoError(t, err)

	entryID := repo.AddEntry(model.JournalEntry{
		UserID:      "u1",
		EntryDate:   apiDate,
		Amount:      decimal.RequireFromString("100.00"),
		Direction:   model.DirectionOut,
		AccountCode: "6000",
		AccountType: model.AccountExpense,
		Memo:        "vendor " + id,
		Currency:    "USD",
	})

	match := &model.ReconciliationMatch{
		ID:            id,
		UserID:        "u1",
		TxnIDs:        []string{txn.ID},
		EntryIDs:      []int64{entryID},
		Score:         score,
		Type:          model.MatchSingle,
		Status:        status,
		RuleVersionID: "rv-1",
	}
	require.NoError(t, repo.CreateMatch(ctx, match))
}

func TestServer_HealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.HealthResponse
	err := json.NewDecoder(rec.Body).Decode(&response)
	require.NoError(t, err)
	assert.Equal(t, "ok", response.Status)
}

func TestServer_IngestEndpoint(t *testing.T) {
	t.Run("creates transactions and counts replays as duplicates", func(t *testing.T) {
		server, _ := newTestServer(t)

		payload := dto.IngestRequest{
			UserID: "u1",
			Transactions: []dto.TransactionPayload{
				{Date: "2024-06-03", Amount: "15.99", Direction: "out", Description: "NETFLIX.COM", SourceRef: "stmt-june"},
				{Date: "2024-06-04", Amount: "89.99", Direction: "out", Description: "GROCERY OUTLET"},
			},
		}

		rec := doJSON(t, server, http.MethodPost, "/api/transactions", payload)
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.IngestResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, 2, response.Created)
		assert.Equal(t, 0, response.Duplicates)
		assert.Len(t, response.IDs, 2)

		// Re-sending the same batch collapses onto the existing rows.
		rec = doJSON(t, server, http.MethodPost, "/api/transactions", payload)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, 0, response.Created)
		assert.Equal(t, 2, response.Duplicates)
	})

	t.Run("defaults currency to USD", func(t *testing.T) {
		server, repo := newTestServer(t)

		rec := doJSON(t, server, http.MethodPost, "/api/transactions", dto.IngestRequest{
			UserID: "u1",
			Transactions: []dto.TransactionPayload{
				{Date: "2024-06-03", Amount: "10.00", Direction: "in", Description: "REFUND"},
			},
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.IngestResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		require.Len(t, response.IDs, 1)

		stored, err := repo.GetTransaction(context.Background(), response.IDs[0])
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "USD", stored.Currency)
	})

	t.Run("accepts RFC3339 dates", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := doJSON(t, server, http.MethodPost, "/api/transactions", dto.IngestRequest{
			UserID: "u1",
			Transactions: []dto.TransactionPayload{
				{Date: "2024-06-03T14:30:00Z", Amount: "10.00", Direction: "out", Description: "COFFEE"},
			},
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("validation failures return 400", func(t *testing.T) {
		server, _ := newTestServer(t)

		valid := dto.TransactionPayload{Date: "2024-06-03", Amount: "10.00", Direction: "out", Description: "COFFEE"}

		cases := []struct {
			name string
			req  dto.IngestRequest
		}{
			{"missing user_id", dto.IngestRequest{Transactions: []dto.TransactionPayload{valid}}},
			{"empty batch", dto.IngestRequest{UserID: "u1"}},
			{"bad date", dto.IngestRequest{UserID: "u1", Transactions: []dto.TransactionPayload{{Date: "06/03/2024", Amount: "10.00", Direction: "out", Description: "COFFEE"}}}},
			{"bad amount", dto.IngestRequest{UserID: "u1", Transactions: []dto.TransactionPayload{{Date: "2024-06-03", Amount: "ten", Direction: "out", Description: "COFFEE"}}}},
			{"negative amount", dto.IngestRequest{UserID: "u1", Transactions: []dto.TransactionPayload{{Date: "2024-06-03", Amount: "-10.00", Direction: "out", Description: "COFFEE"}}}},
			{"bad direction", dto.IngestRequest{UserID: "u1", Transactions: []dto.TransactionPayload{{Date: "2024-06-03", Amount: "10.00", Direction: "sideways", Description: "COFFEE"}}}},
			{"missing description", dto.IngestRequest{UserID: "u1", Transactions: []dto.TransactionPayload{{Date: "2024-06-03", Amount: "10.00", Direction: "out"}}}},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				rec := doJSON(t, server, http.MethodPost, "/api/transactions", tc.req)
				assert.Equal(t, http.StatusBadRequest, rec.Code)

				var apiErr dto.APIError
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
				assert.Equal(t, dto.ErrCodeValidation, apiErr.Code)
			})
		}
	})

	t.Run("malformed JSON returns 400", func(t *testing.T) {
		server, _ := newTestServer(t)

		req := httptest.NewRequest(http.MethodPost, "/api/transactions", bytes.NewReader([]byte("{not json")))
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_ReviewEndpoints(t *testing.T) {
	t.Run("GET /api/review lists pending matches", func(t *testing.T) {
		server, repo := newTestServer(t)
		seedPendingMatch(t, repo, "m1", 72, model.MatchPendingReview)
		seedPendingMatch(t, repo, "m2", 95, model.MatchAutoAccepted)

		rec := doJSON(t, server, http.MethodGet, "/api/review?user_id=u1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var page storage.MatchPage
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
		require.Equal(t, 1, page.TotalCount)
		assert.Equal(t, "m1", page.Matches[0].ID)
	})

	t.Run("accept posts the match", func(t *testing.T) {
		server, repo := newTestServer(t)
		seedPendingMatch(t, repo, "m1", 72, model.MatchPendingReview)

		rec := doJSON(t, server, http.MethodPost, "/api/review/m1/accept", dto.DecisionRequest{Actor: "reviewer@firm"})
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.MatchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, model.MatchAccepted, response.Match.Status)
		assert.True(t, repo.PostCalled)
	})

	t.Run("accept without actor returns 400", func(t *testing.T) {
		server, repo := newTestServer(t)
		seedPendingMatch(t, repo, "m1", 72, model.MatchPendingReview)

		rec := doJSON(t, server, http.MethodPost, "/api/review/m1/accept", dto.DecisionRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, repo.PostCalled)
	})

	t.Run("accept of missing match returns 404", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := doJSON(t, server, http.MethodPost, "/api/review/ghost/accept", dto.DecisionRequest{Actor: "reviewer"})
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var apiErr dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
		assert.Equal(t, dto.ErrCodeNotFound, apiErr.Code)
	})

	t.Run("ledger rejection returns 422 and keeps the match pending", func(t *testing.T) {
		server, repo := newTestServer(t)
		seedPendingMatch(t, repo, "m1", 72, model.MatchPendingReview)
		repo.PostErr = &ledger.RejectionError{MatchID: "m1", Reason: "entry already claimed"}

		rec := doJSON(t, server, http.MethodPost, "/api/review/m1/accept", dto.DecisionRequest{Actor: "reviewer"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var apiErr dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
		assert.Equal(t, dto.ErrCodeLedgerRejected, apiErr.Code)

		match, err := repo.GetMatch(context.Background(), "m1")
		require.NoError(t, err)
		assert.Equal(t, model.MatchPendingReview, match.Status)
	})

	t.Run("reject is terminal", func(t *testing.T) {
		server, repo := newTestServer(t)
		seedPendingMatch(t, repo, "m1", 72, model.MatchPendingReview)

		rec := doJSON(t, server, http.MethodPost, "/api/review/m1/reject", dto.RejectRequest{Actor: "reviewer", Reason: "wrong vendor"})
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.MatchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, model.MatchRejected, response.Match.Status)
		assert.False(t, repo.PostCalled)
	})
}

func TestServer_BatchAcceptEndpoint(t *testing.T) {
	t.Run("applies every member", func(t *testing.T) {
		server, repo := newTestServer(t)
		seedPendingMatch(t, repo, "m1", 82, model.MatchPendingReview)
		seedPendingMatch(t, repo, "m2", 90, model.MatchPendingReview)

		rec := doJSON(t, server, http.MethodPost, "/api/review/batch-accept", dto.BatchAcceptRequest{
			MatchIDs: []string{"m1", "m2"},
			Actor:    "reviewer",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.BatchAcceptResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, 2, response.Count)
		assert.ElementsMatch(t, []string{"m1", "m2"}, response.Accepted)
	})

	t.Run("safety violations return 409 with per-member reasons", func(t *testing.T) {
		server, repo := newTestServer(t)
		seedPendingMatch(t, repo, "m-ok", 90, model.MatchPendingReview)
		seedPendingMatch(t, repo, "m-low", 65, model.MatchPendingReview)

		rec := doJSON(t, server, http.MethodPost, "/api/review/batch-accept", dto.BatchAcceptRequest{
			MatchIDs: []string{"m-ok", "m-low"},
			Actor:    "reviewer",
		})
		require.Equal(t, http.StatusConflict, rec.Code)

		var apiErr dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
		assert.Equal(t, dto.ErrCodeBatchBlocked, apiErr.Code)

		details, err := json.Marshal(apiErr.Details)
		require.NoError(t, err)
		assert.Contains(t, string(details), "m-low")
		assert.Contains(t, string(details), "below batch floor")

		// Nothing was applied.
		match, gerr := repo.GetMatch(context.Background(), "m-ok")
		require.NoError(t, gerr)
		assert.Equal(t, model.MatchPendingReview, match.Status)
	})

	t.Run("empty match_ids returns 400", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := doJSON(t, server, http.MethodPost, "/api/review/batch-accept", dto.BatchAcceptRequest{Actor: "reviewer"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_MatchesEndpoints(t *testing.T) {
	t.Run("GET /api/matches/:id returns match with audit", func(t *testing.T) {
		server, repo := newTestServer(t)
		seedPendingMatch(t, repo, "m1", 72, model.MatchPendingReview)

		rec := doJSON(t, server, http.MethodGet, "/api/matches/m1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.MatchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, "m1", response.Match.ID)
		require.NotEmpty(t, response.Audit)
		assert.Equal(t, model.MatchPendingReview, response.Audit[0].ToStatus)
	})

	t.Run("GET /api/matches/:id returns 404 for missing match", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := doJSON(t, server, http.MethodGet, "/api/matches/ghost", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unmatch reverses an accepted match", func(t *testing.T) {
		server, repo := newTestServer(t)
		seedPendingMatch(t, repo, "m1", 72, model.MatchPendingReview)

		rec := doJSON(t, server, http.MethodPost, "/api/review/m1/accept", dto.DecisionRequest{Actor: "reviewer"})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, server, http.MethodPost, "/api/matches/m1/unmatch", dto.RejectRequest{Actor: "reviewer", Reason: "posted to wrong account"})
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.MatchResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, model.MatchPendingReview, response.Match.Status)
		assert.True(t, repo.UnpostCalled)
	})

	t.Run("unmatch of a pending match returns 409", func(t *testing.T) {
		server, repo := newTestServer(t)
		seedPendingMatch(t, repo, "m1", 72, model.MatchPendingReview)

		rec := doJSON(t, server, http.MethodPost, "/api/matches/m1/unmatch", dto.RejectRequest{Actor: "reviewer", Reason: "nope"})
		assert.Equal(t, http.StatusConflict, rec.Code)

		var apiErr dto.APIError
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
		assert.Equal(t, dto.ErrCodeInvalidState, apiErr.Code)
		assert.False(t, repo.UnpostCalled)
	})
}

func TestServer_ChecksEndpoints(t *testing.T) {
	seedCheck := func(t *testing.T, repo *storage.MockRepository) model.ConsistencyCheck {
		t.Helper()
		check, created, err := repo.SaveFinding(context.Background(), "u1", consistency.Finding{
			Type:     model.CheckDuplicate,
			TxnIDs:   []string{"t1", "t2"},
			Severity: model.SeverityHigh,
			Details:  map[string]any{"descriptions": []string{"ACME STORE #1042", "ACME STORE 1042"}},
		})
		require.NoError(t, err)
		require.True(t, created)
		return check
	}

	t.Run("GET /api/checks requires user_id", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := doJSON(t, server, http.MethodGet, "/api/checks", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("GET /api/checks lists a user's checks", func(t *testing.T) {
		server, repo := newTestServer(t)
		check := seedCheck(t, repo)

		rec := doJSON(t, server, http.MethodGet, "/api/checks?user_id=u1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.CheckListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		require.Equal(t, 1, response.Count)
		assert.Equal(t, check.ID, response.Checks[0].ID)
		assert.Equal(t, model.CheckPending, response.Checks[0].Status)
	})

	t.Run("resolve moves a check out of pending", func(t *testing.T) {
		server, repo := newTestServer(t)
		check := seedCheck(t, repo)

		rec := doJSON(t, server, http.MethodPost, "/api/checks/"+check.ID+"/resolve", dto.ResolveCheckRequest{
			Status: "approved",
			Actor:  "reviewer",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var resolved model.ConsistencyCheck
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resolved))
		assert.Equal(t, model.CheckApproved, resolved.Status)
	})

	t.Run("resolve rejects unknown statuses", func(t *testing.T) {
		server, repo := newTestServer(t)
		check := seedCheck(t, repo)

		rec := doJSON(t, server, http.MethodPost, "/api/checks/"+check.ID+"/resolve", dto.ResolveCheckRequest{
			Status: "pending",
			Actor:  "reviewer",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("resolve of missing check returns 404", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := doJSON(t, server, http.MethodPost, "/api/checks/ghost/resolve", dto.ResolveCheckRequest{
			Status: "approved",
			Actor:  "reviewer",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_RunsEndpoints(t *testing.T) {
	t.Run("POST /api/runs executes a matching run", func(t *testing.T) {
		server, repo := newTestServer(t)

		_, _, err := repo.UpsertTransaction(context.Background(), model.AtomicTransaction{
			ID:          "t1",
			UserID:      "u1",
			TxnDate:     apiDate,
			Amount:      decimal.RequireFromString("15.99"),
			Direction:   model.DirectionOut,
			Description: "NETFLIX.COM",
			Currency:    "USD",
			DedupHash:   "hash-t1",
		})
		require.NoError(t, err)
		repo.AddEntry(model.JournalEntry{
			UserID:      "u1",
			EntryDate:   apiDate,
			Amount:      decimal.RequireFromString("15.99"),
			Direction:   model.DirectionOut,
			AccountCode: "6000",
			AccountType: model.AccountExpense,
			Memo:        "netflix",
			Currency:    "USD",
		})

		rec := doJSON(t, server, http.MethodPost, "/api/runs", dto.RunRequest{UserID: "u1"})
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, 1, response.TxnsSeen)
		assert.Equal(t, 1, response.AutoAccepted)
		assert.NotEmpty(t, response.RuleVersionID)

		rec = doJSON(t, server, http.MethodGet, "/api/runs?user_id=u1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var list dto.RunListResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
		require.Equal(t, 1, list.Count)
		assert.Equal(t, response.RunID, list.Runs[0].ID)
	})

	t.Run("POST /api/runs replays a stored rule version", func(t *testing.T) {
		server, repo := newTestServer(t)

		strict := scorer.DefaultRules()
		strict.AutoAcceptFloor = 99
		version, err := repo.EnsureRuleVersion(context.Background(), strict)
		require.NoError(t, err)

		rec := doJSON(t, server, http.MethodPost, "/api/runs", dto.RunRequest{
			UserID:        "u1",
			RuleVersionID: version.ID,
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var response dto.RunResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
		assert.Equal(t, version.ID, response.RuleVersionID)
	})

	t.Run("POST /api/runs rejects unknown rule versions", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := doJSON(t, server, http.MethodPost, "/api/runs", dto.RunRequest{
			UserID:        "u1",
			RuleVersionID: "rv-ghost",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("POST /api/runs requires user_id", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := doJSON(t, server, http.MethodPost, "/api/runs", dto.RunRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("GET /api/runs/:id rejects non-numeric ids", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := doJSON(t, server, http.MethodGet, "/api/runs/abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("GET /api/runs/:id returns 404 for missing run", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := doJSON(t, server, http.MethodGet, "/api/runs/999", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_StatsEndpoint(t *testing.T) {
	t.Run("requires user_id", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := doJSON(t, server, http.MethodGet, "/api/stats", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("returns aggregate stats", func(t *testing.T) {
		server, repo := newTestServer(t)
		seedPendingMatch(t, repo, "m1", 72, model.MatchPendingReview)

		rec := doJSON(t, server, http.MethodGet, "/api/stats?user_id=u1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var stats storage.Stats
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
		assert.Equal(t, 1, stats.TotalTransactions)
		assert.Equal(t, 1, stats.PendingReview)
	})
}

package review

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgermatch/reconcile-backend/internal/domain/consistency"
	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/domain/scorer"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/storage"
	"github.com/ledgermatch/reconcile-backend/internal/ledger"
)

var reviewDate = time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

func newTestService(repo *storage.MockRepository) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, scorer.DefaultRules(), "bank_fees", logger)
}

// seedMatch wires one transaction, one equal-amount entry, and a match
// in the given status.
func seedMatch(t *testing.T, repo *storage.MockRepository, id string, score int, status model.MatchStatus, amount string) *model.ReconciliationMatch {
	t.Helper()
	ctx := context.Background()

	txn := model.AtomicTransaction{
		ID:          "txn-" + id,
		UserID:      "u1",
		TxnDate:     reviewDate,
		Amount:      decimal.RequireFromString(amount),
		Direction:   model.DirectionOut,
		Description: "VENDOR " + id,
		Currency:    "USD",
		DedupHash:   "hash-" + id,
	}
	_, _, err := repo.UpsertTransaction(ctx, txn)
	require.NoError(t, err)

	entryID := repo.AddEntry(model.JournalEntry{
		UserID:      "u1",
		EntryDate:   reviewDate,
		Amount:      decimal.RequireFromString(amount),
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
	return match
}

func TestAccept_PostsToLedger(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedMatch(t, repo, "m1", 75, model.MatchPendingReview, "100.00")

	match, err := svc.Accept(ctx, "m1", "reviewer@firm")
	require.NoError(t, err)
	assert.Equal(t, model.MatchAccepted, match.Status)

	require.NotNil(t, repo.LastPostRequest)
	assert.Equal(t, "m1", repo.LastPostRequest.MatchID)
	assert.True(t, repo.LastPostRequest.ExpectedTotal.Equal(decimal.RequireFromString("100.00")))

	audits, err := repo.ListAudit(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, "reviewer@firm", audits[1].Actor)
	assert.Equal(t, model.MatchAccepted, audits[1].ToStatus)
}

func TestAccept_RevertsOnLedgerRejection(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedMatch(t, repo, "m1", 75, model.MatchPendingReview, "100.00")
	repo.PostErr = &ledger.RejectionError{MatchID: "m1", Reason: "entry already claimed"}

	_, err := svc.Accept(ctx, "m1", "reviewer")
	var rejection *ledger.RejectionError
	require.ErrorAs(t, err, &rejection)

	// The match is back in the queue, with the revert on record.
	match, err := repo.GetMatch(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, model.MatchPendingReview, match.Status)

	audits, err := repo.ListAudit(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, audits, 3)
	assert.Equal(t, "system", audits[2].Actor)
	assert.Contains(t, audits[2].Reason, "already claimed")
}

func TestAccept_InvalidStates(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedMatch(t, repo, "m-rejected", 75, model.MatchPendingReview, "50.00")
	_, err := svc.Reject(ctx, "m-rejected", "reviewer", "bad pairing")
	require.NoError(t, err)

	_, err = svc.Accept(ctx, "m-rejected", "reviewer")
	var invalid *storage.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, model.MatchRejected, invalid.From)

	_, err = svc.Accept(ctx, "no-such-match", "reviewer")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReject_Terminal(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedMatch(t, repo, "m1", 70, model.MatchPendingReview, "100.00")

	match, err := svc.Reject(ctx, "m1", "reviewer", "wrong vendor")
	require.NoError(t, err)
	assert.Equal(t, model.MatchRejected, match.Status)
	assert.False(t, repo.PostCalled)

	// The transaction is free for the next run.
	unmatched, err := repo.ListUnmatchedTransactions(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, unmatched, 1)
	assert.Equal(t, "txn-m1", unmatched[0].ID)
}

func TestUnmatch_ReleasesAcceptedMatch(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedMatch(t, repo, "m1", 90, model.MatchPendingReview, "100.00")
	_, err := svc.Accept(ctx, "m1", "reviewer")
	require.NoError(t, err)

	match, err := svc.Unmatch(ctx, "m1", "reviewer", "matched the wrong invoice")
	require.NoError(t, err)
	assert.Equal(t, model.MatchPendingReview, match.Status)
	assert.Equal(t, []string{"m1"}, repo.UnpostedMatchIDs)

	audits, err := repo.ListAudit(ctx, "m1")
	require.NoError(t, err)
	last := audits[len(audits)-1]
	assert.Equal(t, model.MatchPendingReview, last.ToStatus)
	assert.Equal(t, "matched the wrong invoice", last.Reason)
}

func TestUnmatch_OnlyAcceptedStates(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedMatch(t, repo, "m-pending", 70, model.MatchPendingReview, "100.00")

	_, err := svc.Unmatch(ctx, "m-pending", "reviewer", "")
	var invalid *storage.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.False(t, repo.UnpostCalled)

	_, err = svc.Unmatch(ctx, "ghost", "reviewer", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBatchAccept_AppliesAllMembers(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedMatch(t, repo, "m1", 82, model.MatchPendingReview, "100.00")
	seedMatch(t, repo, "m2", 91, model.MatchPendingReview, "250.00")

	accepted, err := svc.BatchAccept(ctx, []string{"m1", "m2"}, "reviewer")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, accepted)

	for _, id := range accepted {
		match, err := repo.GetMatch(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.MatchAccepted, match.Status)
	}
}

func TestBatchAccept_RefusedWithPerMemberViolations(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedMatch(t, repo, "m-ok", 85, model.MatchPendingReview, "100.00")
	seedMatch(t, repo, "m-low", 72, model.MatchPendingReview, "50.00")
	accepted := seedMatch(t, repo, "m-done", 95, model.MatchPendingReview, "25.00")
	_, err := repo.TransitionMatch(ctx, accepted.ID, model.MatchAccepted, "earlier", "")
	require.NoError(t, err)

	_, err = svc.BatchAccept(ctx, []string{"m-ok", "m-low", "m-done", "m-ghost"}, "reviewer")

	var batchErr *BatchSafetyError
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, batchErr.Violations, 3)

	reasons := map[string]string{}
	for _, v := range batchErr.Violations {
		reasons[v.MatchID] = v.Reason
	}
	assert.Contains(t, reasons["m-low"], "below batch floor")
	assert.Contains(t, reasons["m-done"], "not pending_review")
	assert.Contains(t, reasons["m-ghost"], "not found")

	// Nothing was applied, not even the clean member.
	match, err := repo.GetMatch(ctx, "m-ok")
	require.NoError(t, err)
	assert.Equal(t, model.MatchPendingReview, match.Status)
	assert.False(t, repo.PostCalled)
}

func TestBatchAccept_BlockedByPendingConsistencyCheck(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedMatch(t, repo, "m1", 90, model.MatchPendingReview, "100.00")
	seedMatch(t, repo, "m2", 90, model.MatchPendingReview, "200.00")

	check, _, err := repo.SaveFinding(ctx, "u1", consistency.Finding{
		Type:     model.CheckDuplicate,
		TxnIDs:   []string{"txn-m2", "txn-other"},
		Severity: model.SeverityHigh,
		Details:  map[string]any{"amount": "200.00"},
	})
	require.NoError(t, err)

	_, err = svc.BatchAccept(ctx, []string{"m1", "m2"}, "reviewer")

	var batchErr *BatchSafetyError
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, batchErr.Violations, 1)
	assert.Equal(t, "m2", batchErr.Violations[0].MatchID)
	assert.Contains(t, batchErr.Violations[0].Reason, "pending consistency checks")
	assert.False(t, repo.PostCalled)

	// Resolving the check unblocks the batch.
	_, err = repo.ResolveCheck(ctx, check.ID, model.CheckApproved)
	require.NoError(t, err)

	accepted, err := svc.BatchAccept(ctx, []string{"m1", "m2"}, "reviewer")
	require.NoError(t, err)
	assert.Len(t, accepted, 2)
}

func TestBatchAccept_AtomicOnMemberPostingFailure(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	m1 := seedMatch(t, repo, "m1", 90, model.MatchPendingReview, "100.00")
	m2 := seedMatch(t, repo, "m2", 90, model.MatchPendingReview, "200.00")

	// Claim m2's entry out from under the batch so its posting fails
	// after m1 would have applied.
	require.NoError(t, repo.Post(ctx, ledger.PostingRequest{
		MatchID:       "raider",
		UserID:        "u1",
		EntryIDs:      m2.EntryIDs,
		Currency:      "USD",
		ExpectedTotal: decimal.RequireFromString("200.00"),
	}))

	_, err := svc.BatchAccept(ctx, []string{"m1", "m2"}, "reviewer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "m2")

	var rejection *ledger.RejectionError
	assert.ErrorAs(t, err, &rejection)

	// The whole batch rolled back in one transaction: both matches are
	// still pending and m1's entry never got claimed.
	for _, id := range []string{"m1", "m2"} {
		match, err := repo.GetMatch(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.MatchPendingReview, match.Status)

		audits, err := repo.ListAudit(ctx, id)
		require.NoError(t, err)
		assert.Len(t, audits, 1, "only the creation audit row survives for %s", id)
	}

	entries, err := repo.FindCandidates(ctx, ledger.Query{
		UserID:    "u1",
		DateFrom:  reviewDate.AddDate(0, 0, -1),
		DateTo:    reviewDate.AddDate(0, 0, 1),
		MinAmount: decimal.RequireFromString("100.00"),
		MaxAmount: decimal.RequireFromString("100.00"),
		Direction: model.DirectionOut,
		Currency:  "USD",
		Unclaimed: true,
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, m1.EntryIDs[0], entries[0].ID)
}

func TestBatchAccept_EmptyBatch(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)

	_, err := svc.BatchAccept(context.Background(), nil, "reviewer")
	require.Error(t, err)
}

func TestPostFeeDirection(t *testing.T) {
	neg := decimal.RequireFromString("-0.50")
	pos := decimal.RequireFromString("0.75")

	assert.Equal(t, model.DirectionOut, postFeeDirection(nil, model.DirectionOut))
	assert.Equal(t, model.DirectionOut, postFeeDirection(&pos, model.DirectionOut))
	assert.Equal(t, model.DirectionIn, postFeeDirection(&neg, model.DirectionOut))
	assert.Equal(t, model.DirectionOut, postFeeDirection(&neg, model.DirectionIn))
}

func TestListPending_DelegatesFilters(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedMatch(t, repo, "m1", 70, model.MatchPendingReview, "100.00")
	seedMatch(t, repo, "m2", 88, model.MatchPendingReview, "200.00")

	page, err := svc.ListPending(ctx, storage.MatchFilters{UserID: "u1", MinScore: 80})
	require.NoError(t, err)
	require.Len(t, page.Matches, 1)
	assert.Equal(t, "m2", page.Matches[0].ID)
}

func TestAccept_RevertsOnUnknownLedgerError(t *testing.T) {
	repo := storage.NewMockRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	seedMatch(t, repo, "m1", 75, model.MatchPendingReview, "100.00")
	repo.PostErr = errors.New("connection reset")

	_, err := svc.Accept(ctx, "m1", "reviewer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	// The match never stays accepted without its postings: even an
	// infrastructure failure puts it back in the queue for a retry.
	match, getErr := repo.GetMatch(ctx, "m1")
	require.NoError(t, getErr)
	assert.Equal(t, model.MatchPendingReview, match.Status)

	audits, auditErr := repo.ListAudit(ctx, "m1")
	require.NoError(t, auditErr)
	last := audits[len(audits)-1]
	assert.Equal(t, "system", last.Actor)
	assert.Contains(t, last.Reason, "connection reset")
}

// Package review is the human side of the match lifecycle: the pending
// queue, accept/reject decisions, batch acceptance with safety gating,
// and unmatching of previously accepted matches.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/domain/scorer"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/storage"
	"github.com/ledgermatch/reconcile-backend/internal/ledger"
)

// Service coordinates review decisions between the match store and the
// ledger.
type Service struct {
	repo       storage.Repository
	rules      scorer.Rules
	feeAccount string
	logger     *slog.Logger
}

// NewService creates a review service
func NewService(repo storage.Repository, rules scorer.Rules, feeAccount string, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		rules:      rules,
		feeAccount: feeAccount,
		logger:     logger,
	}
}

// ListPending returns the paginated review queue.
func (s *Service) ListPending(ctx context.Context, filters storage.MatchFilters) (*storage.MatchPage, error) {
	return s.repo.ListMatches(ctx, filters)
}

// Accept moves a pending match to accepted and posts it to the ledger.
// Any posting failure reverts the match to pending review so an
// accepted match always has its postings; a *ledger.RejectionError is
// surfaced so the reviewer sees the reason.
func (s *Service) Accept(ctx context.Context, matchID, actor string) (*model.ReconciliationMatch, error) {
	match, err := s.repo.TransitionMatch(ctx, matchID, model.MatchAccepted, actor, "")
	if err != nil {
		return nil, err
	}

	if err := s.post(ctx, match); err != nil {
		reason := err.Error()
		var rejection *ledger.RejectionError
		if errors.As(err, &rejection) {
			reason = rejection.Reason
			s.logger.Warn("ledger rejected accept, reverting",
				"match_id", matchID,
				"reason", reason,
			)
		} else {
			s.logger.Error("ledger posting failed, reverting accept",
				"match_id", matchID,
				"error", err,
			)
		}
		if _, terr := s.repo.TransitionMatch(ctx, matchID, model.MatchPendingReview, "system", reason); terr != nil {
			return nil, fmt.Errorf("reverting failed accept: %w", terr)
		}
		return nil, err
	}

	s.logger.Info("match accepted", "match_id", matchID, "actor", actor)
	return match, nil
}

// Reject moves a pending match to rejected, releasing its transactions
// for future runs. Rejected is terminal.
func (s *Service) Reject(ctx context.Context, matchID, actor, reason string) (*model.ReconciliationMatch, error) {
	match, err := s.repo.TransitionMatch(ctx, matchID, model.MatchRejected, actor, reason)
	if err != nil {
		return nil, err
	}
	s.logger.Info("match rejected", "match_id", matchID, "actor", actor, "reason", reason)
	return match, nil
}

// Unmatch reverses an accepted or auto-accepted match: ledger postings
// are released (auxiliary fee entries voided) and the match returns to
// pending review with an audit row naming the actor and reason.
func (s *Service) Unmatch(ctx context.Context, matchID, actor, reason string) (*model.ReconciliationMatch, error) {
	match, err := s.repo.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, fmt.Errorf("match %s: %w", matchID, storage.ErrNotFound)
	}
	if match.Status != model.MatchAccepted && match.Status != model.MatchAutoAccepted {
		return nil, &storage.InvalidTransitionError{
			MatchID: matchID,
			From:    match.Status,
			To:      model.MatchPendingReview,
		}
	}

	if err := s.repo.Unpost(ctx, matchID); err != nil {
		return nil, fmt.Errorf("releasing ledger postings: %w", err)
	}

	match, err = s.repo.TransitionMatch(ctx, matchID, model.MatchPendingReview, actor, reason)
	if err != nil {
		return nil, err
	}

	s.logger.Info("match unmatched", "match_id", matchID, "actor", actor, "reason", reason)
	return match, nil
}

// BatchAccept accepts a set of pending matches as one unit. The whole
// batch is refused, with per-member reasons, when any member is not
// pending review, scores below the batch floor, or references a
// transaction with a pending consistency check. Members that pass the
// gate are accepted and posted in one storage transaction, so the
// batch lands whole or not at all.
func (s *Service) BatchAccept(ctx context.Context, matchIDs []string, actor string) ([]string, error) {
	if len(matchIDs) == 0 {
		return nil, errors.New("empty batch")
	}

	matches := make([]*model.ReconciliationMatch, 0, len(matchIDs))
	var violations []Violation
	var allTxnIDs []string

	for _, id := range matchIDs {
		match, err := s.repo.GetMatch(ctx, id)
		if err != nil {
			return nil, err
		}
		if match == nil {
			violations = append(violations, Violation{MatchID: id, Reason: "not found"})
			continue
		}
		if match.Status != model.MatchPendingReview {
			violations = append(violations, Violation{MatchID: id, Reason: fmt.Sprintf("status is %s, not pending_review", match.Status)})
			continue
		}
		if match.Score < s.rules.BatchAcceptFloor {
			violations = append(violations, Violation{MatchID: id, Reason: fmt.Sprintf("score %d below batch floor %d", match.Score, s.rules.BatchAcceptFloor)})
			continue
		}
		matches = append(matches, match)
		allTxnIDs = append(allTxnIDs, match.TxnIDs...)
	}

	if len(violations) == 0 {
		pending, err := s.repo.PendingCheckIDsForTxns(ctx, allTxnIDs)
		if err != nil {
			return nil, err
		}
		for _, match := range matches {
			for _, txnID := range match.TxnIDs {
				if checkIDs := pending[txnID]; len(checkIDs) > 0 {
					violations = append(violations, Violation{
						MatchID: match.ID,
						Reason:  fmt.Sprintf("transaction %s has pending consistency checks: %v", txnID, checkIDs),
					})
					break
				}
			}
		}
	}

	if len(violations) > 0 {
		return nil, &BatchSafetyError{Violations: violations}
	}

	postings := make([]storage.BatchPosting, 0, len(matches))
	accepted := make([]string, 0, len(matches))
	for _, match := range matches {
		req, err := s.buildPosting(ctx, match)
		if err != nil {
			return nil, fmt.Errorf("batch member %s: %w", match.ID, err)
		}
		postings = append(postings, storage.BatchPosting{MatchID: match.ID, Actor: actor, Posting: req})
		accepted = append(accepted, match.ID)
	}

	if err := s.repo.AcceptBatch(ctx, postings); err != nil {
		s.logger.Warn("batch accept refused", "actor", actor, "error", err)
		return nil, err
	}

	s.logger.Info("batch accepted", "count", len(accepted), "actor", actor)
	return accepted, nil
}

// post claims the match's entries and creates any fee entry. The
// expected total is the bank-side sum of the matched transactions.
func (s *Service) post(ctx context.Context, match *model.ReconciliationMatch) error {
	req, err := s.buildPosting(ctx, match)
	if err != nil {
		return err
	}
	return s.repo.Post(ctx, req)
}

// buildPosting assembles the ledger posting for a match from its
// bank-side transactions.
func (s *Service) buildPosting(ctx context.Context, match *model.ReconciliationMatch) (ledger.PostingRequest, error) {
	total := decimal.Zero
	var currency string
	var direction model.Direction
	feeDate := match.CreatedAt

	for _, txnID := range match.TxnIDs {
		txn, err := s.repo.GetTransaction(ctx, txnID)
		if err != nil {
			return ledger.PostingRequest{}, err
		}
		if txn == nil {
			return ledger.PostingRequest{}, fmt.Errorf("transaction %s missing for match %s", txnID, match.ID)
		}
		total = total.Add(txn.Amount)
		currency = txn.Currency
		direction = txn.Direction
		feeDate = txn.TxnDate
	}

	return ledger.PostingRequest{
		MatchID:        match.ID,
		UserID:         match.UserID,
		EntryIDs:       match.EntryIDs,
		Currency:       currency,
		Memo:           fmt.Sprintf("reconciliation %s", match.ID),
		ExpectedTotal:  total,
		FeeAdjustment:  match.FeeAdjustment,
		FeeAccountCode: s.feeAccount,
		FeeDate:        feeDate,
		FeeDirection:   postFeeDirection(match.FeeAdjustment, direction),
	}, nil
}

func postFeeDirection(fee *decimal.Decimal, txnDirection model.Direction) model.Direction {
	if fee == nil || fee.Sign() >= 0 {
		return txnDirection
	}
	if txnDirection == model.DirectionIn {
		return model.DirectionOut
	}
	return model.DirectionIn
}

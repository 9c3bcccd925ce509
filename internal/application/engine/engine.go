// Package engine orchestrates matching runs: candidate discovery,
// scoring, threshold routing, and ledger posting for auto-accepted
// matches. Scoring is pure and runs in a worker pool; persistence is
// serialized through the storage layer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/domain/consistency"
	"github.com/ledgermatch/reconcile-backend/internal/domain/matcher"
	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/domain/scorer"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/config"
	"github.com/ledgermatch/reconcile-backend/internal/infrastructure/storage"
	"github.com/ledgermatch/reconcile-backend/internal/ledger"
)

// Options holds run configuration
type Options struct {
	UserID string
	DryRun bool

	// Rules overrides the engine default scoring configuration for
	// this run only; nil uses the default.
	Rules *scorer.Rules
}

// Summary holds the outcome of one matching run
type Summary struct {
	RunID         int64    `json:"run_id"`
	RuleVersionID string   `json:"rule_version_id"`
	TxnsSeen      int      `json:"txns_seen"`
	Matched       int      `json:"matched"`
	AutoAccepted  int      `json:"auto_accepted"`
	PendingReview int      `json:"pending_review"`
	Unmatched     int      `json:"unmatched"`
	Errored       int      `json:"errored"`
	NewChecks     int      `json:"new_checks"`
	Errors        []string `json:"errors,omitempty"`
}

// Engine runs the matching pipeline for one user at a time
type Engine struct {
	repo       storage.Repository
	detector   *consistency.Detector
	rules      scorer.Rules
	workers    int
	feeAccount string
	logger     *slog.Logger
}

// New creates a matching engine
func New(repo storage.Repository, cfg config.EngineConfig, detectorCfg consistency.Config, logger *slog.Logger) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		repo:       repo,
		detector:   consistency.NewDetector(detectorCfg),
		rules:      cfg.Rules,
		workers:    workers,
		feeAccount: cfg.FeeAccountCode,
		logger:     logger,
	}
}

// outcome is one transaction's result from the scoring pool.
type outcome struct {
	txn      model.AtomicTransaction
	proposal *matcher.Proposal
	err      error
}

// Run executes one matching run over the user's unmatched transactions.
// Re-running is safe: transactions held by a non-rejected match are not
// listed again, and rule versions are content-addressed, so an identical
// re-run produces no new matches.
func (e *Engine) Run(ctx context.Context, opts Options) (*Summary, error) {
	rules := e.rules
	if opts.Rules != nil {
		rules = *opts.Rules
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	version, err := e.repo.EnsureRuleVersion(ctx, rules)
	if err != nil {
		return nil, infraErr("ensure rule version", err)
	}

	runID, err := e.repo.StartRun(ctx, opts.UserID, version.ID, opts.DryRun)
	if err != nil {
		return nil, infraErr("start run", err)
	}

	summary := &Summary{RunID: runID, RuleVersionID: version.ID}

	affinity, err := e.repo.MerchantAffinity(ctx, opts.UserID)
	if err != nil {
		return nil, infraErr("load merchant affinity", err)
	}

	txns, err := e.repo.ListUnmatchedTransactions(ctx, opts.UserID)
	if err != nil {
		return nil, infraErr("list unmatched transactions", err)
	}
	summary.TxnsSeen = len(txns)

	e.logger.Info("matching run started",
		"run_id", runID,
		"user_id", opts.UserID,
		"rule_version", version.ID,
		"txns", len(txns),
		"dry_run", opts.DryRun,
	)

	m := matcher.New(rules)
	results := e.scoreAll(ctx, m, txns, affinity)

	// Routing and persistence happen serially, in input order, so that
	// concurrent runs racing for the same entries resolve the same way
	// every time.
	var leftovers []model.AtomicTransaction
	for _, res := range results {
		if res.err != nil {
			summary.Errored++
			summary.Errors = append(summary.Errors, fmt.Sprintf("txn %s: %v", res.txn.ID, res.err))
			e.logger.Error("transaction failed", "txn_id", res.txn.ID, "error", res.err)
			continue
		}
		if res.proposal == nil || res.proposal.Score < rules.ReviewFloor {
			leftovers = append(leftovers, res.txn)
			continue
		}
		e.persist(ctx, res.proposal, []string{res.txn.ID}, version.ID, rules, opts.DryRun, summary)
	}

	e.manyToOnePass(ctx, m, leftovers, affinity, version.ID, rules, opts.DryRun, summary)

	if !opts.DryRun {
		e.detect(ctx, opts.UserID, summary)
	}

	if err := e.repo.CompleteRun(ctx, runID, storage.RunCounters{
		TxnsSeen:      summary.TxnsSeen,
		Matched:       summary.Matched,
		AutoAccepted:  summary.AutoAccepted,
		PendingReview: summary.PendingReview,
		Unmatched:     summary.Unmatched,
		Errored:       summary.Errored,
	}); err != nil {
		return summary, infraErr("complete run", err)
	}

	e.logger.Info("matching run completed",
		"run_id", runID,
		"matched", summary.Matched,
		"auto_accepted", summary.AutoAccepted,
		"pending_review", summary.PendingReview,
		"unmatched", summary.Unmatched,
		"errored", summary.Errored,
	)
	return summary, nil
}

// scoreAll fans the transactions out over the worker pool. Results come
// back positionally so downstream processing stays deterministic.
func (e *Engine) scoreAll(ctx context.Context, m *matcher.Matcher, txns []model.AtomicTransaction, affinity matcher.Affinity) []outcome {
	results := make([]outcome, len(txns))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = e.scoreOne(ctx, m, txns[i], affinity)
			}
		}()
	}

	for i := range txns {
		select {
		case jobs <- i:
		case <-ctx.Done():
			results[i] = outcome{txn: txns[i], err: ctx.Err()}
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

// scoreOne finds the best proposal for a single transaction: best
// single-pair candidate first, group subset-sum only when no pair
// reaches the review floor.
func (e *Engine) scoreOne(ctx context.Context, m *matcher.Matcher, txn model.AtomicTransaction, affinity matcher.Affinity) outcome {
	res := outcome{txn: txn}
	rules := m.Rules()

	candidates, err := e.repo.FindCandidates(ctx, m.CandidateWindow(txn))
	if err != nil {
		res.err = infraErr("find candidates", err)
		return res
	}

	best := m.FindBest(txn, candidates, affinity)
	if best != nil && best.Score >= rules.ReviewFloor {
		res.proposal = best
		return res
	}

	groupCandidates, err := e.repo.FindCandidates(ctx, m.GroupWindow(txn))
	if err != nil {
		res.err = infraErr("find group candidates", err)
		return res
	}
	if group := m.FindGroup(txn, groupCandidates, affinity); group != nil && group.Score >= rules.ReviewFloor {
		res.proposal = group
		return res
	}

	res.proposal = best
	return res
}

// persist routes a proposal through the thresholds, creates the match
// row, and posts auto-accepted matches to the ledger. A ledger
// rejection demotes the match to pending review instead of failing the
// run.
func (e *Engine) persist(
	ctx context.Context,
	p *matcher.Proposal,
	txnIDs []string,
	versionID string,
	rules scorer.Rules,
	dryRun bool,
	summary *Summary,
) {
	count := len(txnIDs)
	status := model.MatchPendingReview
	if p.Score >= rules.AutoAcceptFloor {
		status = model.MatchAutoAccepted
	}

	if dryRun {
		summary.Matched += count
		if status == model.MatchAutoAccepted {
			summary.AutoAccepted += count
		} else {
			summary.PendingReview += count
		}
		return
	}

	match := &model.ReconciliationMatch{
		ID:            uuid.NewString(),
		UserID:        p.Txn.UserID,
		TxnIDs:        txnIDs,
		EntryIDs:      p.EntryIDs(),
		Score:         p.Score,
		Breakdown:     p.Breakdown,
		Type:          p.Type,
		Status:        status,
		RuleVersionID: versionID,
		FeeAdjustment: p.FeeAdjustment,
	}

	if err := e.repo.CreateMatch(ctx, match); err != nil {
		var conflict *storage.ConflictError
		if errors.As(err, &conflict) {
			// Lost the race for a transaction; first commit wins.
			e.logger.Debug("match conflict, skipping",
				"txn_id", conflict.TxnID,
				"existing_match", conflict.ExistingMatchID,
			)
			summary.Unmatched += count
			return
		}
		summary.Errored += count
		summary.Errors = append(summary.Errors, fmt.Sprintf("create match: %v", err))
		e.logger.Error("create match failed", "txn_id", p.Txn.ID, "error", err)
		return
	}

	summary.Matched += count
	if status != model.MatchAutoAccepted {
		summary.PendingReview += count
		return
	}

	err := e.repo.Post(ctx, ledger.PostingRequest{
		MatchID:        match.ID,
		UserID:         match.UserID,
		EntryIDs:       match.EntryIDs,
		Currency:       p.Txn.Currency,
		Memo:           fmt.Sprintf("reconciliation %s", match.ID),
		ExpectedTotal:  p.Txn.Amount,
		FeeAdjustment:  p.FeeAdjustment,
		FeeAccountCode: e.feeAccount,
		FeeDate:        p.Txn.TxnDate,
		FeeDirection:   feeDirection(p),
	})

	var rejection *ledger.RejectionError
	switch {
	case errors.As(err, &rejection):
		e.logger.Warn("ledger rejected auto-accept, demoting to review",
			"match_id", match.ID,
			"reason", rejection.Reason,
		)
		if _, terr := e.repo.TransitionMatch(ctx, match.ID, model.MatchPendingReview, "engine", rejection.Reason); terr != nil {
			summary.Errored += count
			summary.Errors = append(summary.Errors, fmt.Sprintf("demote match %s: %v", match.ID, terr))
			return
		}
		summary.PendingReview += count
	case err != nil:
		// Accepted must always mean posted. On an infrastructure
		// failure the match drops back to review so the posting can
		// be retried instead of being lost.
		summary.Errored += count
		summary.Errors = append(summary.Errors, fmt.Sprintf("post match %s: %v", match.ID, err))
		e.logger.Error("ledger posting failed, demoting to review", "match_id", match.ID, "error", err)
		if _, terr := e.repo.TransitionMatch(ctx, match.ID, model.MatchPendingReview, "engine", fmt.Sprintf("ledger posting failed: %v", err)); terr != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("demote match %s: %v", match.ID, terr))
		}
	default:
		summary.AutoAccepted += count
	}
}

// manyToOnePass pairs several leftover transactions against single
// ledger entries (split client payments landing as one lump entry, and
// the like). Transactions still unmatched afterwards count as
// unmatched.
func (e *Engine) manyToOnePass(
	ctx context.Context,
	m *matcher.Matcher,
	leftovers []model.AtomicTransaction,
	affinity matcher.Affinity,
	versionID string,
	rules scorer.Rules,
	dryRun bool,
	summary *Summary,
) {
	type key struct {
		direction model.Direction
		currency  string
	}
	buckets := map[key][]model.AtomicTransaction{}
	for _, txn := range leftovers {
		k := key{txn.Direction, txn.Currency}
		buckets[k] = append(buckets[k], txn)
	}

	for k, group := range buckets {
		remaining := group
		if len(remaining) >= 2 {
			for _, entry := range e.lumpCandidates(ctx, k.direction, k.currency, remaining, rules) {
				if len(remaining) < 2 {
					break
				}
				used, p := m.FindManyToOne(entry, remaining, affinity)
				if p == nil || p.Score < rules.ReviewFloor {
					continue
				}
				ids := make([]string, len(used))
				for i, txn := range used {
					ids[i] = txn.ID
				}
				e.persist(ctx, p, ids, versionID, rules, dryRun, summary)
				remaining = excludeTxns(remaining, ids)
			}
		}
		summary.Unmatched += len(remaining)
	}
}

// lumpCandidates queries unclaimed entries that could absorb a subset
// of the remaining transactions: amounts between the smallest member
// and the bucket total plus the group epsilon, dates inside the widened
// window.
func (e *Engine) lumpCandidates(
	ctx context.Context,
	direction model.Direction,
	currency string,
	txns []model.AtomicTransaction,
	rules scorer.Rules,
) []model.JournalEntry {
	total := decimal.Zero
	smallest := txns[0].Amount
	dateFrom := txns[0].TxnDate
	dateTo := txns[0].TxnDate
	for _, txn := range txns {
		total = total.Add(txn.Amount)
		if txn.Amount.LessThan(smallest) {
			smallest = txn.Amount
		}
		if txn.TxnDate.Before(dateFrom) {
			dateFrom = txn.TxnDate
		}
		if txn.TxnDate.After(dateTo) {
			dateTo = txn.TxnDate
		}
	}

	epsilon, err := decimal.NewFromString(rules.GroupEpsilon)
	if err != nil {
		epsilon = decimal.Zero
	}

	entries, err := e.repo.FindCandidates(ctx, ledger.Query{
		UserID:    txns[0].UserID,
		Direction: direction,
		Currency:  currency,
		MinAmount: smallest,
		MaxAmount: total.Add(epsilon),
		DateFrom:  dateFrom.AddDate(0, 0, -rules.MaxDateGapDays),
		DateTo:    dateTo.AddDate(0, 0, rules.MaxDateGapDays),
		Unclaimed: true,
		Limit:     100,
	})
	if err != nil {
		e.logger.Error("lump candidate query failed", "error", err)
		return nil
	}
	return entries
}

// detect runs the consistency detectors over the user's full history
// and persists new findings. Advisory only; failures never fail the run.
func (e *Engine) detect(ctx context.Context, userID string, summary *Summary) {
	txns, err := e.repo.ListTransactions(ctx, userID)
	if err != nil {
		e.logger.Warn("consistency detection skipped", "error", err)
		return
	}
	for _, finding := range e.detector.Run(txns) {
		_, created, err := e.repo.SaveFinding(ctx, userID, finding)
		if err != nil {
			e.logger.Warn("save finding failed", "type", finding.Type, "error", err)
			continue
		}
		if created {
			summary.NewChecks++
		}
	}
}

// feeDirection orients the auxiliary fee entry: a positive residual
// moves the same way as the bank transaction, a negative one (amount
// withheld before it reached the bank) moves the opposite way.
func feeDirection(p *matcher.Proposal) model.Direction {
	if p.FeeAdjustment == nil || p.FeeAdjustment.Sign() >= 0 {
		return p.Txn.Direction
	}
	if p.Txn.Direction == model.DirectionIn {
		return model.DirectionOut
	}
	return model.DirectionIn
}

func excludeTxns(txns []model.AtomicTransaction, ids []string) []model.AtomicTransaction {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	out := txns[:0]
	for _, txn := range txns {
		if !drop[txn.ID] {
			out = append(out, txn)
		}
	}
	return out
}

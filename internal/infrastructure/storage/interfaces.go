package storage

import (
	"context"

	"github.com/ledgermatch/reconcile-backend/internal/domain/consistency"
	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/domain/scorer"
	"github.com/ledgermatch/reconcile-backend/internal/ledger"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations and makes testing
// handlers and services with mocks straightforward.
type Repository interface {
	TransactionRepository
	MatchRepository
	CheckRepository
	RuleRepository
	RunRepository
	StatsRepository
	ledger.Ledger
	Close() error
}

// TransactionRepository handles the atomic record store.
type TransactionRepository interface {
	// UpsertTransaction inserts a transaction or, when the
	// (user, dedup_hash) pair already exists, appends any new source
	// refs to the existing row. Returns the stored row and whether a
	// new row was created.
	UpsertTransaction(ctx context.Context, txn model.AtomicTransaction) (model.AtomicTransaction, bool, error)

	// GetTransaction retrieves a transaction by id; nil when absent.
	GetTransaction(ctx context.Context, id string) (*model.AtomicTransaction, error)

	// ListUnmatchedTransactions returns a user's non-ignored
	// transactions that have no active match, ordered by date then id.
	ListUnmatchedTransactions(ctx context.Context, userID string) ([]model.AtomicTransaction, error)

	// ListTransactions returns all of a user's transactions ordered by
	// date then id (consistency detectors need full history).
	ListTransactions(ctx context.Context, userID string) ([]model.AtomicTransaction, error)
}

// MatchFilters narrows review-queue listings.
type MatchFilters struct {
	UserID   string
	Status   string // empty = pending_review
	MinScore int
	MaxScore int // 0 = no ceiling
	DaysBack int // 0 = all time
	Limit    int // 0 = default 50
	Offset   int
}

// MatchPage contains paginated match results.
type MatchPage struct {
	Matches    []model.ReconciliationMatch `json:"matches"`
	TotalCount int                         `json:"total_count"`
	Limit      int                         `json:"limit"`
	Offset     int                         `json:"offset"`
}

// MatchRepository is the match record manager's persistence surface.
type MatchRepository interface {
	// CreateMatch persists a match and its link rows in one
	// transaction. Returns a *ConflictError when any transaction
	// already has a non-rejected match.
	CreateMatch(ctx context.Context, match *model.ReconciliationMatch) error

	// GetMatch retrieves a match with its transaction and entry ids;
	// nil when absent.
	GetMatch(ctx context.Context, id string) (*model.ReconciliationMatch, error)

	// ListMatches returns matches for the filters with pagination.
	ListMatches(ctx context.Context, filters MatchFilters) (*MatchPage, error)

	// TransitionMatch moves a match to a new status, appending an audit
	// row. Invalid transitions return an error; rejecting releases the
	// transactions for future runs.
	TransitionMatch(ctx context.Context, matchID string, to model.MatchStatus, actor, reason string) (*model.ReconciliationMatch, error)

	// ListAudit returns the append-only transition history of a match.
	ListAudit(ctx context.Context, matchID string) ([]model.MatchAudit, error)

	// MerchantAffinity builds the merchant-to-account affinity from
	// accepted matches only.
	MerchantAffinity(ctx context.Context, userID string) (AffinityIndex, error)

	// AcceptBatch transitions every member to accepted and posts it to
	// the ledger in one transaction: all members land or none does.
	// The returned error names the failing member.
	AcceptBatch(ctx context.Context, postings []BatchPosting) error
}

// BatchPosting couples one batch member's acceptance with its ledger
// posting so both land in the same transaction.
type BatchPosting struct {
	MatchID string
	Actor   string
	Posting ledger.PostingRequest
}

// CheckRepository handles consistency-check findings.
type CheckRepository interface {
	// SaveFinding persists a detector finding, deduplicating on its
	// content so re-running detection never re-opens resolved checks.
	// Returns the stored check and whether it is new.
	SaveFinding(ctx context.Context, userID string, finding consistency.Finding) (model.ConsistencyCheck, bool, error)

	// ListChecks returns a user's checks, optionally filtered by status.
	ListChecks(ctx context.Context, userID string, status model.CheckStatus) ([]model.ConsistencyCheck, error)

	// ResolveCheck moves a check out of pending.
	ResolveCheck(ctx context.Context, checkID string, status model.CheckStatus) (*model.ConsistencyCheck, error)

	// PendingCheckIDsForTxns returns ids of pending checks referencing
	// any of the given transactions. Batch accept gates on this.
	PendingCheckIDsForTxns(ctx context.Context, txnIDs []string) (map[string][]string, error)
}

// RuleRepository is the rule version registry.
type RuleRepository interface {
	// EnsureRuleVersion resolves a rules snapshot to its immutable
	// version row, inserting one on first sight of the content hash.
	EnsureRuleVersion(ctx context.Context, rules scorer.Rules) (model.RuleVersion, error)

	// GetRuleVersion retrieves a version by id; nil when absent.
	GetRuleVersion(ctx context.Context, id string) (*model.RuleVersion, error)
}

// RunRepository tracks matching runs.
type RunRepository interface {
	// StartRun records the start of a matching run and returns its id.
	StartRun(ctx context.Context, userID, ruleVersionID string, dryRun bool) (int64, error)

	// CompleteRun records the completion counters of a run.
	CompleteRun(ctx context.Context, runID int64, summary RunCounters) error

	// ListRuns returns recent runs, newest first.
	ListRuns(ctx context.Context, userID string, limit int) ([]model.MatchRun, error)

	// GetRun retrieves a run by id; nil when absent.
	GetRun(ctx context.Context, runID int64) (*model.MatchRun, error)
}

// RunCounters are the completion counts of one matching run.
type RunCounters struct {
	TxnsSeen      int
	Matched       int
	AutoAccepted  int
	PendingReview int
	Unmatched     int
	Errored       int
}

// Stats contains aggregate reconciliation statistics for one user.
type Stats struct {
	TotalTransactions int            `json:"total_transactions"`
	MatchedCount      int            `json:"matched_count"`
	AutoAcceptedCount int            `json:"auto_accepted_count"`
	PendingReview     int            `json:"pending_review_count"`
	UnmatchedCount    int            `json:"unmatched_count"`
	MatchRate         float64        `json:"match_rate"`
	AutoAcceptRate    float64        `json:"auto_accept_rate"`
	ScoreHistogram    map[string]int `json:"score_histogram"`
}

// StatsRepository serves the stats endpoint.
type StatsRepository interface {
	GetStats(ctx context.Context, userID string) (*Stats, error)
}

// AffinityIndex maps normalized merchant descriptions to the ledger
// account codes confirmed for them. Implements matcher.Affinity.
type AffinityIndex map[string]map[string]bool

// HasAffinity reports whether the merchant has a confirmed mapping to
// the account.
func (a AffinityIndex) HasAffinity(description, accountCode string) bool {
	return a[normalizeKey(description)][accountCode]
}

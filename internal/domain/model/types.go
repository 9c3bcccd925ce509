// Package model defines the core reconciliation entities shared across
// the matching engine, review service, and storage layer.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction indicates which way money moved on the bank side.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// AtomicTransaction is one deduplicated real-world bank/brokerage movement.
// Rows are immutable once written; only SourceRefs grows as the same
// logical transaction is seen in additional statements.
type AtomicTransaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	TxnDate     time.Time       `json:"txn_date"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	Description string          `json:"description"`
	Currency    string          `json:"currency"`
	DedupHash   string          `json:"dedup_hash"`
	SourceRefs  []string        `json:"source_refs"`
	Ignored     bool            `json:"ignored"`
	CreatedAt   time.Time       `json:"created_at"`
}

// EntryStatus is the ledger-side lifecycle of a journal entry.
type EntryStatus string

const (
	EntryDraft  EntryStatus = "draft"
	EntryPosted EntryStatus = "posted"
	EntryVoid   EntryStatus = "void"
)

// AccountType classifies the ledger account an entry touches.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountIncome    AccountType = "income"
	AccountExpense   AccountType = "expense"
	AccountEquity    AccountType = "equity"
)

// JournalEntry is the engine's read model of one ledger-side line.
// The ledger collaborator owns these; the engine only ever claims them
// for a match or requests creation of small auxiliary entries.
type JournalEntry struct {
	ID          int64           `json:"id"`
	UserID      string          `json:"user_id"`
	EntryDate   time.Time       `json:"entry_date"`
	Amount      decimal.Decimal `json:"amount"`
	Direction   Direction       `json:"direction"`
	AccountCode string          `json:"account_code"`
	AccountType AccountType     `json:"account_type"`
	Memo        string          `json:"memo"`
	Counterparty string         `json:"counterparty,omitempty"`
	Currency    string          `json:"currency"`
	Status      EntryStatus     `json:"status"`
	MatchID     string          `json:"match_id,omitempty"`
}

// MatchStatus is the reconciliation-match state machine.
type MatchStatus string

const (
	MatchAutoAccepted  MatchStatus = "auto_accepted"
	MatchPendingReview MatchStatus = "pending_review"
	MatchAccepted      MatchStatus = "accepted"
	MatchRejected      MatchStatus = "rejected"
)

// Active reports whether the status still claims its transactions.
// A transaction may appear in at most one active match.
func (s MatchStatus) Active() bool {
	return s != MatchRejected
}

// MatchType distinguishes pair matches from group matches.
type MatchType string

const (
	MatchSingle    MatchType = "single"
	MatchOneToMany MatchType = "one_to_many"
	MatchManyToOne MatchType = "many_to_one"
)

// ReconciliationMatch links one or more atomic transactions to one or
// more journal entries with a confidence score. Status transitions are
// the only permitted mutation; each transition appends an audit row.
type ReconciliationMatch struct {
	ID            string           `json:"id"`
	UserID        string           `json:"user_id"`
	TxnIDs        []string         `json:"bank_txn_ids"`
	EntryIDs      []int64          `json:"journal_entry_ids"`
	Score         int              `json:"match_score"`
	Breakdown     ScoreBreakdown   `json:"score_breakdown"`
	Type          MatchType        `json:"match_type"`
	Status        MatchStatus      `json:"status"`
	RuleVersionID string           `json:"rule_version_id"`
	FeeAdjustment *decimal.Decimal `json:"fee_adjustment,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ScoreBreakdown records the weighted sub-scores that sum to the match
// score, so every routing decision is explainable in the review queue.
type ScoreBreakdown struct {
	Amount       int `json:"amount"`
	Date         int `json:"date"`
	Description  int `json:"description"`
	Plausibility int `json:"plausibility"`
	History      int `json:"history"`
}

// MatchAudit is one append-only record of a status transition.
type MatchAudit struct {
	ID         int64       `json:"id"`
	MatchID    string      `json:"match_id"`
	FromStatus MatchStatus `json:"from_status"`
	ToStatus   MatchStatus `json:"to_status"`
	Actor      string      `json:"actor"`
	Reason     string      `json:"reason,omitempty"`
	At         time.Time   `json:"at"`
}

// CheckType classifies a consistency finding.
type CheckType string

const (
	CheckDuplicate    CheckType = "duplicate"
	CheckTransferPair CheckType = "transfer_pair"
	CheckAnomaly      CheckType = "anomaly"
)

// CheckStatus is the review lifecycle of a consistency check.
type CheckStatus string

const (
	CheckPending  CheckStatus = "pending"
	CheckApproved CheckStatus = "approved"
	CheckRejected CheckStatus = "rejected"
	CheckFlagged  CheckStatus = "flagged"
)

// Severity grades how loudly a consistency check should surface.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityHigh    Severity = "high"
)

// ConsistencyCheck is a side-channel finding (duplicate, transfer pair,
// anomaly). Checks never block matching itself, but a pending check on a
// transaction blocks batch acceptance of any match referencing it.
type ConsistencyCheck struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	Type          CheckType   `json:"check_type"`
	RelatedTxnIDs []string    `json:"related_txn_ids"`
	Details       string      `json:"details"` // type-specific JSON payload
	Severity      Severity    `json:"severity"`
	Status        CheckStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
}

// RuleVersion is an immutable snapshot of the scoring configuration used
// for a matching run. Identical configurations share one version row
// (content-addressed), so replaying a run under the same rules resolves
// to the same version id.
type RuleVersion struct {
	ID          string    `json:"id"`
	ContentHash string    `json:"content_hash"`
	ConfigJSON  string    `json:"config"`
	CreatedAt   time.Time `json:"created_at"`
}

// MatchRun summarizes one invocation of the matching engine for a user.
type MatchRun struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	RuleVersionID string    `json:"rule_version_id"`
	StartedAt     string    `json:"started_at"`
	CompletedAt   string    `json:"completed_at,omitempty"`
	TxnsSeen      int       `json:"txns_seen"`
	Matched       int       `json:"matched"`
	AutoAccepted  int       `json:"auto_accepted"`
	PendingReview int       `json:"pending_review"`
	Unmatched     int       `json:"unmatched"`
	Errored       int       `json:"errored"`
	DryRun        bool      `json:"dry_run"`
	Status        string    `json:"status"`
}

// Package ledger defines the engine's contract with the double-entry
// ledger collaborator.
//
// The engine reads candidate journal entries through Reader and, on
// acceptance of a match, issues one posting request through Writer. The
// ledger owns balance enforcement; the engine only surfaces rejections.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
)

// Query bounds a candidate search. The implementation must serve it
// with an indexed range scan over (user, date, amount), not a full
// table walk.
type Query struct {
	UserID    string
	Direction model.Direction
	Currency  string

	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	DateFrom  time.Time
	DateTo    time.Time

	// Unclaimed restricts results to entries not held by an active match.
	Unclaimed bool

	// Limit caps the result set; zero means the implementation default.
	Limit int
}

// Reader is the read-only candidate surface of the ledger.
type Reader interface {
	// FindCandidates returns entries inside the query window ordered by
	// date distance from DateFrom..DateTo midpoint, then by id. An empty
	// result is the normal unmatched path, never an error.
	FindCandidates(ctx context.Context, q Query) ([]model.JournalEntry, error)
}

// PostingRequest asks the ledger to claim the matched entries for a
// reconciliation match and, when a fee residual exists, to create one
// auxiliary balancing entry for it.
type PostingRequest struct {
	MatchID  string
	UserID   string
	EntryIDs []int64
	Currency string
	Memo     string

	// ExpectedTotal is the bank-side amount the posting must balance
	// against: claimed entries plus fee adjustment must reproduce it.
	ExpectedTotal decimal.Decimal

	FeeAdjustment  *decimal.Decimal
	FeeAccountCode string
	FeeDate        time.Time
	FeeDirection   model.Direction
}

// Writer is the posting surface of the ledger.
type Writer interface {
	// Post atomically claims the entries and creates any auxiliary fee
	// entry. Either everything lands or nothing does. Returns a
	// *RejectionError when the ledger refuses the posting.
	Post(ctx context.Context, req PostingRequest) error

	// Unpost releases a match's claim on its entries and voids any
	// auxiliary entries created for it. Used by reject and unmatch.
	Unpost(ctx context.Context, matchID string) error
}

// Ledger combines both surfaces.
type Ledger interface {
	Reader
	Writer
}

// RejectionError reports that the ledger refused a posting, e.g.
// because an entry is already claimed or the posting would unbalance.
// The acceptance that triggered it must be rolled back, never left
// half-applied.
type RejectionError struct {
	MatchID string
	Reason  string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("ledger rejected posting for match %s: %s", e.MatchID, e.Reason)
}

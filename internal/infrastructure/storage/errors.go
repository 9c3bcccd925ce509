package storage

import (
	"errors"
	"fmt"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
)

// ErrNotFound reports a lookup for a row that does not exist.
var ErrNotFound = errors.New("not found")

// ConflictError reports that a transaction already belongs to an
// active (non-rejected) match. The caller skips, never overwrites.
type ConflictError struct {
	TxnID           string
	ExistingMatchID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("transaction %s already has active match %s", e.TxnID, e.ExistingMatchID)
}

// InvalidTransitionError reports a disallowed status transition.
type InvalidTransitionError struct {
	MatchID string
	From    model.MatchStatus
	To      model.MatchStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("match %s: invalid transition %s -> %s", e.MatchID, e.From, e.To)
}

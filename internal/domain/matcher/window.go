package matcher

import (
	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/domain/scorer"
	"github.com/ledgermatch/reconcile-backend/internal/ledger"
)

// candidateLimit bounds how many entries one transaction is scored
// against. The window query is index-backed, so this is a safety cap,
// not a paging mechanism.
const candidateLimit = 50

// CandidateWindow builds the ledger range query for one unmatched
// transaction: amount within the tolerance boundary, date within the
// max gap, same currency and direction, unclaimed entries only.
func (m *Matcher) CandidateWindow(txn model.AtomicTransaction) ledger.Query {
	boundary := scorer.AmountBoundary(txn.Amount, m.rules)

	return ledger.Query{
		UserID:    txn.UserID,
		Direction: txn.Direction,
		Currency:  txn.Currency,
		MinAmount: txn.Amount.Sub(boundary),
		MaxAmount: txn.Amount.Add(boundary),
		DateFrom:  txn.TxnDate.AddDate(0, 0, -m.rules.MaxDateGapDays),
		DateTo:    txn.TxnDate.AddDate(0, 0, m.rules.MaxDateGapDays),
		Unclaimed: true,
		Limit:     candidateLimit,
	}
}

// GroupWindow widens the candidate window for group search: member
// amounts can be any fraction of the transaction total, so only the
// upper amount bound and the date gap constrain the query.
func (m *Matcher) GroupWindow(txn model.AtomicTransaction) ledger.Query {
	q := m.CandidateWindow(txn)
	q.MinAmount = decimal.Zero
	q.MaxAmount = txn.Amount.Add(scorer.AmountBoundary(txn.Amount, m.rules))
	q.Limit = candidateLimit * 2
	return q
}

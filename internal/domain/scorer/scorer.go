// Package scorer computes 0-100 confidence scores for candidate pairs
// of bank transactions and ledger entries.
//
// Scoring is a pure function: given the same Inputs and Rules it always
// produces the same Breakdown. Nothing here reads the clock or touches
// storage, which is what makes historical replay under old rule
// versions possible.
package scorer

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
)

// Inputs carries everything one scoring call may look at.
type Inputs struct {
	TxnAmount      decimal.Decimal
	TxnDate        time.Time
	TxnDescription string
	Direction      model.Direction

	EntryAmount  decimal.Decimal
	EntryDate    time.Time
	EntryMemo    string
	Counterparty string
	AccountType  model.AccountType

	// HasAffinity is true when accepted matches have previously mapped
	// this merchant to the candidate's ledger account.
	HasAffinity bool
}

// Score computes the weighted composite score and its breakdown.
func Score(in Inputs, rules Rules) (int, model.ScoreBreakdown) {
	bd := model.ScoreBreakdown{
		Amount:       amountScore(in.TxnAmount, in.EntryAmount, rules),
		Date:         DateScore(in.TxnDate, in.EntryDate, rules),
		Description:  descriptionScore(in),
		Plausibility: plausibilityScore(in.Direction, in.AccountType),
		History:      historyScore(in.HasAffinity),
	}

	w := rules.Weights
	weighted := bd.Amount*w.Amount +
		bd.Date*w.Date +
		bd.Description*w.Description +
		bd.Plausibility*w.Plausibility +
		bd.History*w.History

	return (weighted + 50) / 100, bd
}

// amountScore is 100 for an exact match and decays linearly to 0 at the
// tolerance boundary. The boundary is the wider of the percentage window
// and the absolute fee tolerance.
func amountScore(txn, entry decimal.Decimal, rules Rules) int {
	delta := txn.Sub(entry).Abs()
	if delta.IsZero() {
		return 100
	}

	boundary := AmountBoundary(txn, rules)
	if boundary.IsZero() || delta.GreaterThanOrEqual(boundary) {
		return 0
	}

	ratio, _ := delta.Div(boundary).Float64()
	return clampScore(100 - int(ratio*100+0.5))
}

// AmountBoundary returns the tolerance boundary for a given transaction
// amount: max(pct window, absolute fee tolerance). The candidate finder
// uses the same boundary for its range query so scoring never sees a
// candidate it would score zero on amount alone.
func AmountBoundary(amount decimal.Decimal, rules Rules) decimal.Decimal {
	pct := amount.Abs().Mul(decimal.NewFromFloat(rules.AmountTolerancePct))
	fee, err := decimal.NewFromString(rules.FeeTolerance)
	if err != nil {
		fee = decimal.Zero
	}
	if fee.GreaterThan(pct) {
		return fee
	}
	return pct
}

// DateScore is 100 for same-day and decays linearly to 0 at the
// configured max gap. Month boundaries need no special casing: the gap
// is computed on calendar days, so a Jan 31 transaction clearing Feb 2
// is simply a 2-day gap.
func DateScore(txnDate, entryDate time.Time, rules Rules) int {
	gap := DateGapDays(txnDate, entryDate)
	if gap == 0 {
		return 100
	}
	if gap >= rules.MaxDateGapDays {
		return 0
	}
	return clampScore(100 - (gap*100+rules.MaxDateGapDays/2)/rules.MaxDateGapDays)
}

// DateGapDays returns the absolute calendar-day distance between two dates.
func DateGapDays(a, b time.Time) int {
	au := a.UTC()
	bu := b.UTC()
	ad := time.Date(au.Year(), au.Month(), au.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(bu.Year(), bu.Month(), bu.Day(), 0, 0, 0, 0, time.UTC)

	gap := int(ad.Sub(bd).Hours() / 24)
	if gap < 0 {
		gap = -gap
	}
	return gap
}

// descriptionScore compares the transaction description against both the
// entry memo and counterparty, keeping the better of the two.
func descriptionScore(in Inputs) int {
	sim := Similarity(in.TxnDescription, in.EntryMemo)
	if in.Counterparty != "" {
		if cp := Similarity(in.TxnDescription, in.Counterparty); cp > sim {
			sim = cp
		}
	}
	return clampScore(int(sim*100 + 0.5))
}

func historyScore(hasAffinity bool) int {
	if hasAffinity {
		return 100
	}
	return 0
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

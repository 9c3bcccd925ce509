package matcher

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/domain/scorer"
)

// maxSearchNodes caps subset-sum node expansions per transaction so a
// pathological candidate window cannot stall a batch run.
const maxSearchNodes = 20000

// entryAmounts projects candidate entries onto their amounts for the
// subset search.
func entryAmounts(entries []model.JournalEntry) []decimal.Decimal {
	amounts := make([]decimal.Decimal, len(entries))
	for i, e := range entries {
		amounts[i] = e.Amount
	}
	return amounts
}

// FindGroup searches for a one-to-many pairing: one transaction whose
// amount equals the sum of a subset of ledger entries within the group
// epsilon. Returns nil when no subset of two or more entries fits.
//
// A residual inside the epsilon (a bank fee, typically) does not block
// the group; it is carried on the proposal as a fee adjustment.
func (m *Matcher) FindGroup(
	txn model.AtomicTransaction,
	candidates []model.JournalEntry,
	affinity Affinity,
) *Proposal {
	subset := m.findSubset(txn.Amount, entryAmounts(candidates))
	if len(subset) < 2 {
		return nil
	}

	group := make([]model.JournalEntry, len(subset))
	for i, idx := range subset {
		group[i] = candidates[idx]
	}
	sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })

	virtual := m.virtualEntry(txn, group)
	score, bd := scorer.Score(m.inputs(txn, virtual, affinity), m.rules)

	p := &Proposal{
		Txn:       txn,
		Entries:   group,
		Score:     score,
		Breakdown: bd,
		Type:      model.MatchOneToMany,
	}

	if residual := txn.Amount.Sub(virtual.Amount); !residual.IsZero() {
		p.FeeAdjustment = &residual
	}
	return p
}

// FindManyToOne searches for several transactions whose amounts sum to
// one ledger entry. The caller passes the unmatched transactions that
// already listed the entry as a candidate.
func (m *Matcher) FindManyToOne(
	entry model.JournalEntry,
	txns []model.AtomicTransaction,
	affinity Affinity,
) ([]model.AtomicTransaction, *Proposal) {
	amounts := make([]decimal.Decimal, len(txns))
	for i, t := range txns {
		amounts[i] = t.Amount
	}

	subset := m.findSubset(entry.Amount, amounts)
	if len(subset) < 2 {
		return nil, nil
	}

	group := make([]model.AtomicTransaction, len(subset))
	for i, idx := range subset {
		group[i] = txns[idx]
	}
	sort.Slice(group, func(i, j int) bool { return group[i].ID < group[j].ID })

	virtual := m.virtualTxn(entry, group)
	score, bd := scorer.Score(m.inputs(virtual, entry, affinity), m.rules)

	p := &Proposal{
		Txn:       virtual,
		Entries:   []model.JournalEntry{entry},
		Score:     score,
		Breakdown: bd,
		Type:      model.MatchManyToOne,
	}

	if residual := virtual.Amount.Sub(entry.Amount); !residual.IsZero() {
		p.FeeAdjustment = &residual
	}
	return group, p
}

// findSubset runs a bounded depth-first subset-sum over the amounts,
// looking for a combination within the group epsilon of the target.
// Amounts are visited largest-first so overshoot prunes early; among
// hits the smallest residual wins. Returns indexes into amounts.
func (m *Matcher) findSubset(target decimal.Decimal, amounts []decimal.Decimal) []int {
	epsilon, err := decimal.NewFromString(m.rules.GroupEpsilon)
	if err != nil {
		epsilon = decimal.Zero
	}

	order := make([]int, len(amounts))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return amounts[order[i]].GreaterThan(amounts[order[j]])
	})

	var (
		best         []int
		bestResidual decimal.Decimal
		nodes        int
	)

	var walk func(start int, chosen []int, sum decimal.Decimal)
	walk = func(start int, chosen []int, sum decimal.Decimal) {
		nodes++
		if nodes > maxSearchNodes {
			return
		}

		residual := target.Sub(sum).Abs()
		if len(chosen) >= 2 && residual.LessThanOrEqual(epsilon) {
			if best == nil || residual.LessThan(bestResidual) {
				best = append([]int(nil), chosen...)
				bestResidual = residual
			}
			if residual.IsZero() {
				return
			}
		}

		if len(chosen) == m.rules.MaxGroupSize || start == len(order) {
			return
		}

		for i := start; i < len(order); i++ {
			next := sum.Add(amounts[order[i]])
			// Overshoot prunes this branch; smaller amounts later in
			// the order may still fit.
			if next.GreaterThan(target.Add(epsilon)) {
				continue
			}
			walk(i+1, append(chosen, order[i]), next)
			if best != nil && bestResidual.IsZero() {
				return
			}
		}
	}

	walk(0, nil, decimal.Zero)
	return best
}

// virtualEntry aggregates a group of entries into one synthetic entry
// for scoring: summed amount, joined memos, and the member date with
// the widest gap from the transaction, so the worst-case date penalty
// governs the group.
func (m *Matcher) virtualEntry(txn model.AtomicTransaction, group []model.JournalEntry) model.JournalEntry {
	sum := decimal.Zero
	memos := make([]string, 0, len(group))
	worst := group[0]

	for _, e := range group {
		sum = sum.Add(e.Amount)
		if e.Memo != "" {
			memos = append(memos, e.Memo)
		}
		if scorer.DateGapDays(txn.TxnDate, e.EntryDate) > scorer.DateGapDays(txn.TxnDate, worst.EntryDate) {
			worst = e
		}
	}

	return model.JournalEntry{
		UserID:      txn.UserID,
		EntryDate:   worst.EntryDate,
		Amount:      sum,
		Direction:   group[0].Direction,
		AccountCode: dominantAccountCode(group),
		AccountType: dominantAccountType(group),
		Memo:        strings.Join(memos, " | "),
		Currency:    group[0].Currency,
	}
}

// virtualTxn aggregates a group of transactions the same way for the
// many-to-one direction.
func (m *Matcher) virtualTxn(entry model.JournalEntry, group []model.AtomicTransaction) model.AtomicTransaction {
	sum := decimal.Zero
	descs := make([]string, 0, len(group))
	worst := group[0]

	for _, t := range group {
		sum = sum.Add(t.Amount)
		if t.Description != "" {
			descs = append(descs, t.Description)
		}
		if scorer.DateGapDays(entry.EntryDate, t.TxnDate) > scorer.DateGapDays(entry.EntryDate, worst.TxnDate) {
			worst = t
		}
	}

	return model.AtomicTransaction{
		UserID:      entry.UserID,
		TxnDate:     worst.TxnDate,
		Amount:      sum,
		Direction:   group[0].Direction,
		Description: strings.Join(descs, " | "),
		Currency:    group[0].Currency,
	}
}

// dominantAccountType returns the shared account type of a group, or
// empty (scored neutral) when members disagree.
func dominantAccountType(group []model.JournalEntry) model.AccountType {
	t := group[0].AccountType
	for _, e := range group[1:] {
		if e.AccountType != t {
			return ""
		}
	}
	return t
}

func dominantAccountCode(group []model.JournalEntry) string {
	c := group[0].AccountCode
	for _, e := range group[1:] {
		if e.AccountCode != c {
			return ""
		}
	}
	return c
}

// Package matcher finds the best ledger-entry pairing for an unmatched
// bank transaction.
//
// Single-pair matching scores every candidate inside the tolerance
// window and keeps the best under a deterministic tie-break. Group
// matching (multi.go) kicks in only when no single candidate reaches
// the review floor.
//
// Example:
//
//	m := matcher.New(scorer.DefaultRules())
//	proposal := m.FindBest(txn, candidates, affinity)
//	if proposal != nil {
//		// route by proposal.Score
//	}
package matcher

import (
	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/domain/scorer"
)

// tieBreakBand is the score distance within which two candidates are
// considered tied and ranked by the secondary criteria instead.
const tieBreakBand = 1

// scoredCandidate pairs one entry with its score for ranking.
type scoredCandidate struct {
	entry     model.JournalEntry
	score     int
	breakdown model.ScoreBreakdown
	exact     bool
	dateGap   int
}

// FindBest scores the transaction against every candidate and returns
// the winning single-pair proposal, or nil when no candidate exists.
// Callers decide routing; even a low-scoring winner is returned so the
// engine can fall through to group matching.
//
// A winner whose amount differs from the transaction by no more than
// the fee tolerance carries the delta as a fee adjustment, so posting
// still balances.
func (m *Matcher) FindBest(
	txn model.AtomicTransaction,
	candidates []model.JournalEntry,
	affinity Affinity,
) *Proposal {
	if len(candidates) == 0 {
		return nil
	}

	scored := make([]scoredCandidate, 0, len(candidates))
	maxScore := 0
	for _, entry := range candidates {
		score, bd := scorer.Score(m.inputs(txn, entry, affinity), m.rules)
		scored = append(scored, scoredCandidate{
			entry:     entry,
			score:     score,
			breakdown: bd,
			exact:     txn.Amount.Equal(entry.Amount),
			dateGap:   scorer.DateGapDays(txn.TxnDate, entry.EntryDate),
		})
		if score > maxScore {
			maxScore = score
		}
	}

	// Pick the max score first, then break ties only among candidates
	// within the band of the max. Ranking the band by a lexicographic
	// preference keeps the selection total and reproducible.
	var best *scoredCandidate
	for i := range scored {
		c := &scored[i]
		if maxScore-c.score > tieBreakBand {
			continue
		}
		if best == nil || preferred(*c, *best) {
			best = c
		}
	}

	p := &Proposal{
		Txn:       txn,
		Entries:   []model.JournalEntry{best.entry},
		Score:     best.score,
		Breakdown: best.breakdown,
		Type:      model.MatchSingle,
	}

	if !best.exact {
		if fee, err := decimal.NewFromString(m.rules.FeeTolerance); err == nil {
			if residual := txn.Amount.Sub(best.entry.Amount); residual.Abs().LessThanOrEqual(fee) {
				p.FeeAdjustment = &residual
			}
		}
	}
	return p
}

// preferred ranks candidates inside the tie-break band: the
// exact-amount match wins, then the nearer date, then the higher
// score, then the lowest entry id.
func preferred(a, b scoredCandidate) bool {
	if a.exact != b.exact {
		return a.exact
	}
	if a.dateGap != b.dateGap {
		return a.dateGap < b.dateGap
	}
	if a.score != b.score {
		return a.score > b.score
	}
	return a.entry.ID < b.entry.ID
}

// inputs assembles the pure scoring inputs for one pairing.
func (m *Matcher) inputs(txn model.AtomicTransaction, entry model.JournalEntry, affinity Affinity) scorer.Inputs {
	return scorer.Inputs{
		TxnAmount:      txn.Amount,
		TxnDate:        txn.TxnDate,
		TxnDescription: txn.Description,
		Direction:      txn.Direction,
		EntryAmount:    entry.Amount,
		EntryDate:      entry.EntryDate,
		EntryMemo:      entry.Memo,
		Counterparty:   entry.Counterparty,
		AccountType:    entry.AccountType,
		HasAffinity:    affinity.HasAffinity(txn.Description, entry.AccountCode),
	}
}

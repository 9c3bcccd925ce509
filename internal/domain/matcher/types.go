package matcher

import (
	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/domain/scorer"
)

// Matcher pairs atomic transactions with ledger entry candidates under
// one immutable rules snapshot.
type Matcher struct {
	rules scorer.Rules
}

// New creates a matcher for the given rules snapshot.
func New(rules scorer.Rules) *Matcher {
	return &Matcher{rules: rules}
}

// Rules returns the snapshot this matcher scores under.
func (m *Matcher) Rules() scorer.Rules {
	return m.rules
}

// Affinity answers whether a merchant description has a previously
// confirmed mapping to a ledger account. Built from accepted matches
// only, so rejected guesses never reinforce themselves.
type Affinity interface {
	HasAffinity(description, accountCode string) bool
}

// NoAffinity is the empty affinity source.
type NoAffinity struct{}

// HasAffinity always reports false.
func (NoAffinity) HasAffinity(string, string) bool { return false }

// Proposal is a scored candidate pairing ready for threshold routing.
type Proposal struct {
	Txn       model.AtomicTransaction
	Entries   []model.JournalEntry
	Score     int
	Breakdown model.ScoreBreakdown
	Type      model.MatchType

	// FeeAdjustment is the fee-sized residual a match carries (a group
	// epsilon remainder, or a single-pair delta within the fee
	// tolerance), always bank-side total minus entry-side total; nil
	// for exact matches.
	FeeAdjustment *decimal.Decimal
}

// EntryIDs returns the ordered candidate entry ids.
func (p *Proposal) EntryIDs() []int64 {
	ids := make([]int64, len(p.Entries))
	for i, e := range p.Entries {
		ids[i] = e.ID
	}
	return ids
}

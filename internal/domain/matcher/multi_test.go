package matcher

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/domain/scorer"
)

func TestFindGroup_ExactSubset(t *testing.T) {
	m := New(scorer.DefaultRules())
	txn := testTxn("150.00", "payroll batch")

	candidates := []model.JournalEntry{
		testEntry(3, "100.00", "payroll", 0),
		testEntry(1, "75.00", "rent", 0),
		testEntry(2, "50.00", "payroll", 0),
	}

	p := m.FindGroup(txn, candidates, NoAffinity{})
	require.NotNil(t, p)

	assert.Equal(t, model.MatchOneToMany, p.Type)
	assert.Equal(t, []int64{2, 3}, p.EntryIDs())
	assert.Nil(t, p.FeeAdjustment)
	assert.GreaterOrEqual(t, p.Score, 90)
}

func TestFindGroup_FeeResidualWithinEpsilon(t *testing.T) {
	m := New(scorer.DefaultRules())
	txn := testTxn("150.75", "payroll batch")

	candidates := []model.JournalEntry{
		testEntry(1, "100.00", "payroll", 0),
		testEntry(2, "50.00", "payroll", 0),
	}

	p := m.FindGroup(txn, candidates, NoAffinity{})
	require.NotNil(t, p)

	require.NotNil(t, p.FeeAdjustment)
	assert.True(t, p.FeeAdjustment.Equal(decimal.RequireFromString("0.75")),
		"fee adjustment = %s", p.FeeAdjustment)
}

func TestFindGroup_ResidualBeyondEpsilon(t *testing.T) {
	m := New(scorer.DefaultRules())
	txn := testTxn("152.00", "payroll batch")

	candidates := []model.JournalEntry{
		testEntry(1, "100.00", "payroll", 0),
		testEntry(2, "50.00", "payroll", 0),
	}

	assert.Nil(t, m.FindGroup(txn, candidates, NoAffinity{}))
}

func TestFindGroup_PrefersSmallestResidual(t *testing.T) {
	m := New(scorer.DefaultRules())
	txn := testTxn("100.00", "vendor settlement")

	// Both {60, 40} and {60, 39.50} fit inside the epsilon; the exact
	// combination must win.
	candidates := []model.JournalEntry{
		testEntry(1, "60.00", "vendor", 0),
		testEntry(2, "39.50", "vendor", 0),
		testEntry(3, "40.00", "vendor", 0),
	}

	p := m.FindGroup(txn, candidates, NoAffinity{})
	require.NotNil(t, p)
	assert.Equal(t, []int64{1, 3}, p.EntryIDs())
	assert.Nil(t, p.FeeAdjustment)
}

func TestFindGroup_NeverSingleEntry(t *testing.T) {
	m := New(scorer.DefaultRules())
	txn := testTxn("100.00", "acme")

	assert.Nil(t, m.FindGroup(txn, []model.JournalEntry{testEntry(1, "100.00", "acme", 0)}, NoAffinity{}))
}

func TestFindGroup_RespectsMaxGroupSize(t *testing.T) {
	txn := testTxn("30.00", "triple invoice")
	candidates := []model.JournalEntry{
		testEntry(1, "10.00", "invoice", 0),
		testEntry(2, "10.00", "invoice", 0),
		testEntry(3, "10.00", "invoice", 0),
	}

	capped := scorer.DefaultRules()
	capped.MaxGroupSize = 2
	assert.Nil(t, New(capped).FindGroup(txn, candidates, NoAffinity{}))

	p := New(scorer.DefaultRules()).FindGroup(txn, candidates, NoAffinity{})
	require.NotNil(t, p)
	assert.Len(t, p.Entries, 3)
}

func TestFindGroup_WorstMemberDateGoverns(t *testing.T) {
	m := New(scorer.DefaultRules())
	txn := testTxn("150.00", "payroll batch")

	// One member cleared two days out; the group's date sub-score must
	// reflect that member, not the same-day one.
	candidates := []model.JournalEntry{
		testEntry(1, "100.00", "payroll", 0),
		testEntry(2, "50.00", "payroll", 2),
	}

	p := m.FindGroup(txn, candidates, NoAffinity{})
	require.NotNil(t, p)
	assert.Equal(t, 60, p.Breakdown.Date)
}

func TestFindManyToOne_ExactSubset(t *testing.T) {
	m := New(scorer.DefaultRules())

	entry := testEntry(9, "150.00", "client retainer", 0)
	entry.Direction = model.DirectionIn
	entry.AccountType = model.AccountIncome

	deposit := func(id, amount string) model.AtomicTransaction {
		txn := testTxn(amount, "client retainer")
		txn.ID = id
		txn.Direction = model.DirectionIn
		return txn
	}

	txns := []model.AtomicTransaction{
		deposit("t2", "50.00"),
		deposit("t1", "100.00"),
		deposit("t3", "33.00"),
	}

	group, p := m.FindManyToOne(entry, txns, NoAffinity{})
	require.NotNil(t, p)
	require.Len(t, group, 2)

	assert.Equal(t, "t1", group[0].ID)
	assert.Equal(t, "t2", group[1].ID)
	assert.Equal(t, model.MatchManyToOne, p.Type)
	assert.Equal(t, []int64{9}, p.EntryIDs())
	assert.True(t, p.Txn.Amount.Equal(decimal.RequireFromString("150.00")))
	assert.Nil(t, p.FeeAdjustment)
}

func TestFindManyToOne_WithheldFeeResidual(t *testing.T) {
	m := New(scorer.DefaultRules())

	entry := testEntry(9, "150.00", "client retainer", 0)
	entry.Direction = model.DirectionIn
	entry.AccountType = model.AccountIncome

	a := testTxn("100.00", "client retainer")
	a.ID = "t1"
	a.Direction = model.DirectionIn
	b := testTxn("49.50", "client retainer")
	b.ID = "t2"
	b.Direction = model.DirectionIn

	group, p := m.FindManyToOne(entry, []model.AtomicTransaction{a, b}, NoAffinity{})
	require.NotNil(t, p)
	require.Len(t, group, 2)

	// Bank received less than the entry claims: the residual is the
	// withheld fee and carries a negative sign.
	require.NotNil(t, p.FeeAdjustment)
	assert.True(t, p.FeeAdjustment.Equal(decimal.RequireFromString("-0.50")),
		"fee adjustment = %s", p.FeeAdjustment)
}

func TestFindManyToOne_NoPair(t *testing.T) {
	m := New(scorer.DefaultRules())
	entry := testEntry(9, "150.00", "retainer", 0)

	a := testTxn("90.00", "retainer")
	a.ID = "t1"

	group, p := m.FindManyToOne(entry, []model.AtomicTransaction{a}, NoAffinity{})
	assert.Nil(t, group)
	assert.Nil(t, p)
}

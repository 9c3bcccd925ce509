package dedup

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "NETFLIX", "netflix"},
		{"strips punctuation", "NETFLIX.COM*SUB", "netflix com sub"},
		{"collapses whitespace", "  whole   foods  ", "whole foods"},
		{"keeps digits", "CHECK #1042", "check 1042"},
		{"empty", "", ""},
		{"only punctuation", "***", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestHash_StableAcrossCosmeticDifferences(t *testing.T) {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("15.99")

	a := Hash(date, amount, model.DirectionOut, "NETFLIX.COM", "ref-1")
	b := Hash(date, amount, model.DirectionOut, "netflix   com", "REF-1")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestHash_TrailingZerosAndTimezone(t *testing.T) {
	amount := decimal.RequireFromString("15.99")

	// Same instant expressed in different zones hashes the same.
	utc := time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC)
	est := utc.In(time.FixedZone("EST", -5*3600))
	assert.Equal(t,
		Hash(utc, amount, model.DirectionOut, "netflix", ""),
		Hash(est, amount, model.DirectionOut, "netflix", ""),
	)
}

func TestHash_DistinguishesFields(t *testing.T) {
	date := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.RequireFromString("15.99")
	base := Hash(date, amount, model.DirectionOut, "netflix", "ref-1")

	tests := []struct {
		name string
		hash string
	}{
		{"different date", Hash(date.AddDate(0, 0, 1), amount, model.DirectionOut, "netflix", "ref-1")},
		{"different amount", Hash(date, decimal.RequireFromString("16.99"), model.DirectionOut, "netflix", "ref-1")},
		{"different direction", Hash(date, amount, model.DirectionIn, "netflix", "ref-1")},
		{"different description", Hash(date, amount, model.DirectionOut, "hulu", "ref-1")},
		{"different reference", Hash(date, amount, model.DirectionOut, "netflix", "ref-2")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, tt.hash)
		})
	}
}

func TestHashTransaction_UsesFirstSourceRef(t *testing.T) {
	txn := model.AtomicTransaction{
		TxnDate:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.RequireFromString("42.00"),
		Direction:   model.DirectionOut,
		Description: "ACME SUPPLIES",
		SourceRefs:  []string{"stmt-9", "stmt-10"},
	}

	want := Hash(txn.TxnDate, txn.Amount, txn.Direction, txn.Description, "stmt-9")
	assert.Equal(t, want, HashTransaction(txn))

	txn.SourceRefs = nil
	assert.Equal(t,
		Hash(txn.TxnDate, txn.Amount, txn.Direction, txn.Description, ""),
		HashTransaction(txn))
}

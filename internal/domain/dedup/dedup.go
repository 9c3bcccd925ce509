// Package dedup computes content hashes for atomic transactions so that
// re-ingesting the same logical transaction never creates a second row.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
)

// Hash returns the dedup hash for a transaction: SHA-256 over the
// normalized date, amount, direction, description, and reference.
// Normalization keeps the hash stable across cosmetic differences in
// statement exports (case, whitespace, trailing zeros).
func Hash(date time.Time, amount decimal.Decimal, direction model.Direction, description, reference string) string {
	parts := []string{
		date.UTC().Format("2006-01-02"),
		amount.String(),
		string(direction),
		Normalize(description),
		Normalize(reference),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// HashTransaction computes the dedup hash from the transaction's own
// fields, using the first source ref as the reference component.
func HashTransaction(txn model.AtomicTransaction) string {
	ref := ""
	if len(txn.SourceRefs) > 0 {
		ref = txn.SourceRefs[0]
	}
	return Hash(txn.TxnDate, txn.Amount, txn.Direction, txn.Description, ref)
}

// Normalize lowercases, strips punctuation, and collapses runs of
// whitespace. Used both for hashing and for description comparison.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

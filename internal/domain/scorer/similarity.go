package scorer

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/ledgermatch/reconcile-backend/internal/domain/dedup"
)

// Similarity returns a 0-1 similarity between two free-text labels.
// Both sides are normalized (case, punctuation, whitespace) first.
//
// A bank description is usually a terse fragment of the ledger memo
// ("NETFLIX" vs "Netflix Subscription"), so full token containment in
// either direction counts as an exact match before falling back to
// edit distance.
func Similarity(a, b string) float64 {
	na := dedup.Normalize(a)
	nb := dedup.Normalize(b)

	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	if tokenSubset(na, nb) || tokenSubset(nb, na) {
		return 1
	}

	dist := levenshtein.ComputeDistance(na, nb)
	maxLen := len(na)
	if len(nb) > maxLen {
		maxLen = len(nb)
	}

	sim := 1 - float64(dist)/float64(maxLen)
	if sim < 0 {
		return 0
	}
	return sim
}

// tokenSubset reports whether every token of sub appears among the
// tokens of full.
func tokenSubset(sub, full string) bool {
	fullTokens := make(map[string]bool)
	for _, tok := range strings.Fields(full) {
		fullTokens[tok] = true
	}

	for _, tok := range strings.Fields(sub) {
		if !fullTokens[tok] {
			return false
		}
	}
	return true
}

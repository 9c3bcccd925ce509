package scorer

import (
	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
)

// plausibilityTable scores how believable a (bank direction, ledger
// account type) pairing is. Money leaving the bank account against an
// expense entry is the expected shape; money arriving against an
// expense entry almost never reconciles cleanly.
var plausibilityTable = map[model.Direction]map[model.AccountType]int{
	model.DirectionOut: {
		model.AccountExpense:   100,
		model.AccountAsset:     70, // transfer to savings/brokerage
		model.AccountLiability: 70, // loan or credit-card payment
		model.AccountEquity:    50,
		model.AccountIncome:    0, // refund reversals come in, not out
	},
	model.DirectionIn: {
		model.AccountIncome:    100, // salary deposit against income credit
		model.AccountAsset:     70,
		model.AccountLiability: 70,
		model.AccountEquity:    50,
		model.AccountExpense:   0,
	},
}

// plausibilityScore returns the rule-driven bonus/penalty for an
// account-type combination. Unknown combinations score neutral.
func plausibilityScore(dir model.Direction, acct model.AccountType) int {
	if byType, ok := plausibilityTable[dir]; ok {
		if score, ok := byType[acct]; ok {
			return score
		}
	}
	return 50
}

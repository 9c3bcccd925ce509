package scorer

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Weights are the per-factor percentages of the composite score.
// They must sum to 100.
type Weights struct {
	Amount       int `json:"amount" yaml:"amount"`
	Date         int `json:"date" yaml:"date"`
	Description  int `json:"description" yaml:"description"`
	Plausibility int `json:"plausibility" yaml:"plausibility"`
	History      int `json:"history" yaml:"history"`
}

// Rules is one immutable scoring configuration. Every matching run is
// tagged with the rule version derived from the Rules content hash, so
// results stay explainable after the configuration changes.
type Rules struct {
	Weights Weights `json:"weights" yaml:"weights"`

	// AmountTolerancePct widens the candidate window and sets the decay
	// boundary for the amount sub-score (fraction of the transaction
	// amount, e.g. 0.05 for ±5%).
	AmountTolerancePct float64 `json:"amount_tolerance_pct" yaml:"amount_tolerance_pct"`

	// FeeTolerance is the absolute fee-adjusted delta (currency units)
	// that still earns partial amount credit, whichever of the two
	// boundaries is wider wins.
	FeeTolerance string `json:"fee_tolerance" yaml:"fee_tolerance"`

	// MaxDateGapDays is where the date sub-score decays to zero.
	MaxDateGapDays int `json:"max_date_gap_days" yaml:"max_date_gap_days"`

	// GroupEpsilon is the residual (e.g. a bank fee) a group match may
	// carry without being blocked; recorded as a fee adjustment.
	GroupEpsilon string `json:"group_epsilon" yaml:"group_epsilon"`

	// MaxGroupSize caps the subset-sum search.
	MaxGroupSize int `json:"max_group_size" yaml:"max_group_size"`

	// Routing thresholds.
	AutoAcceptFloor  int `json:"auto_accept_floor" yaml:"auto_accept_floor"`
	ReviewFloor      int `json:"review_floor" yaml:"review_floor"`
	BatchAcceptFloor int `json:"batch_accept_floor" yaml:"batch_accept_floor"`
}

// DefaultRules returns the stock single-pair scoring configuration.
func DefaultRules() Rules {
	return Rules{
		Weights: Weights{
			Amount:       40,
			Date:         25,
			Description:  20,
			Plausibility: 10,
			History:      5,
		},
		AmountTolerancePct: 0.05,
		FeeTolerance:       "0.10",
		MaxDateGapDays:     5,
		GroupEpsilon:       "1.00",
		MaxGroupSize:       6,
		AutoAcceptFloor:    85,
		ReviewFloor:        60,
		BatchAcceptFloor:   80,
	}
}

// Validate checks internal consistency of a rules snapshot.
func (r Rules) Validate() error {
	sum := r.Weights.Amount + r.Weights.Date + r.Weights.Description +
		r.Weights.Plausibility + r.Weights.History
	if sum != 100 {
		return fmt.Errorf("weights must sum to 100, got %d", sum)
	}
	if r.MaxDateGapDays <= 0 {
		return fmt.Errorf("max_date_gap_days must be positive, got %d", r.MaxDateGapDays)
	}
	if r.MaxGroupSize < 2 {
		return fmt.Errorf("max_group_size must be at least 2, got %d", r.MaxGroupSize)
	}
	if r.ReviewFloor > r.AutoAcceptFloor {
		return fmt.Errorf("review_floor %d above auto_accept_floor %d", r.ReviewFloor, r.AutoAcceptFloor)
	}
	return nil
}

// ContentHash returns the hash that content-addresses this rules
// snapshot: identical configurations always resolve to the same rule
// version, which is what makes re-runs idempotent.
func (r Rules) ContentHash() string {
	// encoding/json emits struct fields in declaration order, so the
	// serialization is canonical for hashing purposes.
	data, _ := json.Marshal(r)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

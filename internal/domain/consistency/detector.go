// Package consistency produces side-channel findings about the
// transaction stream: statistical anomalies, likely duplicates that
// slipped past content hashing, and transfer pairs.
//
// Findings are advisory. They never block matching, but a pending
// finding on a transaction blocks batch acceptance of any match that
// references it.
package consistency

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/domain/dedup"
	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/domain/scorer"
)

// Config tunes the detectors.
type Config struct {
	// AmountMultiplier flags a transaction whose amount exceeds this
	// many times the trailing monthly average for its description.
	AmountMultiplier float64 `yaml:"amount_multiplier"`

	// MinHistorySamples is how many prior same-merchant transactions
	// the trailing average needs before the amount check fires at all.
	MinHistorySamples int `yaml:"min_history_samples"`

	// MaxDailySameMerchant flags same-merchant bursts above this count
	// in one calendar day.
	MaxDailySameMerchant int `yaml:"max_daily_same_merchant"`

	// NormalHoursStart/End (0-23) define the expected activity window
	// for timestamped transactions. Equal values disable the check.
	NormalHoursStart int `yaml:"normal_hours_start"`
	NormalHoursEnd   int `yaml:"normal_hours_end"`

	// DuplicateSimilarity is the description-similarity floor for the
	// duplicate check.
	DuplicateSimilarity float64 `yaml:"duplicate_similarity"`

	// DuplicateMaxGapDays bounds how far apart duplicates may post.
	DuplicateMaxGapDays int `yaml:"duplicate_max_gap_days"`

	// TransferMaxGapDays bounds how far apart the two legs of a
	// transfer pair may post.
	TransferMaxGapDays int `yaml:"transfer_max_gap_days"`
}

// DefaultConfig returns the stock detector settings.
func DefaultConfig() Config {
	return Config{
		AmountMultiplier:     3.0,
		MinHistorySamples:    3,
		MaxDailySameMerchant: 5,
		NormalHoursStart:     0,
		NormalHoursEnd:       0,
		DuplicateSimilarity:  0.85,
		DuplicateMaxGapDays:  1,
		TransferMaxGapDays:   3,
	}
}

// Finding is one detector result, ready to persist as a consistency
// check.
type Finding struct {
	Type     model.CheckType
	TxnIDs   []string
	Severity model.Severity
	Details  map[string]any
}

// DetailsJSON serializes the type-specific payload.
func (f Finding) DetailsJSON() string {
	data, _ := json.Marshal(f.Details)
	return string(data)
}

// Detector runs all consistency checks over a user's transactions.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector with the given config.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Run evaluates every check against the transaction set and returns
// the findings. The input should be one user's transactions; callers
// pass enough history for the trailing averages to be meaningful.
func (d *Detector) Run(txns []model.AtomicTransaction) []Finding {
	sorted := make([]model.AtomicTransaction, len(txns))
	copy(sorted, txns)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].TxnDate.Equal(sorted[j].TxnDate) {
			return sorted[i].TxnDate.Before(sorted[j].TxnDate)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var findings []Finding
	findings = append(findings, d.amountOutliers(sorted)...)
	findings = append(findings, d.frequencyBursts(sorted)...)
	findings = append(findings, d.offHours(sorted)...)
	findings = append(findings, d.duplicates(sorted)...)
	findings = append(findings, d.transferPairs(sorted)...)
	return findings
}

// amountOutliers flags transactions exceeding N× the trailing monthly
// average for the same normalized description.
func (d *Detector) amountOutliers(txns []model.AtomicTransaction) []Finding {
	var findings []Finding

	for i, txn := range txns {
		cutoff := txn.TxnDate.AddDate(0, -1, 0)
		key := dedup.Normalize(txn.Description)
		if key == "" {
			continue
		}

		sum := decimal.Zero
		samples := 0
		for _, prior := range txns[:i] {
			if prior.TxnDate.Before(cutoff) {
				continue
			}
			if dedup.Normalize(prior.Description) != key {
				continue
			}
			sum = sum.Add(prior.Amount)
			samples++
		}

		if samples < d.cfg.MinHistorySamples {
			continue
		}

		avg := sum.Div(decimal.NewFromInt(int64(samples)))
		threshold := avg.Mul(decimal.NewFromFloat(d.cfg.AmountMultiplier))
		if txn.Amount.GreaterThan(threshold) {
			findings = append(findings, Finding{
				Type:     model.CheckAnomaly,
				TxnIDs:   []string{txn.ID},
				Severity: model.SeverityWarning,
				Details: map[string]any{
					"reason":           "amount_outlier",
					"amount":           txn.Amount.String(),
					"trailing_average": avg.StringFixed(2),
					"multiplier":       d.cfg.AmountMultiplier,
					"samples":          samples,
				},
			})
		}
	}

	return findings
}

// frequencyBursts flags same-merchant transaction counts above the
// daily threshold.
func (d *Detector) frequencyBursts(txns []model.AtomicTransaction) []Finding {
	type bucket struct {
		ids []string
	}

	buckets := make(map[string]*bucket)
	for _, txn := range txns {
		key := dedup.Normalize(txn.Description) + "|" + txn.TxnDate.UTC().Format("2006-01-02")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.ids = append(b.ids, txn.ID)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var findings []Finding
	for _, k := range keys {
		b := buckets[k]
		if len(b.ids) > d.cfg.MaxDailySameMerchant {
			findings = append(findings, Finding{
				Type:     model.CheckAnomaly,
				TxnIDs:   b.ids,
				Severity: model.SeverityWarning,
				Details: map[string]any{
					"reason":    "frequency_burst",
					"count":     len(b.ids),
					"threshold": d.cfg.MaxDailySameMerchant,
				},
			})
		}
	}

	return findings
}

// offHours flags timestamped transactions outside the configured
// normal window. Date-only transactions (midnight timestamps) are
// skipped, as are configs with an empty window.
func (d *Detector) offHours(txns []model.AtomicTransaction) []Finding {
	if d.cfg.NormalHoursStart == d.cfg.NormalHoursEnd {
		return nil
	}

	var findings []Finding
	for _, txn := range txns {
		t := txn.TxnDate.UTC()
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			continue
		}
		if hourInWindow(t.Hour(), d.cfg.NormalHoursStart, d.cfg.NormalHoursEnd) {
			continue
		}
		findings = append(findings, Finding{
			Type:     model.CheckAnomaly,
			TxnIDs:   []string{txn.ID},
			Severity: model.SeverityInfo,
			Details: map[string]any{
				"reason": "off_hours",
				"hour":   t.Hour(),
				"window": []int{d.cfg.NormalHoursStart, d.cfg.NormalHoursEnd},
			},
		})
	}
	return findings
}

// hourInWindow handles windows that wrap past midnight (e.g. 6..23 and
// 22..5 are both valid windows).
func hourInWindow(hour, start, end int) bool {
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// duplicates flags distinct-hash transaction pairs that look like the
// same real-world movement: same amount and direction, close dates,
// highly similar descriptions.
func (d *Detector) duplicates(txns []model.AtomicTransaction) []Finding {
	var findings []Finding

	for i := 0; i < len(txns); i++ {
		for j := i + 1; j < len(txns); j++ {
			a, b := txns[i], txns[j]
			if a.DedupHash == b.DedupHash {
				continue // content hashing already collapsed these
			}
			if a.Direction != b.Direction || !a.Amount.Equal(b.Amount) || a.Currency != b.Currency {
				continue
			}
			if scorer.DateGapDays(a.TxnDate, b.TxnDate) > d.cfg.DuplicateMaxGapDays {
				continue
			}
			if scorer.Similarity(a.Description, b.Description) < d.cfg.DuplicateSimilarity {
				continue
			}
			findings = append(findings, Finding{
				Type:     model.CheckDuplicate,
				TxnIDs:   []string{a.ID, b.ID},
				Severity: model.SeverityHigh,
				Details: map[string]any{
					"amount":       a.Amount.String(),
					"descriptions": []string{a.Description, b.Description},
				},
			})
		}
	}

	return findings
}

// transferPairs flags equal-amount opposite-direction pairs posting
// within the gap window: two legs of one internal transfer that should
// not both be matched as independent income/expense.
func (d *Detector) transferPairs(txns []model.AtomicTransaction) []Finding {
	var findings []Finding
	used := make(map[string]bool)

	for i := 0; i < len(txns); i++ {
		if used[txns[i].ID] {
			continue
		}
		for j := i + 1; j < len(txns); j++ {
			a, b := txns[i], txns[j]
			if used[b.ID] {
				continue
			}
			if a.Direction == b.Direction || !a.Amount.Equal(b.Amount) || a.Currency != b.Currency {
				continue
			}
			if scorer.DateGapDays(a.TxnDate, b.TxnDate) > d.cfg.TransferMaxGapDays {
				continue
			}
			used[a.ID] = true
			used[b.ID] = true
			findings = append(findings, Finding{
				Type:     model.CheckTransferPair,
				TxnIDs:   []string{a.ID, b.ID},
				Severity: model.SeverityInfo,
				Details: map[string]any{
					"amount":   a.Amount.String(),
					"gap_days": scorer.DateGapDays(a.TxnDate, b.TxnDate),
				},
			})
			break
		}
	}

	return findings
}

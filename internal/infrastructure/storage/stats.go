package storage

import (
	"context"
	"fmt"
)

// GetStats aggregates reconciliation statistics for one user.
func (s *Storage) GetStats(ctx context.Context, userID string) (*Stats, error) {
	stats := &Stats{ScoreHistogram: map[string]int{}}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM atomic_transactions WHERE user_id = ?
	`, userID).Scan(&stats.TotalTransactions)
	if err != nil {
		return nil, fmt.Errorf("counting transactions: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT mt.txn_id)
		FROM match_transactions mt
		JOIN reconciliation_matches m ON m.id = mt.match_id
		WHERE m.user_id = ? AND mt.active = 1
		  AND m.status IN ('accepted', 'auto_accepted')
	`, userID).Scan(&stats.MatchedCount)
	if err != nil {
		return nil, fmt.Errorf("counting matched: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT mt.txn_id)
		FROM match_transactions mt
		JOIN reconciliation_matches m ON m.id = mt.match_id
		WHERE m.user_id = ? AND mt.active = 1 AND m.status = 'auto_accepted'
	`, userID).Scan(&stats.AutoAcceptedCount)
	if err != nil {
		return nil, fmt.Errorf("counting auto accepted: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reconciliation_matches
		WHERE user_id = ? AND status = 'pending_review'
	`, userID).Scan(&stats.PendingReview)
	if err != nil {
		return nil, fmt.Errorf("counting pending review: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM atomic_transactions t
		WHERE t.user_id = ?
		  AND NOT EXISTS (
			SELECT 1 FROM match_transactions mt
			WHERE mt.txn_id = t.id AND mt.active = 1
		  )
	`, userID).Scan(&stats.UnmatchedCount)
	if err != nil {
		return nil, fmt.Errorf("counting unmatched: %w", err)
	}

	if stats.TotalTransactions > 0 {
		stats.MatchRate = float64(stats.MatchedCount) / float64(stats.TotalTransactions)
		stats.AutoAcceptRate = float64(stats.AutoAcceptedCount) / float64(stats.TotalTransactions)
	}

	// Histogram buckets of ten score points across active matches.
	rows, err := s.db.QueryContext(ctx, `
		SELECT (match_score / 10) * 10 AS bucket, COUNT(*)
		FROM reconciliation_matches
		WHERE user_id = ? AND status != 'rejected'
		GROUP BY bucket
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("score histogram: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var bucket, count int
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, err
		}
		stats.ScoreHistogram[fmt.Sprintf("%d-%d", bucket, bucket+9)] = count
	}
	return stats, rows.Err()
}

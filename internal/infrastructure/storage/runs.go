package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
)

// StartRun records the start of a matching run
func (s *Storage) StartRun(ctx context.Context, userID, ruleVersionID string, dryRun bool) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO match_runs (user_id, rule_version_id, dry_run, status)
		VALUES (?, ?, ?, 'running')
	`, userID, ruleVersionID, dryRun)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// CompleteRun records the completion counters of a run
func (s *Storage) CompleteRun(ctx context.Context, runID int64, c RunCounters) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE match_runs
		SET completed_at = CURRENT_TIMESTAMP,
		    txns_seen = ?,
		    matched = ?,
		    auto_accepted = ?,
		    pending_review = ?,
		    unmatched = ?,
		    errored = ?,
		    status = CASE WHEN ? > 0 THEN 'completed_with_errors' ELSE 'completed' END
		WHERE id = ?
	`, c.TxnsSeen, c.Matched, c.AutoAccepted, c.PendingReview, c.Unmatched, c.Errored, c.Errored, runID)
	return err
}

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(ctx context.Context, userID string, limit int) ([]model.MatchRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := runSelect
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []model.MatchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by id; nil when absent
func (s *Storage) GetRun(ctx context.Context, runID int64) (*model.MatchRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, runSelect+` WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

const runSelect = `
	SELECT id, user_id, rule_version_id, started_at, completed_at,
	       txns_seen, matched, auto_accepted, pending_review, unmatched,
	       errored, dry_run, status
	FROM match_runs`

func scanRun(row rowScanner) (*model.MatchRun, error) {
	var (
		run         model.MatchRun
		completedAt sql.NullString
	)

	err := row.Scan(
		&run.ID,
		&run.UserID,
		&run.RuleVersionID,
		&run.StartedAt,
		&completedAt,
		&run.TxnsSeen,
		&run.Matched,
		&run.AutoAccepted,
		&run.PendingReview,
		&run.Unmatched,
		&run.Errored,
		&run.DryRun,
		&run.Status,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = completedAt.String
	}
	return &run, nil
}

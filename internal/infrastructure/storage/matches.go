package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/domain/dedup"
	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
)

// validTransitions is the match state machine. accepted and
// auto_accepted only leave through an explicit unmatch back to
// pending_review; there is no silent overwrite path.
var validTransitions = map[model.MatchStatus][]model.MatchStatus{
	model.MatchPendingReview: {model.MatchAccepted, model.MatchRejected},
	model.MatchAccepted:      {model.MatchPendingReview},
	model.MatchAutoAccepted:  {model.MatchPendingReview},
	model.MatchRejected:      {},
}

func transitionAllowed(from, to model.MatchStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CreateMatch persists a match with its link rows in one transaction.
// The active-match check runs inside the same transaction as the
// inserts, and the partial unique index on match_transactions backs it
// up against concurrent creators: first commit wins, the loser gets a
// *ConflictError.
func (s *Storage) CreateMatch(ctx context.Context, match *model.ReconciliationMatch) error {
	if match.ID == "" {
		match.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if match.CreatedAt.IsZero() {
		match.CreatedAt = now
	}
	match.UpdatedAt = now

	return s.inTx(func(tx *sql.Tx) error {
		for _, txnID := range match.TxnIDs {
			var existingID string
			err := tx.QueryRowContext(ctx, `
				SELECT mt.match_id FROM match_transactions mt
				WHERE mt.txn_id = ? AND mt.active = 1
			`, txnID).Scan(&existingID)
			if err == nil {
				return &ConflictError{TxnID: txnID, ExistingMatchID: existingID}
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
		}

		breakdownJSON, _ := json.Marshal(match.Breakdown)
		var fee any
		if match.FeeAdjustment != nil {
			fee = match.FeeAdjustment.String()
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO reconciliation_matches
			(id, user_id, match_score, score_breakdown, match_type, status,
			 rule_version_id, fee_adjustment, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			match.ID,
			match.UserID,
			match.Score,
			string(breakdownJSON),
			string(match.Type),
			string(match.Status),
			match.RuleVersionID,
			fee,
			match.CreatedAt,
			match.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert match: %w", err)
		}

		for i, txnID := range match.TxnIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO match_transactions (match_id, txn_id, position, active)
				VALUES (?, ?, ?, 1)
			`, match.ID, txnID, i); err != nil {
				if isUniqueViolation(err) {
					return &ConflictError{TxnID: txnID}
				}
				return fmt.Errorf("link transaction %s: %w", txnID, err)
			}
		}

		for i, entryID := range match.EntryIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO match_entries (match_id, entry_id, position)
				VALUES (?, ?, ?)
			`, match.ID, entryID, i); err != nil {
				return fmt.Errorf("link entry %d: %w", entryID, err)
			}
		}

		return appendAudit(ctx, tx, match.ID, "", match.Status, "engine", "")
	})
}

// GetMatch retrieves a match with its ordered link rows
func (s *Storage) GetMatch(ctx context.Context, id string) (*model.ReconciliationMatch, error) {
	match, err := scanMatch(s.db.QueryRowContext(ctx, matchSelect+` WHERE m.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.loadLinks(ctx, match); err != nil {
		return nil, err
	}
	return match, nil
}

// ListMatches returns matches for the filters with pagination
func (s *Storage) ListMatches(ctx context.Context, filters MatchFilters) (*MatchPage, error) {
	status := filters.Status
	if status == "" {
		status = string(model.MatchPendingReview)
	}
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	where := []string{"m.status = ?"}
	args := []any{status}

	if filters.UserID != "" {
		where = append(where, "m.user_id = ?")
		args = append(args, filters.UserID)
	}
	if filters.MinScore > 0 {
		where = append(where, "m.match_score >= ?")
		args = append(args, filters.MinScore)
	}
	if filters.MaxScore > 0 {
		where = append(where, "m.match_score <= ?")
		args = append(args, filters.MaxScore)
	}
	if filters.DaysBack > 0 {
		where = append(where, "m.created_at > datetime('now', ?)")
		args = append(args, fmt.Sprintf("-%d days", filters.DaysBack))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reconciliation_matches m WHERE `+whereClause, args...,
	).Scan(&total)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		matchSelect+` WHERE `+whereClause+` ORDER BY m.created_at DESC, m.id ASC LIMIT ? OFFSET ?`,
		append(args, limit, filters.Offset)...,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	page := &MatchPage{
		Matches: make([]model.ReconciliationMatch, 0, limit),
		Limit:   limit,
		Offset:  filters.Offset,
	}
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		page.Matches = append(page.Matches, *match)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range page.Matches {
		if err := s.loadLinks(ctx, &page.Matches[i]); err != nil {
			return nil, err
		}
	}

	page.TotalCount = total
	return page, nil
}

// TransitionMatch moves a match through the state machine, appending
// an audit row. Rejecting a match releases its transactions so future
// runs may re-match them.
func (s *Storage) TransitionMatch(ctx context.Context, matchID string, to model.MatchStatus, actor, reason string) (*model.ReconciliationMatch, error) {
	err := s.inTx(func(tx *sql.Tx) error {
		return transitionMatchTx(ctx, tx, matchID, to, actor, reason)
	})
	if err != nil {
		return nil, err
	}

	return s.GetMatch(ctx, matchID)
}

// transitionMatchTx applies one status transition inside an open
// transaction so multi-match operations can share it.
func transitionMatchTx(ctx context.Context, tx *sql.Tx, matchID string, to model.MatchStatus, actor, reason string) error {
	var from string
	err := tx.QueryRowContext(ctx,
		`SELECT status FROM reconciliation_matches WHERE id = ?`, matchID,
	).Scan(&from)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	if err != nil {
		return err
	}

	if !transitionAllowed(model.MatchStatus(from), to) {
		return &InvalidTransitionError{MatchID: matchID, From: model.MatchStatus(from), To: to}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE reconciliation_matches
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(to), matchID); err != nil {
		return err
	}

	// Rejected matches no longer claim their transactions.
	active := 1
	if to == model.MatchRejected {
		active = 0
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE match_transactions SET active = ? WHERE match_id = ?`, active, matchID,
	); err != nil {
		return err
	}

	return appendAudit(ctx, tx, matchID, model.MatchStatus(from), to, actor, reason)
}

// AcceptBatch applies a batch accept as one transaction: every member
// flips to accepted and claims its ledger entries, or the whole batch
// rolls back.
func (s *Storage) AcceptBatch(ctx context.Context, postings []BatchPosting) error {
	return s.inTx(func(tx *sql.Tx) error {
		for _, p := range postings {
			if err := transitionMatchTx(ctx, tx, p.MatchID, model.MatchAccepted, p.Actor, ""); err != nil {
				return fmt.Errorf("batch member %s: %w", p.MatchID, err)
			}
			if err := postTx(ctx, tx, p.Posting); err != nil {
				return fmt.Errorf("batch member %s: %w", p.MatchID, err)
			}
		}
		return nil
	})
}

// ListAudit returns the transition history of a match, oldest first
func (s *Storage) ListAudit(ctx context.Context, matchID string) ([]model.MatchAudit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, match_id, from_status, to_status, actor, reason, at
		FROM match_audit WHERE match_id = ? ORDER BY id ASC
	`, matchID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var audits []model.MatchAudit
	for rows.Next() {
		var (
			a        model.MatchAudit
			from, to string
		)
		if err := rows.Scan(&a.ID, &a.MatchID, &from, &to, &a.Actor, &a.Reason, &a.At); err != nil {
			return nil, err
		}
		a.FromStatus = model.MatchStatus(from)
		a.ToStatus = model.MatchStatus(to)
		audits = append(audits, a)
	}
	return audits, rows.Err()
}

// MerchantAffinity builds merchant-to-account mappings from accepted
// matches only, so a rejected guess never reinforces itself.
func (s *Storage) MerchantAffinity(ctx context.Context, userID string) (AffinityIndex, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.description, e.account_code
		FROM reconciliation_matches m
		JOIN match_transactions mt ON mt.match_id = m.id
		JOIN atomic_transactions t ON t.id = mt.txn_id
		JOIN match_entries me ON me.match_id = m.id
		JOIN journal_entries e ON e.id = me.entry_id
		WHERE m.user_id = ? AND m.status IN ('accepted', 'auto_accepted')
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	index := make(AffinityIndex)
	for rows.Next() {
		var description, accountCode string
		if err := rows.Scan(&description, &accountCode); err != nil {
			return nil, err
		}
		key := normalizeKey(description)
		if key == "" {
			continue
		}
		if index[key] == nil {
			index[key] = make(map[string]bool)
		}
		index[key][accountCode] = true
	}
	return index, rows.Err()
}

func normalizeKey(description string) string {
	return dedup.Normalize(description)
}

const matchSelect = `
	SELECT m.id, m.user_id, m.match_score, m.score_breakdown, m.match_type,
	       m.status, m.rule_version_id, m.fee_adjustment, m.created_at, m.updated_at
	FROM reconciliation_matches m`

func scanMatch(row rowScanner) (*model.ReconciliationMatch, error) {
	var (
		match         model.ReconciliationMatch
		breakdownJSON string
		matchType     string
		status        string
		fee           sql.NullString
	)

	err := row.Scan(
		&match.ID,
		&match.UserID,
		&match.Score,
		&breakdownJSON,
		&matchType,
		&status,
		&match.RuleVersionID,
		&fee,
		&match.CreatedAt,
		&match.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	match.Type = model.MatchType(matchType)
	match.Status = model.MatchStatus(status)
	_ = json.Unmarshal([]byte(breakdownJSON), &match.Breakdown)

	if fee.Valid {
		d, err := decimal.NewFromString(fee.String)
		if err == nil {
			match.FeeAdjustment = &d
		}
	}

	return &match, nil
}

// loadLinks fills the ordered transaction and entry id lists
func (s *Storage) loadLinks(ctx context.Context, match *model.ReconciliationMatch) error {
	txnRows, err := s.db.QueryContext(ctx, `
		SELECT txn_id FROM match_transactions WHERE match_id = ? ORDER BY position ASC
	`, match.ID)
	if err != nil {
		return err
	}
	defer func() { _ = txnRows.Close() }()

	match.TxnIDs = match.TxnIDs[:0]
	for txnRows.Next() {
		var id string
		if err := txnRows.Scan(&id); err != nil {
			return err
		}
		match.TxnIDs = append(match.TxnIDs, id)
	}
	if err := txnRows.Err(); err != nil {
		return err
	}

	entryRows, err := s.db.QueryContext(ctx, `
		SELECT entry_id FROM match_entries WHERE match_id = ? ORDER BY position ASC
	`, match.ID)
	if err != nil {
		return err
	}
	defer func() { _ = entryRows.Close() }()

	match.EntryIDs = match.EntryIDs[:0]
	for entryRows.Next() {
		var id int64
		if err := entryRows.Scan(&id); err != nil {
			return err
		}
		match.EntryIDs = append(match.EntryIDs, id)
	}
	return entryRows.Err()
}

func appendAudit(ctx context.Context, tx *sql.Tx, matchID string, from, to model.MatchStatus, actor, reason string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO match_audit (match_id, from_status, to_status, actor, reason)
		VALUES (?, ?, ?, ?, ?)
	`, matchID, string(from), string(to), actor, reason)
	return err
}

// isUniqueViolation detects the sqlite unique-constraint error without
// depending on driver error types in callers.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

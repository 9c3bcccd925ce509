package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/ledgermatch/reconcile-backend/internal/domain/consistency"
	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
)

// SaveFinding persists a detector finding. The content key (type plus
// related transaction ids) deduplicates re-detections, so resolving a
// check and re-running the detector never re-opens it.
func (s *Storage) SaveFinding(ctx context.Context, userID string, finding consistency.Finding) (model.ConsistencyCheck, bool, error) {
	key := findingContentKey(finding)

	existing, err := s.checkByContentKey(ctx, userID, key)
	if err != nil {
		return model.ConsistencyCheck{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	check := model.ConsistencyCheck{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          finding.Type,
		RelatedTxnIDs: finding.TxnIDs,
		Details:       finding.DetailsJSON(),
		Severity:      finding.Severity,
		Status:        model.CheckPending,
	}

	txnIDsJSON, _ := json.Marshal(check.RelatedTxnIDs)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO consistency_checks
		(id, user_id, check_type, related_txn_ids, details, severity, status, content_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		check.ID,
		check.UserID,
		string(check.Type),
		string(txnIDsJSON),
		check.Details,
		string(check.Severity),
		string(check.Status),
		key,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Raced with a concurrent detector pass.
			existing, lookupErr := s.checkByContentKey(ctx, userID, key)
			if lookupErr == nil && existing != nil {
				return *existing, false, nil
			}
		}
		return model.ConsistencyCheck{}, false, err
	}

	return check, true, nil
}

// ListChecks returns a user's checks, optionally filtered by status,
// newest first.
func (s *Storage) ListChecks(ctx context.Context, userID string, status model.CheckStatus) ([]model.ConsistencyCheck, error) {
	query := checkSelect + ` WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var checks []model.ConsistencyCheck
	for rows.Next() {
		check, err := scanCheck(rows)
		if err != nil {
			return nil, err
		}
		checks = append(checks, *check)
	}
	return checks, rows.Err()
}

// ResolveCheck moves a check out of pending
func (s *Storage) ResolveCheck(ctx context.Context, checkID string, status model.CheckStatus) (*model.ConsistencyCheck, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE consistency_checks SET status = ? WHERE id = ?`, string(status), checkID,
	)
	if err != nil {
		return nil, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}

	check, err := scanCheck(s.db.QueryRowContext(ctx, checkSelect+` WHERE id = ?`, checkID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return check, err
}

// PendingCheckIDsForTxns maps each transaction id to the pending
// checks that reference it.
func (s *Storage) PendingCheckIDsForTxns(ctx context.Context, txnIDs []string) (map[string][]string, error) {
	blocked := make(map[string][]string)
	if len(txnIDs) == 0 {
		return blocked, nil
	}

	wanted := make(map[string]bool, len(txnIDs))
	for _, id := range txnIDs {
		wanted[id] = true
	}

	// related_txn_ids is a JSON array; the candidate set per user is
	// small enough to filter in process.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, related_txn_ids FROM consistency_checks WHERE status = 'pending'
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var checkID, idsJSON string
		if err := rows.Scan(&checkID, &idsJSON); err != nil {
			return nil, err
		}
		var related []string
		_ = json.Unmarshal([]byte(idsJSON), &related)
		for _, txnID := range related {
			if wanted[txnID] {
				blocked[txnID] = append(blocked[txnID], checkID)
			}
		}
	}
	return blocked, rows.Err()
}

func (s *Storage) checkByContentKey(ctx context.Context, userID, key string) (*model.ConsistencyCheck, error) {
	check, err := scanCheck(s.db.QueryRowContext(ctx,
		checkSelect+` WHERE user_id = ? AND content_key = ?`, userID, key,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return check, err
}

const checkSelect = `
	SELECT id, user_id, check_type, related_txn_ids, details, severity, status, created_at
	FROM consistency_checks`

func scanCheck(row rowScanner) (*model.ConsistencyCheck, error) {
	var (
		check     model.ConsistencyCheck
		checkType string
		idsJSON   string
		severity  string
		status    string
	)

	err := row.Scan(
		&check.ID,
		&check.UserID,
		&checkType,
		&idsJSON,
		&check.Details,
		&severity,
		&status,
		&check.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	check.Type = model.CheckType(checkType)
	check.Severity = model.Severity(severity)
	check.Status = model.CheckStatus(status)
	_ = json.Unmarshal([]byte(idsJSON), &check.RelatedTxnIDs)

	return &check, nil
}

// findingContentKey identifies a finding by what it is about, not by
// when it was detected.
func findingContentKey(finding consistency.Finding) string {
	reason := ""
	if r, ok := finding.Details["reason"].(string); ok {
		reason = r
	}
	raw := string(finding.Type) + "|" + reason + "|" + strings.Join(finding.TxnIDs, ",")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

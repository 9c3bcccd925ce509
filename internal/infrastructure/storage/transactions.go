package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
)

// UpsertTransaction inserts a transaction, or appends new source refs
// to the existing row when the (user, dedup_hash) pair is already
// known. The row itself is never mutated otherwise.
func (s *Storage) UpsertTransaction(ctx context.Context, txn model.AtomicTransaction) (model.AtomicTransaction, bool, error) {
	var (
		stored  model.AtomicTransaction
		created bool
	)

	err := s.inTx(func(tx *sql.Tx) error {
		existing, err := scanTransaction(tx.QueryRowContext(ctx, `
			SELECT id, user_id, txn_date, amount, direction, description,
			       currency, dedup_hash, source_refs, ignored, created_at
			FROM atomic_transactions
			WHERE user_id = ? AND dedup_hash = ?
		`, txn.UserID, txn.DedupHash))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if existing != nil {
			merged := appendRefs(existing.SourceRefs, txn.SourceRefs)
			if len(merged) != len(existing.SourceRefs) {
				refsJSON, _ := json.Marshal(merged)
				if _, err := tx.ExecContext(ctx, `
					UPDATE atomic_transactions SET source_refs = ? WHERE id = ?
				`, string(refsJSON), existing.ID); err != nil {
					return err
				}
				existing.SourceRefs = merged
			}
			stored = *existing
			return nil
		}

		if txn.ID == "" {
			txn.ID = uuid.NewString()
		}
		if txn.CreatedAt.IsZero() {
			txn.CreatedAt = time.Now().UTC()
		}
		refsJSON, _ := json.Marshal(txn.SourceRefs)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO atomic_transactions
			(id, user_id, txn_date, amount, direction, description,
			 currency, dedup_hash, source_refs, ignored, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			txn.ID,
			txn.UserID,
			txn.TxnDate.UTC(),
			txn.Amount.String(),
			string(txn.Direction),
			txn.Description,
			txn.Currency,
			txn.DedupHash,
			string(refsJSON),
			txn.Ignored,
			txn.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		stored = txn
		created = true
		return nil
	})

	return stored, created, err
}

// GetTransaction retrieves a transaction by id
func (s *Storage) GetTransaction(ctx context.Context, id string) (*model.AtomicTransaction, error) {
	txn, err := scanTransaction(s.db.QueryRowContext(ctx, `
		SELECT id, user_id, txn_date, amount, direction, description,
		       currency, dedup_hash, source_refs, ignored, created_at
		FROM atomic_transactions WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return txn, err
}

// ListUnmatchedTransactions returns non-ignored transactions with no
// active match, ordered by date then id for reproducible runs.
func (s *Storage) ListUnmatchedTransactions(ctx context.Context, userID string) ([]model.AtomicTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.user_id, t.txn_date, t.amount, t.direction, t.description,
		       t.currency, t.dedup_hash, t.source_refs, t.ignored, t.created_at
		FROM atomic_transactions t
		WHERE t.user_id = ?
		  AND t.ignored = 0
		  AND NOT EXISTS (
			SELECT 1 FROM match_transactions mt
			WHERE mt.txn_id = t.id AND mt.active = 1
		  )
		ORDER BY t.txn_date ASC, t.id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collectTransactions(rows)
}

// ListTransactions returns all of a user's transactions ordered by
// date then id.
func (s *Storage) ListTransactions(ctx context.Context, userID string) ([]model.AtomicTransaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, txn_date, amount, direction, description,
		       currency, dedup_hash, source_refs, ignored, created_at
		FROM atomic_transactions
		WHERE user_id = ?
		ORDER BY txn_date ASC, id ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return collectTransactions(rows)
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.AtomicTransaction, error) {
	var (
		txn       model.AtomicTransaction
		amount    string
		direction string
		refsJSON  string
	)

	err := row.Scan(
		&txn.ID,
		&txn.UserID,
		&txn.TxnDate,
		&amount,
		&direction,
		&txn.Description,
		&txn.Currency,
		&txn.DedupHash,
		&refsJSON,
		&txn.Ignored,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount for transaction %s: %w", txn.ID, err)
	}
	txn.Direction = model.Direction(direction)

	if refsJSON != "" {
		_ = json.Unmarshal([]byte(refsJSON), &txn.SourceRefs)
	}

	return &txn, nil
}

func collectTransactions(rows *sql.Rows) ([]model.AtomicTransaction, error) {
	var txns []model.AtomicTransaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, *txn)
	}
	return txns, rows.Err()
}

// appendRefs merges new refs into existing, preserving order and
// dropping duplicates.
func appendRefs(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	merged := append([]string(nil), existing...)
	for _, ref := range existing {
		seen[ref] = true
	}
	for _, ref := range incoming {
		if ref != "" && !seen[ref] {
			merged = append(merged, ref)
			seen[ref] = true
		}
	}
	return merged
}

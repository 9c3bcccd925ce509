package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/ledger"
)

// Compile-time check that Storage implements the ledger contract
var _ ledger.Ledger = (*Storage)(nil)

// defaultCandidateLimit caps unbounded candidate queries.
const defaultCandidateLimit = 100

// InsertEntry stores a journal entry and returns its id. Used by the
// ingestion boundary and by the posting path for auxiliary fee entries.
func (s *Storage) InsertEntry(ctx context.Context, entry model.JournalEntry) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries
		(user_id, entry_date, amount, direction, account_code, account_type,
		 memo, counterparty, currency, status, match_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.UserID,
		entry.EntryDate.UTC(),
		entry.Amount.String(),
		string(entry.Direction),
		entry.AccountCode,
		string(entry.AccountType),
		entry.Memo,
		entry.Counterparty,
		entry.Currency,
		string(entry.Status),
		nullable(entry.MatchID),
	)
	if err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}
	return result.LastInsertId()
}

// GetEntry retrieves an entry by id; nil when absent
func (s *Storage) GetEntry(ctx context.Context, id int64) (*model.JournalEntry, error) {
	entry, err := scanEntry(s.db.QueryRowContext(ctx, entrySelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// FindCandidates serves the candidate window with an indexed range
// scan over (user, date, amount). Results are ordered by date distance
// from the window midpoint, then by id, so candidate order is stable.
func (s *Storage) FindCandidates(ctx context.Context, q ledger.Query) ([]model.JournalEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}

	midpoint := q.DateFrom.Add(q.DateTo.Sub(q.DateFrom) / 2).UTC()

	query := entrySelect + `
		WHERE user_id = ?
		  AND entry_date >= ? AND entry_date <= ?
		  AND CAST(amount AS REAL) >= ? AND CAST(amount AS REAL) <= ?
		  AND direction = ?
		  AND currency = ?
		  AND status != 'void'
	`
	args := []any{
		q.UserID,
		q.DateFrom.UTC(),
		q.DateTo.UTC(),
		mustFloat(q.MinAmount),
		mustFloat(q.MaxAmount),
		string(q.Direction),
		q.Currency,
	}

	if q.Unclaimed {
		query += ` AND match_id IS NULL`
	}

	query += ` ORDER BY ABS(julianday(entry_date) - julianday(?)) ASC, id ASC LIMIT ?`
	args = append(args, midpoint, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []model.JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Post claims the matched entries and creates any auxiliary fee entry,
// all in one transaction. An already-claimed or missing entry, or a
// posting that does not balance against the expected total, rejects
// the whole request.
func (s *Storage) Post(ctx context.Context, req ledger.PostingRequest) error {
	return s.inTx(func(tx *sql.Tx) error {
		return postTx(ctx, tx, req)
	})
}

// postTx runs the posting inside an open transaction so batch accepts
// can combine several postings with their status transitions.
func postTx(ctx context.Context, tx *sql.Tx, req ledger.PostingRequest) error {
	claimed := decimal.Zero

	for _, entryID := range req.EntryIDs {
		var amount string
		err := tx.QueryRowContext(ctx, `
			SELECT amount FROM journal_entries
			WHERE id = ? AND user_id = ? AND status != 'void'
		`, entryID, req.UserID).Scan(&amount)
		if errors.Is(err, sql.ErrNoRows) {
			return &ledger.RejectionError{
				MatchID: req.MatchID,
				Reason:  fmt.Sprintf("entry %d not found or void", entryID),
			}
		}
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE journal_entries
			SET match_id = ?, status = 'posted'
			WHERE id = ? AND match_id IS NULL
		`, req.MatchID, entryID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected != 1 {
			return &ledger.RejectionError{
				MatchID: req.MatchID,
				Reason:  fmt.Sprintf("entry %d already claimed by another match", entryID),
			}
		}

		d, err := decimal.NewFromString(amount)
		if err != nil {
			return fmt.Errorf("corrupt amount for entry %d: %w", entryID, err)
		}
		claimed = claimed.Add(d)
	}

	fee := decimal.Zero
	if req.FeeAdjustment != nil {
		fee = *req.FeeAdjustment
	}

	// Balance check: claimed entries plus the fee adjustment must
	// reproduce the bank-side total exactly.
	if !claimed.Add(fee).Equal(req.ExpectedTotal) {
		return &ledger.RejectionError{
			MatchID: req.MatchID,
			Reason: fmt.Sprintf("posting does not balance: entries %s + fee %s != total %s",
				claimed.String(), fee.String(), req.ExpectedTotal.String()),
		}
	}

	if !fee.IsZero() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO journal_entries
			(user_id, entry_date, amount, direction, account_code, account_type,
			 memo, counterparty, currency, status, match_id)
			VALUES (?, ?, ?, ?, ?, 'expense', ?, '', ?, 'posted', ?)
		`,
			req.UserID,
			req.FeeDate.UTC(),
			fee.Abs().String(),
			string(req.FeeDirection),
			req.FeeAccountCode,
			req.Memo,
			req.Currency,
			req.MatchID,
		); err != nil {
			return fmt.Errorf("create fee entry: %w", err)
		}
	}

	return nil
}

// Unpost releases a match's claim on its entries and voids any
// auxiliary entries the posting created for it.
func (s *Storage) Unpost(ctx context.Context, matchID string) error {
	return s.inTx(func(tx *sql.Tx) error {
		// Auxiliary entries were created by the posting and have no
		// existence outside it.
		if _, err := tx.ExecContext(ctx, `
			UPDATE journal_entries SET status = 'void', match_id = NULL
			WHERE match_id = ? AND id NOT IN (
				SELECT entry_id FROM match_entries WHERE match_id = ?
			)
		`, matchID, matchID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE journal_entries SET match_id = NULL
			WHERE match_id = ?
		`, matchID)
		return err
	})
}

const entrySelect = `
	SELECT id, user_id, entry_date, amount, direction, account_code,
	       account_type, memo, counterparty, currency, status, match_id
	FROM journal_entries`

func scanEntry(row rowScanner) (*model.JournalEntry, error) {
	var (
		entry       model.JournalEntry
		amount      string
		direction   string
		accountType string
		status      string
		matchID     sql.NullString
	)

	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.EntryDate,
		&amount,
		&direction,
		&entry.AccountCode,
		&accountType,
		&entry.Memo,
		&entry.Counterparty,
		&entry.Currency,
		&status,
		&matchID,
	)
	if err != nil {
		return nil, err
	}

	entry.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount for entry %d: %w", entry.ID, err)
	}
	entry.Direction = model.Direction(direction)
	entry.AccountType = model.AccountType(accountType)
	entry.Status = model.EntryStatus(status)
	if matchID.Valid {
		entry.MatchID = matchID.String
	}

	return &entry, nil
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package storage

import (
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "atomic_transactions",
		Up:      migration001AtomicTransactions,
	},
	{
		Version: 2,
		Name:    "journal_entries",
		Up:      migration002JournalEntries,
	},
	{
		Version: 3,
		Name:    "reconciliation_matches",
		Up:      migration003ReconciliationMatches,
	},
	{
		Version: 4,
		Name:    "consistency_checks",
		Up:      migration004ConsistencyChecks,
	},
	{
		Version: 5,
		Name:    "rule_versions",
		Up:      migration005RuleVersions,
	},
	{
		Version: 6,
		Name:    "match_runs",
		Up:      migration006MatchRuns,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// migration001AtomicTransactions creates the deduplicated transaction
// store. Amounts are TEXT decimals, never floats.
func migration001AtomicTransactions(tx *sql.Tx) error {
	query := `
	CREATE TABLE atomic_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		txn_date TIMESTAMP NOT NULL,
		amount TEXT NOT NULL,
		direction TEXT NOT NULL CHECK (direction IN ('in', 'out')),
		description TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT 'USD',
		dedup_hash TEXT NOT NULL,
		source_refs TEXT NOT NULL DEFAULT '[]',
		ignored INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, dedup_hash)
	);

	CREATE INDEX idx_atomic_txns_user_date ON atomic_transactions(user_id, txn_date);
	`

	_, err := tx.Exec(query)
	return err
}

// migration002JournalEntries creates the engine's read model of the
// ledger plus the claim column set on posting.
func migration002JournalEntries(tx *sql.Tx) error {
	query := `
	CREATE TABLE journal_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		entry_date TIMESTAMP NOT NULL,
		amount TEXT NOT NULL,
		direction TEXT NOT NULL CHECK (direction IN ('in', 'out')),
		account_code TEXT NOT NULL,
		account_type TEXT NOT NULL,
		memo TEXT NOT NULL DEFAULT '',
		counterparty TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT 'USD',
		status TEXT NOT NULL DEFAULT 'posted' CHECK (status IN ('draft', 'posted', 'void')),
		match_id TEXT
	);

	-- Candidate discovery is an indexed range scan, never a full walk.
	CREATE INDEX idx_journal_entries_window
		ON journal_entries(user_id, entry_date, amount);
	CREATE INDEX idx_journal_entries_match ON journal_entries(match_id);
	`

	_, err := tx.Exec(query)
	return err
}

// migration003ReconciliationMatches creates the match rows, ordered
// link tables, and the audit trail. The partial unique index on active
// link rows is the database-level backstop for the at-most-one-active-
// match invariant.
func migration003ReconciliationMatches(tx *sql.Tx) error {
	query := `
	CREATE TABLE reconciliation_matches (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		match_score INTEGER NOT NULL,
		score_breakdown TEXT NOT NULL DEFAULT '{}',
		match_type TEXT NOT NULL DEFAULT 'single',
		status TEXT NOT NULL CHECK (status IN ('auto_accepted', 'pending_review', 'accepted', 'rejected')),
		rule_version_id TEXT NOT NULL,
		fee_adjustment TEXT,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX idx_matches_user_status ON reconciliation_matches(user_id, status);
	CREATE INDEX idx_matches_score ON reconciliation_matches(match_score);

	CREATE TABLE match_transactions (
		match_id TEXT NOT NULL REFERENCES reconciliation_matches(id),
		txn_id TEXT NOT NULL REFERENCES atomic_transactions(id),
		position INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (match_id, txn_id)
	);

	CREATE UNIQUE INDEX idx_one_active_match_per_txn
		ON match_transactions(txn_id) WHERE active = 1;

	CREATE TABLE match_entries (
		match_id TEXT NOT NULL REFERENCES reconciliation_matches(id),
		entry_id INTEGER NOT NULL REFERENCES journal_entries(id),
		position INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (match_id, entry_id)
	);

	CREATE TABLE match_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL REFERENCES reconciliation_matches(id),
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		actor TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX idx_match_audit_match ON match_audit(match_id);
	`

	_, err := tx.Exec(query)
	return err
}

func migration004ConsistencyChecks(tx *sql.Tx) error {
	query := `
	CREATE TABLE consistency_checks (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		check_type TEXT NOT NULL CHECK (check_type IN ('duplicate', 'transfer_pair', 'anomaly')),
		related_txn_ids TEXT NOT NULL DEFAULT '[]',
		details TEXT NOT NULL DEFAULT '{}',
		severity TEXT NOT NULL DEFAULT 'info',
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected', 'flagged')),
		content_key TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, content_key)
	);

	CREATE INDEX idx_checks_user_status ON consistency_checks(user_id, status);
	`

	_, err := tx.Exec(query)
	return err
}

func migration005RuleVersions(tx *sql.Tx) error {
	query := `
	CREATE TABLE rule_versions (
		id TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL UNIQUE,
		config TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := tx.Exec(query)
	return err
}

func migration006MatchRuns(tx *sql.Tx) error {
	query := `
	CREATE TABLE match_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		rule_version_id TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMP,
		txns_seen INTEGER NOT NULL DEFAULT 0,
		matched INTEGER NOT NULL DEFAULT 0,
		auto_accepted INTEGER NOT NULL DEFAULT 0,
		pending_review INTEGER NOT NULL DEFAULT 0,
		unmatched INTEGER NOT NULL DEFAULT 0,
		errored INTEGER NOT NULL DEFAULT 0,
		dry_run INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running'
	);

	CREATE INDEX idx_match_runs_user ON match_runs(user_id, started_at);
	`

	_, err := tx.Exec(query)
	return err
}

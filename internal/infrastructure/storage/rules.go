package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/domain/scorer"
)

// EnsureRuleVersion resolves a rules snapshot to its immutable version
// row. Identical configurations share one row via the content hash, so
// replaying a run under unchanged rules resolves to the same version.
func (s *Storage) EnsureRuleVersion(ctx context.Context, rules scorer.Rules) (model.RuleVersion, error) {
	if err := rules.Validate(); err != nil {
		return model.RuleVersion{}, fmt.Errorf("invalid rules: %w", err)
	}

	hash := rules.ContentHash()

	existing, err := s.ruleVersionByHash(ctx, hash)
	if err != nil {
		return model.RuleVersion{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	configJSON, _ := json.Marshal(rules)
	version := model.RuleVersion{
		ID:          uuid.NewString(),
		ContentHash: hash,
		ConfigJSON:  string(configJSON),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rule_versions (id, content_hash, config) VALUES (?, ?, ?)
	`, version.ID, version.ContentHash, version.ConfigJSON)
	if err != nil {
		if isUniqueViolation(err) {
			existing, lookupErr := s.ruleVersionByHash(ctx, hash)
			if lookupErr == nil && existing != nil {
				return *existing, nil
			}
		}
		return model.RuleVersion{}, err
	}

	return s.mustGetRuleVersion(ctx, version.ID)
}

// GetRuleVersion retrieves a version by id; nil when absent
func (s *Storage) GetRuleVersion(ctx context.Context, id string) (*model.RuleVersion, error) {
	version, err := scanRuleVersion(s.db.QueryRowContext(ctx, `
		SELECT id, content_hash, config, created_at FROM rule_versions WHERE id = ?
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return version, err
}

// RulesForVersion decodes the scoring rules stored in a version row.
func RulesForVersion(version model.RuleVersion) (scorer.Rules, error) {
	var rules scorer.Rules
	if err := json.Unmarshal([]byte(version.ConfigJSON), &rules); err != nil {
		return scorer.Rules{}, fmt.Errorf("corrupt rule version %s: %w", version.ID, err)
	}
	return rules, nil
}

func (s *Storage) ruleVersionByHash(ctx context.Context, hash string) (*model.RuleVersion, error) {
	version, err := scanRuleVersion(s.db.QueryRowContext(ctx, `
		SELECT id, content_hash, config, created_at FROM rule_versions WHERE content_hash = ?
	`, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return version, err
}

func (s *Storage) mustGetRuleVersion(ctx context.Context, id string) (model.RuleVersion, error) {
	version, err := s.GetRuleVersion(ctx, id)
	if err != nil {
		return model.RuleVersion{}, err
	}
	if version == nil {
		return model.RuleVersion{}, fmt.Errorf("rule version %s vanished after insert", id)
	}
	return *version, nil
}

func scanRuleVersion(row rowScanner) (*model.RuleVersion, error) {
	var version model.RuleVersion
	err := row.Scan(&version.ID, &version.ContentHash, &version.ConfigJSON, &version.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &version, nil
}

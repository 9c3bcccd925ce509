package dto

import (
	"time"

	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// IngestResponse reports the outcome of a transaction batch upsert.
type IngestResponse struct {
	Created    int      `json:"created"`
	Duplicates int      `json:"duplicates"`
	IDs        []string `json:"ids"`
}

// RunResponse reports the outcome of a matching run.
type RunResponse struct {
	RunID         int64    `json:"run_id"`
	RuleVersionID string   `json:"rule_version_id"`
	TxnsSeen      int      `json:"txns_seen"`
	Matched       int      `json:"matched"`
	AutoAccepted  int      `json:"auto_accepted"`
	PendingReview int      `json:"pending_review"`
	Unmatched     int      `json:"unmatched"`
	Errored       int      `json:"errored"`
	NewChecks     int      `json:"new_checks"`
	Errors        []string `json:"errors,omitempty"`
}

// RunListResponse is returned when listing matching runs.
type RunListResponse struct {
	Runs  []model.MatchRun `json:"runs"`
	Count int              `json:"count"`
}

// MatchResponse is one match with its audit history.
type MatchResponse struct {
	Match model.ReconciliationMatch `json:"match"`
	Audit []model.MatchAudit        `json:"audit,omitempty"`
}

// BatchAcceptResponse lists the matches a successful batch applied.
type BatchAcceptResponse struct {
	Accepted []string `json:"accepted"`
	Count    int      `json:"count"`
}

// CheckListResponse is returned when listing consistency checks.
type CheckListResponse struct {
	Checks []model.ConsistencyCheck `json:"checks"`
	Count  int                      `json:"count"`
}

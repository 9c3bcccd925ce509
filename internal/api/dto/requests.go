package dto

// TransactionPayload is one bank/brokerage movement in an ingest batch.
// Amounts travel as strings so no precision is lost in transit.
type TransactionPayload struct {
	Date        string `json:"date"` // YYYY-MM-DD or RFC3339
	Amount      string `json:"amount"`
	Direction   string `json:"direction"` // in | out
	Description string `json:"description"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference,omitempty"`
	SourceRef   string `json:"source_ref,omitempty"`
}

// IngestRequest is a batch of transactions to upsert. Re-sending the
// same batch is safe: duplicates collapse onto the existing rows.
type IngestRequest struct {
	UserID       string               `json:"user_id"`
	Transactions []TransactionPayload `json:"transactions"`
}

// RunRequest starts a matching run. RuleVersionID optionally replays
// the run under a previously stored rule snapshot.
type RunRequest struct {
	UserID        string `json:"user_id"`
	DryRun        bool   `json:"dry_run,omitempty"`
	RuleVersionID string `json:"rule_version_id,omitempty"`
}

// DecisionRequest carries the actor for accept operations.
type DecisionRequest struct {
	Actor string `json:"actor"`
}

// RejectRequest carries the actor and reason for reject and unmatch.
type RejectRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// BatchAcceptRequest accepts several pending matches as one unit.
type BatchAcceptRequest struct {
	MatchIDs []string `json:"match_ids"`
	Actor    string   `json:"actor"`
}

// ResolveCheckRequest moves a consistency check out of pending.
type ResolveCheckRequest struct {
	Status string `json:"status"` // approved | rejected | flagged
	Actor  string `json:"actor"`
}

// ReviewListParams represents query parameters for the review queue.
type ReviewListParams struct {
	UserID   string `json:"user_id"`
	Status   string `json:"status"`
	MinScore int    `json:"min_score"`
	MaxScore int    `json:"max_score"`
	DaysBack int    `json:"days_back"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}

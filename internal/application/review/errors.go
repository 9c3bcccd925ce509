package review

import (
	"fmt"
	"strings"
)

// Violation is one reason a batch member blocked the batch.
type Violation struct {
	MatchID string `json:"match_id"`
	Reason  string `json:"reason"`
}

// BatchSafetyError rejects an entire batch accept: no member is applied
// when any member violates a safety condition.
type BatchSafetyError struct {
	Violations []Violation
}

func (e *BatchSafetyError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s: %s", v.MatchID, v.Reason)
	}
	return "batch accept blocked: " + strings.Join(parts, "; ")
}

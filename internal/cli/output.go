package cli

import (
	"fmt"
	"strings"

	"github.com/ledgermatch/reconcile-backend/internal/application/engine"
)

// PrintHeader prints the batch runner header
func PrintHeader(userID string, dryRun bool) {
	mode := "PRODUCTION"
	if dryRun {
		mode = "DRY-RUN"
	}
	fmt.Printf("reconcile: user %s (%s mode)\n\n", userID, mode)
}

// PrintRunSummary prints the matching run summary
func PrintRunSummary(summary *engine.Summary) {
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Run #%d (rules %s)\n", summary.RunID, summary.RuleVersionID)
	fmt.Printf("Seen=%d Matched=%d AutoAccepted=%d PendingReview=%d Unmatched=%d Errors=%d\n",
		summary.TxnsSeen,
		summary.Matched,
		summary.AutoAccepted,
		summary.PendingReview,
		summary.Unmatched,
		summary.Errored)

	if summary.NewChecks > 0 {
		fmt.Printf("New consistency checks: %d\n", summary.NewChecks)
	}

	if len(summary.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, msg := range summary.Errors {
			fmt.Printf("  - %s\n", msg)
		}
	}
}

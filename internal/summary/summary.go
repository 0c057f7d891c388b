// Package summary builds the end-of-run report from per-session records,
// healing the fast aggregate when it disagrees with them.
package summary

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/court-booker/internal/types"
)

// Input carries everything the aggregator needs: the per-session records
// (the source of truth) and the coordinator's running fast-path counts.
type Input struct {
	RunID         uuid.UUID
	TargetDate    types.TargetDate
	Outcomes      []types.SessionOutcome
	FastSucceeded int
	FastFailed    int
	GeneratedAt   time.Time
}

// Build assembles the run summary. Attempt counts always come from the
// sessions themselves. The succeeded/failed totals prefer the fast
// aggregate, but when it reports nothing while the sessions hold records
// the totals are rebuilt from the sessions and the summary is marked
// reconciled.
func Build(in Input) types.RunSummary {
	sessionSucceeded := 0
	sessionFailed := 0
	attempted := 0
	for _, o := range in.Outcomes {
		sessionSucceeded += len(o.Successful)
		sessionFailed += len(o.Failed)
		attempted += o.Attempted
	}

	succeeded := in.FastSucceeded
	failed := in.FastFailed
	reconciled := false

	if succeeded == 0 && failed == 0 && (sessionSucceeded > 0 || sessionFailed > 0) {
		succeeded = sessionSucceeded
		failed = sessionFailed
		reconciled = true
		fmt.Printf("summary: fast aggregate empty, rebuilt from %d session record(s)\n", len(in.Outcomes))
	}

	return types.RunSummary{
		RunID:          in.RunID,
		GeneratedAt:    in.GeneratedAt,
		TargetDate:     in.TargetDate,
		PerSession:     in.Outcomes,
		TotalAttempted: attempted,
		TotalSucceeded: succeeded,
		TotalFailed:    failed,
		Reconciled:     reconciled,
	}
}

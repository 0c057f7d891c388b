package summary

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/court-booker/internal/types"
)

func outcome(account string, succeeded, failed int) types.SessionOutcome {
	o := types.SessionOutcome{
		SessionID:  uuid.New(),
		AccountID:  account,
		ResourceID: "Court 1",
		State:      types.StateClosed,
		Attempted:  succeeded + failed,
	}
	for i := 0; i < succeeded; i++ {
		o.Successful = append(o.Successful, types.Slot{ResourceID: "Court 1", Date: "29/09/2026", Time: "1900"})
	}
	for i := 0; i < failed; i++ {
		o.Failed = append(o.Failed, types.Slot{ResourceID: "Court 1", Date: "29/09/2026", Time: "2000"})
	}
	return o
}

func TestBuild_FastPathAgrees(t *testing.T) {
	s := Build(Input{
		RunID:         uuid.New(),
		Outcomes:      []types.SessionOutcome{outcome("alice", 1, 0), outcome("bob", 1, 1)},
		FastSucceeded: 2,
		FastFailed:    1,
		GeneratedAt:   time.Now(),
	})

	assert.False(t, s.Reconciled)
	assert.Equal(t, 2, s.TotalSucceeded)
	assert.Equal(t, 1, s.TotalFailed)
	assert.Equal(t, 3, s.TotalAttempted)
	assert.Len(t, s.PerSession, 2)
}

func TestBuild_EmptyFastAggregateIsRebuiltFromSessions(t *testing.T) {
	s := Build(Input{
		RunID:       uuid.New(),
		Outcomes:    []types.SessionOutcome{outcome("alice", 2, 0), outcome("bob", 0, 1)},
		GeneratedAt: time.Now(),
	})

	assert.True(t, s.Reconciled)
	assert.Equal(t, 2, s.TotalSucceeded)
	assert.Equal(t, 1, s.TotalFailed)
	assert.Equal(t, 3, s.TotalAttempted)
}

func TestBuild_NothingAttemptedIsNotReconciliation(t *testing.T) {
	s := Build(Input{
		RunID:       uuid.New(),
		Outcomes:    []types.SessionOutcome{outcome("alice", 0, 0)},
		GeneratedAt: time.Now(),
	})

	assert.False(t, s.Reconciled)
	assert.Equal(t, 0, s.TotalSucceeded)
	assert.Equal(t, 0, s.TotalFailed)
	assert.Equal(t, 0, s.TotalAttempted)
}

// A session that crashed mid-booking leaves its slot in the failed set and
// no success record; the summary counts it as failed rather than dropping it.
func TestBuild_MidSessionCrashCountsAsFailed(t *testing.T) {
	crashed := outcome("carol", 0, 1)
	crashed.State = types.StateFailed
	crashed.FailReason = types.FailNetwork

	s := Build(Input{
		RunID:       uuid.New(),
		Outcomes:    []types.SessionOutcome{outcome("alice", 1, 0), crashed},
		GeneratedAt: time.Now(),
	})

	assert.True(t, s.Reconciled)
	assert.Equal(t, 1, s.TotalSucceeded)
	assert.Equal(t, 1, s.TotalFailed)
	assert.Equal(t, 2, s.TotalAttempted)
}

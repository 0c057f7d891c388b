package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/court-booker/internal/audit"
	"github.com/jonathan/court-booker/internal/browser"
	"github.com/jonathan/court-booker/internal/credentials"
	"github.com/jonathan/court-booker/internal/retry"
	"github.com/jonathan/court-booker/internal/types"
)

func testAssignment() types.Assignment {
	return types.Assignment{
		AccountID:   "alice",
		Email:       "alice@example.com",
		ResourceID:  "Court 1",
		ResourceURL: "https://example.com/court-1",
		Weekday:     "Saturday",
		TimeOfDay:   "1400",
	}
}

func testTiming() Timing {
	return Timing{
		InitTimeout:     time.Second,
		LoginTimeout:    10 * time.Millisecond,
		ProbeTimeout:    time.Millisecond,
		ActionTimeout:   10 * time.Millisecond,
		BookingDeadline: 2 * time.Minute,
	}
}

func fastRetry(maxAttempts int, classify retry.Classifier) *retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = maxAttempts
	p.BaseDelay = time.Millisecond
	p.RateLimitDelay = time.Millisecond
	if classify != nil {
		p.Classify = classify
	}
	return p
}

func testDeps(stub *browser.Stub, sink *audit.MemorySink) Deps {
	return Deps{
		Factory:     func(context.Context) (browser.Automation, error) { return stub, nil },
		Credentials: credentials.NewResolver(nil),
		Audit:       audit.NewWriter(sink, fastRetry(2, nil)),
		Targets:     DefaultTargets(),
		Timing:      testTiming(),
		LoginRetry:  fastRetry(2, loginPolicy().Classify),
	}
}

// fakeClock advances a fixed step on every reading so deadline loops
// terminate deterministically without real waits.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

// successfulBookingStub scripts a page where the target date heading is
// visible and carries the target date text.
func successfulBookingStub(target types.TargetDate) *browser.Stub {
	stub := browser.NewStub()
	stub.OuterHTMLFn = func(context.Context) (string, error) {
		return `<html><body><h4 class="timetable-title">` + target.WeekdayName + " " + target.CalendarDate() + `</h4></body></html>`, nil
	}
	return stub
}

func TestSession_FullHappyPath(t *testing.T) {
	t.Setenv("ALICE_PASSWORD", "pw")

	target := types.TargetDate{Date: time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC), WeekdayName: "Friday"}
	stub := successfulBookingStub(target)
	sink := audit.NewMemorySink()
	s := New(testAssignment(), testDeps(stub, sink))
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	assert.Equal(t, types.StateInitialized, s.State())

	require.NoError(t, s.Login(ctx))
	assert.Equal(t, types.StateLoggedIn, s.State())

	require.NoError(t, s.BookAssignedSlot(ctx, target))
	require.NoError(t, s.Checkout(ctx))
	assert.Equal(t, types.StateCheckedOut, s.State())

	require.NoError(t, s.Logout(ctx))
	require.NoError(t, s.Close(ctx))
	assert.Equal(t, types.StateClosed, s.State())
	assert.True(t, stub.Closed())

	outcome := s.Outcome()
	assert.Equal(t, 1, outcome.Attempted)
	require.Len(t, outcome.Successful, 1)
	assert.Empty(t, outcome.Failed)
	assert.Equal(t, types.Slot{ResourceID: "Court 1", Date: "05/04/2024", Time: "1400"}, outcome.Successful[0])

	entries := sink.All()
	require.Len(t, entries, 1)
	assert.Equal(t, types.StatusSuccess, entries[0].Status)
	assert.Equal(t, "alice", entries[0].AccountID)
}

func TestSession_InitFailureMarksInitTimeout(t *testing.T) {
	sink := audit.NewMemorySink()
	deps := testDeps(browser.NewStub(), sink)
	deps.Factory = func(context.Context) (browser.Automation, error) {
		return nil, errors.New("browser start timeout")
	}

	s := New(testAssignment(), deps)
	err := s.Initialize(context.Background())

	require.Error(t, err)
	assert.Equal(t, types.StateFailed, s.State())
	assert.Equal(t, types.FailInitTimeout, s.FailReason())
	assert.False(t, s.Live())
	assert.Equal(t, 0, s.Outcome().Attempted)
}

func TestSession_LoginInvalidCredentialsIsNotRetried(t *testing.T) {
	t.Setenv("ALICE_PASSWORD", "wrong")

	stub := browser.NewStub()
	stub.CheckReadyFn = func(_ context.Context, selector string, _ time.Duration) (bool, error) {
		// Neither the privacy banner nor the logged-in marker appears.
		return false, nil
	}
	stub.OuterHTMLFn = func(context.Context) (string, error) {
		return `<html><body><div class="validation-summary-errors">Email address or password incorrect</div></body></html>`, nil
	}

	sink := audit.NewMemorySink()
	s := New(testAssignment(), testDeps(stub, sink))
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	err := s.Login(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, types.FailInvalidCredentials, s.FailReason())

	submits := 0
	for _, call := range stub.Calls() {
		if strings.HasPrefix(call, "submit:") {
			submits++
		}
	}
	assert.Equal(t, 1, submits, "credential rejection must not be retried")
}

func TestSession_LoginTimeoutRetriedOnceThenNetworkFailure(t *testing.T) {
	t.Setenv("ALICE_PASSWORD", "pw")

	stub := browser.NewStub()
	stub.CheckReadyFn = func(_ context.Context, selector string, _ time.Duration) (bool, error) {
		return false, nil
	}
	// No error banner in the page: the marker simply never shows up.

	sink := audit.NewMemorySink()
	s := New(testAssignment(), testDeps(stub, sink))
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	err := s.Login(ctx)

	require.Error(t, err)
	assert.Equal(t, types.FailNetwork, s.FailReason())

	submits := 0
	for _, call := range stub.Calls() {
		if strings.HasPrefix(call, "submit:") {
			submits++
		}
	}
	assert.Equal(t, 2, submits, "timeout gets exactly one retry")
}

func TestSession_MissingPasswordFailsSession(t *testing.T) {
	sink := audit.NewMemorySink()
	s := New(testAssignment(), testDeps(browser.NewStub(), sink))
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	err := s.Login(ctx)

	require.Error(t, err)
	assert.Equal(t, types.FailInvalidCredentials, s.FailReason())
}

func TestSession_BookingDeadlineProducesOneFailedEntry(t *testing.T) {
	t.Setenv("ALICE_PASSWORD", "pw")

	stub := browser.NewStub()
	stub.CheckReadyFn = func(_ context.Context, selector string, _ time.Duration) (bool, error) {
		// Logged-in marker appears, but the calendar never reaches the
		// target date and no next-week control shows up.
		return strings.Contains(selector, "logout"), nil
	}

	sink := audit.NewMemorySink()
	s := New(testAssignment(), testDeps(stub, sink))
	clock := &fakeClock{now: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), step: 10 * time.Second}
	s.now = clock.Now

	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Login(ctx))

	target := types.TargetDate{Date: time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC), WeekdayName: "Friday"}
	require.NoError(t, s.BookAssignedSlot(ctx, target))

	// One FAILED entry for the slot, no SUCCESS entries.
	entries := sink.All()
	require.Len(t, entries, 1)
	assert.Equal(t, types.StatusFailed, entries[0].Status)

	// Deadline exhaustion is not session-fatal: later phases still run.
	assert.True(t, s.Live())
	require.NoError(t, s.Checkout(ctx))
	require.NoError(t, s.Logout(ctx))
	require.NoError(t, s.Close(ctx))
	assert.Equal(t, types.StateClosed, s.State())
	assert.True(t, stub.Closed())

	outcome := s.Outcome()
	assert.Equal(t, 1, outcome.Attempted)
	assert.Empty(t, outcome.Successful)
	require.Len(t, outcome.Failed, 1)
}

func TestSession_BookingLoopTerminatesWithinDeadline(t *testing.T) {
	t.Setenv("ALICE_PASSWORD", "pw")

	stub := browser.NewStub()
	stub.CheckReadyFn = func(_ context.Context, selector string, _ time.Duration) (bool, error) {
		return strings.Contains(selector, "logout"), nil
	}

	sink := audit.NewMemorySink()
	deps := testDeps(stub, sink)
	deps.Timing.BookingDeadline = time.Minute
	s := New(testAssignment(), deps)

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: start, step: time.Second}
	s.now = clock.Now

	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Login(ctx))

	target := types.TargetDate{Date: start.AddDate(0, 0, 35), WeekdayName: "Friday"}
	require.NoError(t, s.BookAssignedSlot(ctx, target))

	// The loop observed the deadline: the fake clock never ran past the
	// window by more than one step per probe.
	assert.LessOrEqual(t, clock.Now().Sub(start), 2*time.Minute)
}

func TestSession_BookingActionFailureReloadsAndRetriesWithinDeadline(t *testing.T) {
	t.Setenv("ALICE_PASSWORD", "pw")

	target := types.TargetDate{Date: time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC), WeekdayName: "Friday"}
	stub := successfulBookingStub(target)

	var confirmChecks int
	stub.CheckReadyFn = func(_ context.Context, selector string, _ time.Duration) (bool, error) {
		if strings.Contains(selector, "basket-added") {
			confirmChecks++
			// First booking attempt gets no confirmation; the second
			// succeeds after the reload.
			return confirmChecks > 1, nil
		}
		return true, nil
	}

	sink := audit.NewMemorySink()
	s := New(testAssignment(), testDeps(stub, sink))
	clock := &fakeClock{now: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), step: time.Second}
	s.now = clock.Now

	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Login(ctx))
	require.NoError(t, s.BookAssignedSlot(ctx, target))

	outcome := s.Outcome()
	require.Len(t, outcome.Successful, 1)
	assert.Contains(t, stub.Calls(), "reload")

	entries := sink.All()
	require.Len(t, entries, 1)
	assert.Equal(t, types.StatusSuccess, entries[0].Status)
}

func TestSession_CheckoutIsIdempotentWithNothingPending(t *testing.T) {
	t.Setenv("ALICE_PASSWORD", "pw")

	stub := browser.NewStub()
	sink := audit.NewMemorySink()
	s := New(testAssignment(), testDeps(stub, sink))
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.Login(ctx))

	require.NoError(t, s.Checkout(ctx))
	require.NoError(t, s.Checkout(ctx))
	assert.Equal(t, types.StateCheckedOut, s.State())

	// No basket navigation happened: nothing was booked.
	for _, call := range stub.Calls() {
		assert.NotContains(t, call, "basket")
	}
}

func TestSession_CloseRunsForFailedSession(t *testing.T) {
	t.Setenv("ALICE_PASSWORD", "wrong")

	stub := browser.NewStub()
	stub.CheckReadyFn = func(context.Context, string, time.Duration) (bool, error) { return false, nil }
	stub.OuterHTMLFn = func(context.Context) (string, error) {
		return `<div class="validation-summary-errors">nope</div>`, nil
	}

	sink := audit.NewMemorySink()
	s := New(testAssignment(), testDeps(stub, sink))
	ctx := context.Background()

	require.NoError(t, s.Initialize(ctx))
	require.Error(t, s.Login(ctx))

	require.NoError(t, s.Close(ctx))
	assert.True(t, stub.Closed())
	// FAILED is absorbing: close releases the browser but keeps the state.
	assert.Equal(t, types.StateFailed, s.State())
}

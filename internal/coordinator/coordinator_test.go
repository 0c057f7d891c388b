package coordinator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/court-booker/internal/audit"
	"github.com/jonathan/court-booker/internal/browser"
	"github.com/jonathan/court-booker/internal/credentials"
	"github.com/jonathan/court-booker/internal/session"
	"github.com/jonathan/court-booker/internal/types"
)

var testTarget = types.TargetDate{
	Date:        time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC),
	WeekdayName: "Saturday",
}

func testAssignments() []types.Assignment {
	return []types.Assignment{
		{AccountID: "alice", Email: "alice@example.com", ResourceID: "Court 1", ResourceURL: "https://camdenactive.camden.gov.uk/courts/1", Weekday: "Saturday", TimeOfDay: "1900"},
		{AccountID: "bob", Email: "bob@example.com", ResourceID: "Court 2", ResourceURL: "https://camdenactive.camden.gov.uk/courts/2", Weekday: "Saturday", TimeOfDay: "1900"},
		{AccountID: "carol", Email: "carol@example.com", ResourceID: "Court 3", ResourceURL: "https://camdenactive.camden.gov.uk/courts/3", Weekday: "Saturday", TimeOfDay: "2000"},
	}
}

func setPasswords(t *testing.T) {
	t.Helper()
	t.Setenv("ALICE_PASSWORD", "pw-a")
	t.Setenv("BOB_PASSWORD", "pw-b")
	t.Setenv("CAROL_PASSWORD", "pw-c")
}

// bookableStub returns a stub whose calendar already shows the target date,
// so the booking loop succeeds on its first pass.
func bookableStub() *browser.Stub {
	stub := browser.NewStub()
	stub.OuterHTMLFn = func(context.Context) (string, error) {
		return fmt.Sprintf(`<html><body><h4 class="timetable-title">Saturday %s</h4></body></html>`, testTarget.CalendarDate()), nil
	}
	return stub
}

// trackingFactory hands out one stub per acquisition and remembers them so
// the test can assert every browser was released.
type trackingFactory struct {
	mu    sync.Mutex
	stubs []*browser.Stub
	build func() (*browser.Stub, error)
}

func (f *trackingFactory) factory(context.Context) (browser.Automation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stub, err := f.build()
	if err != nil {
		return nil, err
	}
	f.stubs = append(f.stubs, stub)
	return stub, nil
}

func TestCoordinator_ThreeSessionsFullRun(t *testing.T) {
	setPasswords(t)

	factory := &trackingFactory{build: func() (*browser.Stub, error) { return bookableStub(), nil }}
	sink := audit.NewMemorySink()
	c := New(session.Deps{
		Factory:     factory.factory,
		Credentials: credentials.NewResolver(nil),
		Audit:       audit.NewWriter(sink, nil),
	})

	ctx := context.Background()
	require.NoError(t, c.InitializeSessions(ctx, testAssignments()))
	c.Run(ctx, testTarget)

	s := c.AggregateSummary(testTarget)
	assert.Equal(t, 3, s.TotalAttempted)
	assert.Equal(t, 3, s.TotalSucceeded)
	assert.Equal(t, 0, s.TotalFailed)
	assert.False(t, s.Reconciled)

	for _, sess := range c.Sessions() {
		assert.Equal(t, types.StateClosed, sess.State(), sess.Assignment.AccountID)
	}
	for _, stub := range factory.stubs {
		assert.True(t, stub.Closed())
	}

	// One audit entry per slot attempt.
	assert.Len(t, sink.All(), 3)
}

func TestCoordinator_InitFailureDoesNotTouchSiblings(t *testing.T) {
	setPasswords(t)

	var calls int
	factory := &trackingFactory{build: func() (*browser.Stub, error) {
		calls++
		if calls == 1 {
			return nil, fmt.Errorf("no free browser")
		}
		return bookableStub(), nil
	}}
	c := New(session.Deps{
		Factory:     factory.factory,
		Credentials: credentials.NewResolver(nil),
		Audit:       audit.NewWriter(audit.NewMemorySink(), nil),
	})

	ctx := context.Background()
	require.NoError(t, c.InitializeSessions(ctx, testAssignments()))
	c.Run(ctx, testTarget)

	var failed, closed int
	for _, sess := range c.Sessions() {
		switch sess.State() {
		case types.StateFailed:
			failed++
			assert.Equal(t, types.FailInitTimeout, sess.FailReason())
		case types.StateClosed:
			closed++
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, closed)

	s := c.AggregateSummary(testTarget)
	assert.Equal(t, 2, s.TotalAttempted)
	assert.Equal(t, 2, s.TotalSucceeded)
}

func TestCoordinator_AllAcquisitionsFailingIsARunError(t *testing.T) {
	factory := &trackingFactory{build: func() (*browser.Stub, error) {
		return nil, fmt.Errorf("browser pool exhausted")
	}}
	c := New(session.Deps{
		Factory:     factory.factory,
		Credentials: credentials.NewResolver(nil),
		Audit:       audit.NewWriter(audit.NewMemorySink(), nil),
	})

	err := c.InitializeSessions(context.Background(), testAssignments())
	assert.Error(t, err)
}

func TestCoordinator_CleanupReleasesEveryBrowser(t *testing.T) {
	setPasswords(t)

	// Bob's login never completes; his session fails but his browser must
	// still be released by cleanup.
	factory := &trackingFactory{build: func() (*browser.Stub, error) {
		stub := bookableStub()
		return stub, nil
	}}
	c := New(session.Deps{
		Factory:     factory.factory,
		Credentials: credentials.NewResolver(nil),
		Audit:       audit.NewWriter(audit.NewMemorySink(), nil),
	})

	ctx := context.Background()
	assignments := testAssignments()
	require.NoError(t, c.InitializeSessions(ctx, assignments))

	// Fail one session before the run by stripping its password.
	t.Setenv("BOB_PASSWORD", "")
	c.Run(ctx, testTarget)

	var failed int
	for _, sess := range c.Sessions() {
		if sess.State() == types.StateFailed {
			failed++
		}
	}
	assert.Equal(t, 1, failed)
	for _, stub := range factory.stubs {
		assert.True(t, stub.Closed())
	}
}

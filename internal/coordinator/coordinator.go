// Package coordinator fans the booking workflow out across one session per
// assignment, with strict phase barriers and per-session failure isolation.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/court-booker/internal/session"
	"github.com/jonathan/court-booker/internal/summary"
	"github.com/jonathan/court-booker/internal/types"
)

// Coordinator owns the run's sessions and drives them phase by phase.
// Phases are a strict barrier sequence: a phase is attempted by every live
// session before any session enters the next one, so the booking phase
// starts for all accounts at essentially the same instant relative to the
// slot release.
type Coordinator struct {
	RunID uuid.UUID

	deps     session.Deps
	sessions []*session.Session

	// Fast-path aggregate. A cache of per-session results, never the
	// source of truth; the summary aggregator reconciles from sessions
	// when it disagrees.
	mu            sync.Mutex
	allSuccessful []types.Slot
	allFailed     []types.Slot
}

// New creates a coordinator for one run.
func New(deps session.Deps) *Coordinator {
	return &Coordinator{
		RunID: uuid.New(),
		deps:  deps,
	}
}

// Sessions returns the sessions created so far.
func (c *Coordinator) Sessions() []*session.Session {
	return c.sessions
}

// InitializeSessions creates one session per assignment and acquires all
// automation resources concurrently. A per-session acquisition failure
// marks that session FAILED(init) and keeps its siblings untouched.
func (c *Coordinator) InitializeSessions(ctx context.Context, assignments []types.Assignment) error {
	fmt.Printf("=== Initializing %d booking session(s) ===\n", len(assignments))

	for _, a := range assignments {
		c.sessions = append(c.sessions, session.New(a, c.deps))
	}

	var g errgroup.Group
	for _, s := range c.sessions {
		s := s
		g.Go(func() error {
			if err := s.Initialize(ctx); err != nil {
				// Recorded on the session; not a run error.
				fmt.Printf("session %s failed to initialize: %v\n", s.Assignment.AccountID, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	live := 0
	for _, s := range c.sessions {
		if s.Live() {
			live++
		}
	}
	fmt.Printf("=== %d/%d session(s) initialized ===\n", live, len(c.sessions))

	if len(c.sessions) > 0 && live == 0 {
		return fmt.Errorf("no session could acquire a browser")
	}
	return nil
}

// runPhase fans phaseFn out to every live session and waits for all of
// them. Sessions run unordered within the phase; an error in one is
// recorded on that session and never cancels or delays the others.
func (c *Coordinator) runPhase(ctx context.Context, name string, phaseFn func(context.Context, *session.Session) error) {
	fmt.Printf("--- Phase: %s ---\n", name)

	var g errgroup.Group
	for _, s := range c.sessions {
		if !s.Live() {
			continue
		}
		s := s
		g.Go(func() error {
			if err := phaseFn(ctx, s); err != nil {
				fmt.Printf("%s: %s failed: %v\n", name, s.Assignment.AccountID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Run drives the full barrier sequence: login -> book -> checkout ->
// logout -> cleanup. Cleanup runs for every created session, whatever
// happened before.
func (c *Coordinator) Run(ctx context.Context, target types.TargetDate) {
	c.runPhase(ctx, "login", func(ctx context.Context, s *session.Session) error {
		return s.Login(ctx)
	})
	c.runPhase(ctx, "book", func(ctx context.Context, s *session.Session) error {
		err := s.BookAssignedSlot(ctx, target)
		c.collect(s)
		return err
	})
	c.runPhase(ctx, "checkout", func(ctx context.Context, s *session.Session) error {
		return s.Checkout(ctx)
	})
	c.runPhase(ctx, "logout", func(ctx context.Context, s *session.Session) error {
		return s.Logout(ctx)
	})
	c.Cleanup(ctx)
}

// Cleanup releases every created session's browser, including sessions
// that failed earlier phases. Unconditional by contract.
func (c *Coordinator) Cleanup(ctx context.Context) {
	fmt.Printf("--- Phase: cleanup ---\n")

	var wg sync.WaitGroup
	for _, s := range c.sessions {
		wg.Add(1)
		s := s
		go func() {
			defer wg.Done()
			_ = s.Close(ctx)
		}()
	}
	wg.Wait()
}

// collect folds one session's slot sets into the fast-path aggregate.
func (c *Coordinator) collect(s *session.Session) {
	outcome := s.Outcome()
	c.mu.Lock()
	c.allSuccessful = append(c.allSuccessful, outcome.Successful...)
	c.allFailed = append(c.allFailed, outcome.Failed...)
	c.mu.Unlock()
}

// AggregateSummary builds the run summary, reconciling from per-session
// records when the fast aggregate disagrees with them.
func (c *Coordinator) AggregateSummary(target types.TargetDate) types.RunSummary {
	outcomes := make([]types.SessionOutcome, 0, len(c.sessions))
	for _, s := range c.sessions {
		outcomes = append(outcomes, s.Outcome())
	}

	c.mu.Lock()
	succeeded := len(c.allSuccessful)
	failed := len(c.allFailed)
	c.mu.Unlock()

	return summary.Build(summary.Input{
		RunID:         c.RunID,
		TargetDate:    target,
		Outcomes:      outcomes,
		FastSucceeded: succeeded,
		FastFailed:    failed,
		GeneratedAt:   time.Now(),
	})
}

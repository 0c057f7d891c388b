// Package session implements the per-account booking workflow as a state
// machine over one exclusively-owned browser automation resource.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/court-booker/internal/audit"
	"github.com/jonathan/court-booker/internal/browser"
	"github.com/jonathan/court-booker/internal/credentials"
	"github.com/jonathan/court-booker/internal/retry"
	"github.com/jonathan/court-booker/internal/screenshot"
	"github.com/jonathan/court-booker/internal/types"
)

// ErrInvalidCredentials marks a login rejection. It is session-fatal and
// never retried.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Deps are the collaborators shared by all sessions in a run.
type Deps struct {
	Factory     browser.Factory
	Credentials *credentials.Resolver
	Audit       *audit.Writer
	Screenshots *screenshot.Store
	Targets     Targets
	Timing      Timing
	LoginRetry  *retry.Policy // nil selects the login default (one retry on timeout)
}

// Session drives one account's login -> book -> checkout -> logout -> close
// workflow. A session is owned by one coordinator goroutine per phase;
// outcome accessors are safe to call concurrently.
type Session struct {
	ID         uuid.UUID
	Assignment types.Assignment

	deps Deps

	mu         sync.Mutex
	state      types.SessionState
	failReason types.FailReason
	auto       browser.Automation
	successful []types.Slot
	failed     []types.Slot
	attempted  int
	shots      []types.ScreenshotRef

	trail *audit.Trail

	// now is swapped in tests to control the booking deadline clock.
	now func() time.Time
}

// New creates a session in the CREATED state.
func New(assignment types.Assignment, deps Deps) *Session {
	if deps.Timing == (Timing{}) {
		deps.Timing = DefaultTiming()
	}
	if deps.Targets == (Targets{}) {
		deps.Targets = DefaultTargets()
	}
	id := uuid.New()
	return &Session{
		ID:         id,
		Assignment: assignment,
		deps:       deps,
		state:      types.StateCreated,
		trail:      audit.NewTrail(fmt.Sprintf("[%s]", assignment.AccountID)),
		now:        time.Now,
	}
}

// State returns the current state.
func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// FailReason returns the failure classification, or FailNone.
func (s *Session) FailReason() types.FailReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failReason
}

// Trail returns the session's ordered log trail.
func (s *Session) Trail() *audit.Trail { return s.trail }

// Screenshots returns the refs captured so far.
func (s *Session) Screenshots() []types.ScreenshotRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ScreenshotRef, len(s.shots))
	copy(out, s.shots)
	return out
}

// Outcome snapshots the session for the run summary.
func (s *Session) Outcome() types.SessionOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.SessionOutcome{
		SessionID:  s.ID,
		AccountID:  s.Assignment.AccountID,
		ResourceID: s.Assignment.ResourceID,
		State:      s.state,
		FailReason: s.failReason,
		Successful: append([]types.Slot(nil), s.successful...),
		Failed:     append([]types.Slot(nil), s.failed...),
		Attempted:  s.attempted,
	}
}

// Live reports whether the session may still enter workflow phases.
func (s *Session) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != types.StateFailed
}

func (s *Session) setState(state types.SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.trail.Logf("state -> %s", state)
}

// fail moves the session to the absorbing FAILED state. The first reason
// wins; later failures only add trail lines.
func (s *Session) fail(reason types.FailReason, detail string) {
	s.mu.Lock()
	if s.state != types.StateFailed {
		s.state = types.StateFailed
		s.failReason = reason
	}
	s.mu.Unlock()
	s.trail.Logf("state -> FAILED(%s): %s", reason, detail)
}

// capture requests a screenshot tagged with the step name. Best-effort by
// contract: it never blocks or fails the step that requested it.
func (s *Session) capture(ctx context.Context, step string) {
	if s.deps.Screenshots == nil {
		return
	}
	s.mu.Lock()
	auto := s.auto
	s.mu.Unlock()
	if auto == nil {
		return
	}

	png, err := auto.CaptureScreenshot(ctx)
	if err != nil {
		s.trail.Logf("screenshot %s skipped: %v", step, err)
		return
	}
	ref, err := s.deps.Screenshots.Save(s.ID, step, png)
	if err != nil {
		s.trail.Logf("screenshot %s not saved: %v", step, err)
		return
	}
	s.mu.Lock()
	s.shots = append(s.shots, ref)
	s.mu.Unlock()
}

// Initialize acquires the browser under the acquisition timeout.
func (s *Session) Initialize(ctx context.Context) error {
	s.trail.Logf("initializing browser for %s (%s)", s.Assignment.AccountID, s.Assignment.ResourceID)

	initCtx, cancel := context.WithTimeout(ctx, s.deps.Timing.InitTimeout)
	defer cancel()

	auto, err := s.deps.Factory(initCtx)
	if err != nil {
		s.fail(types.FailInitTimeout, fmt.Sprintf("browser acquisition failed: %v", err))
		return fmt.Errorf("initialize %s: %w", s.Assignment.AccountID, err)
	}

	s.mu.Lock()
	s.auto = auto
	s.mu.Unlock()
	s.setState(types.StateInitialized)
	return nil
}

// Login authenticates the session's account. A timeout gets one retry and
// then fails the session as network; a credential rejection fails it
// immediately.
func (s *Session) Login(ctx context.Context) error {
	if !s.Live() {
		return nil
	}
	s.trail.Logf("logging in %s (%s)", s.Assignment.AccountID, s.Assignment.Email)

	password, err := s.deps.Credentials.Resolve(s.Assignment.AccountID, s.Assignment.CredentialsRef)
	if err != nil {
		s.fail(types.FailInvalidCredentials, err.Error())
		return err
	}

	policy := s.deps.LoginRetry
	if policy == nil {
		policy = loginPolicy()
	}

	err = policy.Do(ctx, func(ctx context.Context) error {
		return s.loginOnce(ctx, password)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.fail(types.FailInvalidCredentials, err.Error())
		} else {
			s.fail(types.FailNetwork, err.Error())
		}
		s.capture(ctx, "login_failed")
		return err
	}

	s.setState(types.StateLoggedIn)
	return nil
}

// loginPolicy allows exactly one retry, and only for timeouts; a
// credential rejection is fatal on the first classification.
func loginPolicy() *retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = 2
	p.Classify = func(err error) retry.Class {
		if errors.Is(err, ErrInvalidCredentials) {
			return retry.Fatal
		}
		return retry.DefaultClassifier(err)
	}
	return p
}

func (s *Session) loginOnce(ctx context.Context, password string) error {
	t := s.deps.Targets

	if err := s.auto.Navigate(ctx, t.LoginURL); err != nil {
		return err
	}

	// Privacy banner may or may not be present; dismissing it is not
	// allowed to fail the login.
	if ok, _ := s.auto.CheckReady(ctx, t.PrivacyAcceptSelector, 2*time.Second); ok {
		_ = s.auto.Click(ctx, t.PrivacyAcceptSelector)
	}

	fields := map[string]string{
		t.EmailField:    s.Assignment.Email,
		t.PasswordField: password,
	}
	if err := s.auto.SubmitForm(ctx, fields, t.LoginButton); err != nil {
		return err
	}

	ok, err := s.auto.CheckReady(ctx, t.LoggedInSelector, s.deps.Timing.LoginTimeout)
	if err != nil {
		return err
	}
	if !ok {
		// The marker never appeared. Distinguish a rejection message
		// from a page that simply never loaded.
		html, herr := s.auto.OuterHTML(ctx)
		if herr == nil && browser.HasNode(html, t.LoginErrorSelector) {
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, browser.NodeText(html, t.LoginErrorSelector))
		}
		return fmt.Errorf("login page timeout: logged-in marker never became visible")
	}
	return nil
}

// BookAssignedSlot runs the deadline-bound polling loop for the session's
// one assigned slot. The loop terminates on success or when the wall-clock
// deadline elapses; deadline exhaustion fails the slot, not the session's
// remaining phases.
func (s *Session) BookAssignedSlot(ctx context.Context, target types.TargetDate) error {
	if !s.Live() {
		return nil
	}
	s.setState(types.StateBooking)

	slot := types.Slot{
		ResourceID: s.Assignment.ResourceID,
		Date:       target.CalendarDate(),
		Time:       s.Assignment.TimeOfDay,
	}

	// The slot counts as attempted from this point, and stays failed
	// until the booking action succeeds.
	s.mu.Lock()
	s.attempted++
	s.failed = append(s.failed, slot)
	s.mu.Unlock()

	s.trail.Logf("booking %s %s on %s", slot.ResourceID, slot.Time, slot.Date)

	detail, ok := s.runBookingLoop(ctx, target, slot)
	status := types.StatusFailed
	if ok {
		s.mu.Lock()
		s.failed = removeSlot(s.failed, slot)
		s.successful = append(s.successful, slot)
		s.mu.Unlock()
		status = types.StatusSuccess
		s.trail.Logf("booked %s %s", slot.Time, slot.Date)
		s.capture(ctx, "booking_success")
	} else {
		s.trail.Logf("failed to book %s %s: %s", slot.Time, slot.Date, detail)
		s.capture(ctx, "booking_failed")
	}

	// Exactly one audit entry per discrete slot attempt.
	s.deps.Audit.Append(ctx, types.LogEntry{
		Timestamp:  s.now(),
		AccountID:  s.Assignment.AccountID,
		ResourceID: slot.ResourceID,
		Date:       slot.Date,
		Time:       slot.Time,
		Status:     status,
		Detail:     detail,
	})

	// Deadline exhaustion is a slot outcome, not a session failure: the
	// session still checks out, logs out and closes. Only a cancelled run
	// context fails the session itself.
	if !ok && ctx.Err() != nil {
		s.fail(types.FailDeadlineExceeded, detail)
	}
	return nil
}

// runBookingLoop polls until the target date is reachable, then attempts
// the booking action, reloading and continuing on failure within the
// remaining deadline.
func (s *Session) runBookingLoop(ctx context.Context, target types.TargetDate, slot types.Slot) (string, bool) {
	timing := s.deps.Timing
	deadline := s.now().Add(timing.BookingDeadline)

	if err := s.auto.Navigate(ctx, s.Assignment.ResourceURL); err != nil {
		s.trail.Logf("court page navigation failed: %v", err)
		// Keep polling; the reload below may recover it.
	}

	dateReached := false
	lastDetail := "target date never became reachable before the deadline"

	for s.now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return fmt.Sprintf("booking cancelled: %v", err), false
		}

		if !dateReached {
			reached, err := s.dateReachable(ctx, target)
			if err != nil {
				return fmt.Sprintf("date check failed: %v", err), false
			}
			if !reached {
				s.advanceCalendar(ctx)
				continue
			}
			dateReached = true
			s.trail.Logf("target date %s reachable", target.CalendarDate())
			s.capture(ctx, "date_found")
		}

		// Booking action gets its own, longer timeout.
		if err := s.bookOnce(ctx, slot); err != nil {
			lastDetail = fmt.Sprintf("booking action failed: %v", err)
			s.trail.Logf("%s; reloading and retrying within deadline", lastDetail)
			if rerr := s.auto.Reload(ctx); rerr != nil {
				s.trail.Logf("reload failed: %v", rerr)
			}
			continue
		}
		return "booked", true
	}

	return lastDetail, false
}

// dateReachable probes for the calendar heading and compares its text to
// the target date. Probes are sub-second; a miss is routine.
func (s *Session) dateReachable(ctx context.Context, target types.TargetDate) (bool, error) {
	t := s.deps.Targets

	ok, err := s.auto.CheckReady(ctx, t.DateTitleSelector, s.deps.Timing.ProbeTimeout)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	html, err := s.auto.OuterHTML(ctx)
	if err != nil {
		return false, nil
	}
	title := browser.NodeText(html, t.DateTitleSelector)
	return strings.Contains(title, target.CalendarDate()), nil
}

// advanceCalendar moves the calendar forward one week when the control is
// available, otherwise reloads to pick up a just-released week.
func (s *Session) advanceCalendar(ctx context.Context) {
	t := s.deps.Targets
	if ok, _ := s.auto.CheckReady(ctx, t.NextWeekSelector, s.deps.Timing.ProbeTimeout); ok {
		if err := s.auto.Click(ctx, t.NextWeekSelector); err == nil {
			return
		}
	}
	_ = s.auto.Reload(ctx)
}

// bookOnce performs the slot click and waits for the confirmation marker.
func (s *Session) bookOnce(ctx context.Context, slot types.Slot) error {
	t := s.deps.Targets

	selector := fmt.Sprintf(t.SlotSelectorFmt, slot.Time)
	if err := s.auto.Click(ctx, selector); err != nil {
		return err
	}

	ok, err := s.auto.CheckReady(ctx, t.BookedConfirmSelector, s.deps.Timing.ActionTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no booking confirmation for %s", slot.Time)
	}
	return nil
}

// Checkout confirms any pending basket. Idempotent: an empty basket is a
// successful no-op.
func (s *Session) Checkout(ctx context.Context) error {
	if !s.Live() {
		return nil
	}
	t := s.deps.Targets

	s.mu.Lock()
	booked := len(s.successful)
	s.mu.Unlock()
	if booked == 0 {
		s.trail.Logf("nothing to check out")
		s.setState(types.StateCheckedOut)
		return nil
	}

	if err := s.auto.Navigate(ctx, t.BasketURL); err != nil {
		s.trail.Logf("checkout navigation failed: %v", err)
		s.capture(ctx, "checkout_failed")
		s.setState(types.StateCheckedOut)
		return nil
	}

	html, err := s.auto.OuterHTML(ctx)
	if err == nil && browser.CountNodes(html, t.BasketItemSelector) == 0 {
		s.trail.Logf("basket already empty")
		s.setState(types.StateCheckedOut)
		return nil
	}

	if err := s.auto.Click(ctx, t.CheckoutConfirmSelector); err != nil {
		s.trail.Logf("checkout confirm failed: %v", err)
		s.capture(ctx, "checkout_failed")
	} else {
		s.trail.Logf("checkout confirmed for %d booking(s)", booked)
		s.capture(ctx, "checkout_success")
	}
	s.setState(types.StateCheckedOut)
	return nil
}

// Logout ends the site session. Best-effort: failures are logged, never
// propagated.
func (s *Session) Logout(ctx context.Context) error {
	if !s.Live() {
		return nil
	}
	t := s.deps.Targets

	if ok, _ := s.auto.CheckReady(ctx, t.LogoutSelector, 5*time.Second); ok {
		if err := s.auto.Click(ctx, t.LogoutSelector); err != nil {
			s.trail.Logf("logout click failed: %v", err)
		}
	} else {
		s.trail.Logf("already logged out or session expired")
	}
	s.setState(types.StateLoggedOut)
	return nil
}

// Close releases the browser. It runs for every created session on every
// exit path; a FAILED session stays FAILED but still releases.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	auto := s.auto
	s.auto = nil
	s.mu.Unlock()

	if auto != nil {
		if err := auto.Close(ctx); err != nil {
			s.trail.Logf("browser close failed: %v", err)
		}
	}

	s.mu.Lock()
	if s.state != types.StateFailed {
		s.state = types.StateClosed
	}
	s.mu.Unlock()
	s.trail.Logf("session closed")
	return nil
}

func removeSlot(slots []types.Slot, target types.Slot) []types.Slot {
	out := slots[:0]
	for _, s := range slots {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

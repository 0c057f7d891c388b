// Package types provides type definitions for structured data used throughout the court-booker system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Assignment is one row of the booking table: which account books which
// court at which weekly slot. Rows are immutable for the duration of a run.
type Assignment struct {
	AccountID      string `json:"account_id"`
	Email          string `json:"email"`
	CredentialsRef string `json:"credentials_ref,omitempty"` // Env var name or store key holding the password
	ResourceID     string `json:"resource_id"`               // Court identifier, e.g. "Court 1"
	ResourceURL    string `json:"resource_url"`
	Weekday        string `json:"weekday"`     // Canonical weekday name after normalization
	TimeOfDay      string `json:"time_of_day"` // Canonical HHMM after normalization
	Notes          string `json:"notes,omitempty"`
}

// Slot is a single bookable (resource, date, time) unit.
type Slot struct {
	ResourceID string `json:"resource_id"`
	Date       string `json:"date"` // DD/MM/YYYY, the site's calendar format
	Time       string `json:"time"` // HHMM
}

func (s Slot) String() string {
	return fmt.Sprintf("%s %s %s", s.ResourceID, s.Date, s.Time)
}

// TargetDate is the single date a run books for, derived once from the
// current time plus the booking lead time.
type TargetDate struct {
	Date        time.Time `json:"date"`
	WeekdayName string    `json:"weekday_name"`
}

// CalendarDate renders the target date in the site's DD/MM/YYYY form.
func (t TargetDate) CalendarDate() string {
	return t.Date.Format("02/01/2006")
}

// EntryStatus is the outcome recorded for one discrete slot attempt.
type EntryStatus string

const (
	StatusSuccess EntryStatus = "SUCCESS"
	StatusFailed  EntryStatus = "FAILED"
	StatusError   EntryStatus = "ERROR"
)

// LogEntry is one audit record. Exactly one entry is emitted per discrete
// slot attempt, never one per session; summary reconciliation depends on
// that granularity.
type LogEntry struct {
	Timestamp  time.Time   `json:"timestamp"`
	AccountID  string      `json:"account_id"`
	ResourceID string      `json:"resource_id"`
	Date       string      `json:"date"`
	Time       string      `json:"time"`
	Status     EntryStatus `json:"status"`
	Detail     string      `json:"detail,omitempty"`
}

// SessionState is a position in the booking session state machine.
type SessionState string

const (
	StateCreated     SessionState = "CREATED"
	StateInitialized SessionState = "INITIALIZED"
	StateLoggedIn    SessionState = "LOGGED_IN"
	StateBooking     SessionState = "BOOKING"
	StateCheckedOut  SessionState = "CHECKED_OUT"
	StateLoggedOut   SessionState = "LOGGED_OUT"
	StateClosed      SessionState = "CLOSED"
	StateFailed      SessionState = "FAILED"
)

// Terminal reports whether no further transitions are possible.
func (s SessionState) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// FailReason classifies why a session entered the FAILED state.
type FailReason string

const (
	FailNone               FailReason = ""
	FailInitTimeout        FailReason = "init-timeout"
	FailInvalidCredentials FailReason = "invalid-credentials"
	FailNetwork            FailReason = "network"
	FailDeadlineExceeded   FailReason = "deadline-exceeded"
	FailUnknown            FailReason = "unknown"
)

// SessionOutcome is the per-session slice of a run summary.
type SessionOutcome struct {
	SessionID  uuid.UUID    `json:"session_id"`
	AccountID  string       `json:"account_id"`
	ResourceID string       `json:"resource_id"`
	State      SessionState `json:"state"`
	FailReason FailReason   `json:"fail_reason,omitempty"`
	Successful []Slot       `json:"successful"`
	Failed     []Slot       `json:"failed"`
	Attempted  int          `json:"attempted"`
}

// RunSummary is the reconciled report for one full run.
type RunSummary struct {
	RunID          uuid.UUID        `json:"run_id"`
	GeneratedAt    time.Time        `json:"generated_at"`
	TargetDate     TargetDate       `json:"target_date"`
	PerSession     []SessionOutcome `json:"per_session"`
	TotalAttempted int              `json:"total_attempted"`
	TotalSucceeded int              `json:"total_succeeded"`
	TotalFailed    int              `json:"total_failed"`
	Reconciled     bool             `json:"reconciled"` // True when counts were rebuilt from per-session records
}

// ScreenshotRef is an opaque reference to a captured screenshot, tagged
// with the session and step that requested it.
type ScreenshotRef struct {
	SessionID uuid.UUID `json:"session_id"`
	Step      string    `json:"step"`
	Path      string    `json:"path"`
	TakenAt   time.Time `json:"taken_at"`
}

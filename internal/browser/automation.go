// Package browser provides the per-session browser-control capability used
// by booking sessions, with a headless Chrome implementation and a scripted
// stub for dry runs and tests.
package browser

import (
	"context"
	"time"
)

// Automation is the capability interface a booking session drives. Each
// session owns exactly one Automation for its lifetime; implementations are
// not safe for concurrent use across sessions.
type Automation interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(ctx context.Context, url string) error
	// SubmitForm fills each selector->value field and clicks submitSelector.
	SubmitForm(ctx context.Context, fields map[string]string, submitSelector string) error
	// Click clicks the first visible node matching selector.
	Click(ctx context.Context, selector string) error
	// CheckReady reports whether selector becomes visible within timeout.
	// A false result is not an error; it is the polling loop's probe.
	CheckReady(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	// GoBack navigates one step back in history.
	GoBack(ctx context.Context) error
	// Reload re-requests the current page.
	Reload(ctx context.Context) error
	// OuterHTML returns the rendered document markup.
	OuterHTML(ctx context.Context) (string, error)
	// CaptureScreenshot returns a PNG of the current viewport.
	CaptureScreenshot(ctx context.Context) ([]byte, error)
	// Close releases the underlying browser resources.
	Close(ctx context.Context) error
}

// Factory acquires a fresh Automation. The coordinator calls it once per
// session under an acquisition timeout.
type Factory func(ctx context.Context) (Automation, error)

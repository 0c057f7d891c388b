package browser

import (
	"context"
	"sync"
	"time"
)

// Stub is a scripted Automation used by dry-run mode and tests. Every
// method succeeds unless a hook overrides it; calls are recorded in order.
type Stub struct {
	mu    sync.Mutex
	calls []string

	NavigateFn   func(ctx context.Context, url string) error
	SubmitFormFn func(ctx context.Context, fields map[string]string, submitSelector string) error
	ClickFn      func(ctx context.Context, selector string) error
	CheckReadyFn func(ctx context.Context, selector string, timeout time.Duration) (bool, error)
	OuterHTMLFn  func(ctx context.Context) (string, error)
	closed       bool
}

// NewStub returns a Stub whose every operation succeeds.
func NewStub() *Stub {
	return &Stub{}
}

// StubFactory returns a Factory handing out independent fresh stubs.
func StubFactory() Factory {
	return func(context.Context) (Automation, error) {
		return NewStub(), nil
	}
}

func (s *Stub) record(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

// Calls returns the recorded method calls in order.
func (s *Stub) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Closed reports whether Close has been called.
func (s *Stub) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Navigate implements Automation.
func (s *Stub) Navigate(ctx context.Context, url string) error {
	s.record("navigate:" + url)
	if s.NavigateFn != nil {
		return s.NavigateFn(ctx, url)
	}
	return nil
}

// SubmitForm implements Automation.
func (s *Stub) SubmitForm(ctx context.Context, fields map[string]string, submitSelector string) error {
	s.record("submit:" + submitSelector)
	if s.SubmitFormFn != nil {
		return s.SubmitFormFn(ctx, fields, submitSelector)
	}
	return nil
}

// Click implements Automation.
func (s *Stub) Click(ctx context.Context, selector string) error {
	s.record("click:" + selector)
	if s.ClickFn != nil {
		return s.ClickFn(ctx, selector)
	}
	return nil
}

// CheckReady implements Automation.
func (s *Stub) CheckReady(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	s.record("check:" + selector)
	if s.CheckReadyFn != nil {
		return s.CheckReadyFn(ctx, selector, timeout)
	}
	return true, nil
}

// GoBack implements Automation.
func (s *Stub) GoBack(context.Context) error {
	s.record("back")
	return nil
}

// Reload implements Automation.
func (s *Stub) Reload(context.Context) error {
	s.record("reload")
	return nil
}

// OuterHTML implements Automation.
func (s *Stub) OuterHTML(ctx context.Context) (string, error) {
	s.record("html")
	if s.OuterHTMLFn != nil {
		return s.OuterHTMLFn(ctx)
	}
	return "<html><body></body></html>", nil
}

// CaptureScreenshot implements Automation.
func (s *Stub) CaptureScreenshot(context.Context) ([]byte, error) {
	s.record("screenshot")
	return []byte("stub-png"), nil
}

// Close implements Automation.
func (s *Stub) Close(context.Context) error {
	s.record("close")
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

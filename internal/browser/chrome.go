package browser

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultActionTimeout bounds individual page actions (navigation, form
// submission). Readiness probes pass their own, much shorter timeouts.
const DefaultActionTimeout = 20 * time.Second

// Chrome drives one headless Chrome context via chromedp.
type Chrome struct {
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	actionTimeout time.Duration
	verbose       bool
}

// ChromeOptions configures a Chrome automation instance.
type ChromeOptions struct {
	Headless      bool
	ActionTimeout time.Duration
	Verbose       bool
}

// NewChromeFactory returns a Factory producing independent Chrome contexts.
// Each call launches its own exec allocator so sessions never share browser
// state (cookies, logins).
func NewChromeFactory(opts ChromeOptions) Factory {
	return func(ctx context.Context) (Automation, error) {
		return NewChrome(ctx, opts)
	}
}

// NewChrome launches a Chrome context and verifies it responds.
func NewChrome(ctx context.Context, opts ChromeOptions) (*Chrome, error) {
	if opts.ActionTimeout == 0 {
		opts.ActionTimeout = DefaultActionTimeout
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// Force the browser process to start now so acquisition failures
	// surface here, inside the acquisition timeout, not mid-phase.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Chrome{
		ctx:           browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		actionTimeout: opts.ActionTimeout,
		verbose:       opts.Verbose,
	}, nil
}

// run executes actions against the browser context under timeout, honouring
// caller cancellation.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tctx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(tctx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// Navigate implements Automation.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if c.verbose {
		log.Printf("[BROWSER] navigate: %s", url)
	}
	err := c.run(ctx, c.actionTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// SubmitForm implements Automation.
func (c *Chrome) SubmitForm(ctx context.Context, fields map[string]string, submitSelector string) error {
	actions := make([]chromedp.Action, 0, len(fields)+1)
	for selector, value := range fields {
		actions = append(actions, chromedp.SetValue(selector, value, chromedp.ByQuery))
	}
	actions = append(actions, chromedp.Click(submitSelector, chromedp.NodeVisible))

	if err := c.run(ctx, c.actionTimeout, actions...); err != nil {
		return fmt.Errorf("submit form: %w", err)
	}
	return nil
}

// Click implements Automation.
func (c *Chrome) Click(ctx context.Context, selector string) error {
	if err := c.run(ctx, c.actionTimeout, chromedp.Click(selector, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// CheckReady implements Automation. A timeout while waiting means "not
// ready yet", not an error; the deadline-bound polling loop depends on
// that distinction.
func (c *Chrome) CheckReady(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	err := c.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	// chromedp reports the probe timeout as context.DeadlineExceeded on
	// the inner context.
	return false, nil
}

// GoBack implements Automation.
func (c *Chrome) GoBack(ctx context.Context) error {
	if err := c.run(ctx, c.actionTimeout, chromedp.NavigateBack()); err != nil {
		return fmt.Errorf("go back: %w", err)
	}
	return nil
}

// Reload implements Automation.
func (c *Chrome) Reload(ctx context.Context) error {
	if err := c.run(ctx, c.actionTimeout, chromedp.Reload(), chromedp.WaitReady("body")); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// OuterHTML implements Automation.
func (c *Chrome) OuterHTML(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, c.actionTimeout, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("outer html: %w", err)
	}
	return html, nil
}

// CaptureScreenshot implements Automation.
func (c *Chrome) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := c.run(ctx, c.actionTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// Close implements Automation. Always succeeds; cancellation tears the
// browser process down.
func (c *Chrome) Close(context.Context) error {
	c.cancelBrowser()
	c.cancelAlloc()
	return nil
}

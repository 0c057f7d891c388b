// Package retry provides bounded retry with backoff for calls against
// unreliable external resources (audit store, assignment source, login).
//
// The date-advancement polling loop in the session package is deliberately
// not built on this package: its termination rule is a wall-clock deadline,
// not an attempt count.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Class is the retry classification of an error.
type Class int

const (
	// Retryable errors back off exponentially between attempts.
	Retryable Class = iota
	// RateLimited errors wait a longer fixed delay before the next attempt.
	RateLimited
	// Fatal errors short-circuit with no further attempts.
	Fatal
)

func (c Class) String() string {
	switch c {
	case Retryable:
		return "RETRYABLE"
	case RateLimited:
		return "RATE_LIMITED"
	case Fatal:
		return "FATAL"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Classifier maps an error to its retry class.
type Classifier func(error) Class

// Policy bounds retries for one category of operation.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration // Cap for the exponential backoff
	RateLimitDelay time.Duration // Fixed extra delay after a rate-limited attempt
	Classify       Classifier

	// sleep is swapped in tests to avoid real waits.
	sleep func(context.Context, time.Duration) error
}

// DefaultPolicy returns the policy used for store and login-type calls.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:    3,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		RateLimitDelay: 15 * time.Second,
		Classify:       DefaultClassifier,
	}
}

// Do runs op until it succeeds, classification is Fatal, the attempt budget
// is spent, or ctx is done. The last error is returned wrapped with the
// attempt count.
func (p *Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	classify := p.Classify
	if classify == nil {
		classify = DefaultClassifier
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	delay := p.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		class := classify(lastErr)
		if class == Fatal {
			return fmt.Errorf("attempt %d: %w", attempt, lastErr)
		}
		if attempt == attempts {
			break
		}

		wait := delay
		if class == RateLimited {
			wait = p.RateLimitDelay
		} else {
			delay *= 2
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	return fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RateLimitError marks an error returned by a collaborator that asked us
// to slow down.
type RateLimitError struct {
	Cause error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Cause)
}

func (e *RateLimitError) Unwrap() error { return e.Cause }

// DefaultClassifier treats timeouts and connection resets as retryable,
// explicit rate-limit errors as rate-limited, and everything else as fatal.
func DefaultClassifier(err error) Class {
	if err == nil {
		return Fatal
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		return RateLimited
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Retryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Retryable
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"):
		return RateLimited
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "temporarily unavailable"):
		return Retryable
	}

	return Fatal
}

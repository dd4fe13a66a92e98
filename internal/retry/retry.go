// Package retry wraps fallible stage-client calls with bounded retry and
// exponential backoff. Stages never implement their own retry logic; every
// external call goes through a Policy.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Class tells the policy whether a failure is worth another attempt.
type Class int

const (
	Transient Class = iota
	Permanent
)

// Classifier maps an operation error to a retry class.
type Classifier func(error) Class

// ExhaustedError is returned once all attempts at a transient failure are
// spent. It carries the last underlying error and the attempt count.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Policy bounds retries by attempt count and total wait. The zero value is
// not usable; construct via New.
type Policy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxElapsed  time.Duration

	sleep  func(context.Context, time.Duration) error
	jitter func(time.Duration) time.Duration
}

// Option tweaks a Policy, mainly so tests can remove real sleeping.
type Option func(*Policy)

// WithSleep replaces the delay function.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(p *Policy) { p.sleep = sleep }
}

// WithBaseDelay overrides the first backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(p *Policy) { p.baseDelay = d }
}

// WithMaxElapsed caps the total time spent waiting between attempts.
func WithMaxElapsed(d time.Duration) Option {
	return func(p *Policy) { p.maxElapsed = d }
}

// New builds a Policy with maxAttempts tries. Backoff doubles from one second
// per attempt, capped at thirty seconds per wait, with up to 25% jitter.
func New(maxAttempts int, opts ...Option) Policy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	p := Policy{
		maxAttempts: maxAttempts,
		baseDelay:   time.Second,
		maxDelay:    30 * time.Second,
		maxElapsed:  2 * time.Minute,
		sleep:       sleepCtx,
		jitter: func(d time.Duration) time.Duration {
			return d + time.Duration(rand.Int63n(int64(d)/4+1))
		},
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Execute runs op until it succeeds, fails permanently, or attempts run out.
// Permanent failures propagate immediately and untouched; transient ones are
// retried with backoff and surface as *ExhaustedError once spent.
func (p Policy) Execute(ctx context.Context, op func(context.Context) error, classify Classifier) error {
	var lastErr error
	var waited time.Duration

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if classify != nil && classify(err) == Permanent {
			return err
		}
		lastErr = err

		if attempt == p.maxAttempts {
			break
		}

		delay := p.delayFor(attempt)
		if p.maxElapsed > 0 && waited+delay > p.maxElapsed {
			return &ExhaustedError{Attempts: attempt, Err: lastErr}
		}
		waited += delay
		if err := p.sleep(ctx, delay); err != nil {
			return &ExhaustedError{Attempts: attempt, Err: lastErr}
		}
	}

	return &ExhaustedError{Attempts: p.maxAttempts, Err: lastErr}
}

func (p Policy) delayFor(attempt int) time.Duration {
	delay := p.baseDelay << (attempt - 1)
	if delay > p.maxDelay {
		delay = p.maxDelay
	}
	if p.jitter != nil {
		delay = p.jitter(delay)
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

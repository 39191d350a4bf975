package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/code-payments/lottery-client/pkg/retry/backoff"
)

// Strategy decides whether an action that failed with err after the given
// number of attempts should run again. Strategies may block to delay the next
// attempt.
type Strategy func(attempts uint, err error) bool

// Limit caps the total number of attempts, including the first one.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only allows another attempt for errors matching one of
// retriableErrors, per errors.Is.
func RetriableErrors(retriableErrors ...error) Strategy {
	return func(_ uint, err error) bool {
		for _, e := range retriableErrors {
			if errors.Is(err, e) {
				return true
			}
		}
		return false
	}
}

// Context stops retrying once ctx is done. It should precede any backoff
// strategy so that a cancelled caller does not wait again.
func Context(ctx context.Context) Strategy {
	return func(_ uint, _ error) bool {
		return ctx.Err() == nil
	}
}

// Backoff waits for the delay given by strategy, capped at maxBackoff, before
// allowing the next attempt.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return BackoffWithContext(context.Background(), strategy, maxBackoff)
}

// BackoffWithContext is Backoff, but the wait is cut short, and retrying
// stops, if ctx is done.
func BackoffWithContext(ctx context.Context, strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return func(attempts uint, _ error) bool {
		return wait(ctx, capDelay(strategy(attempts), maxBackoff))
	}
}

// BackoffWithJitter is Backoff with the capped delay randomly moved by up to
// the jitter fraction in either direction. For example, a capped delay of
// 100ms with a jitter of 0.1 results in a delay between 90ms and 110ms.
func BackoffWithJitter(strategy backoff.Strategy, maxBackoff time.Duration, jitter float64) Strategy {
	return func(attempts uint, _ error) bool {
		delay := capDelay(strategy(attempts), maxBackoff)
		offset := (rand.Float64()*2 - 1) * jitter
		return wait(context.Background(), time.Duration(float64(delay)*(1+offset)))
	}
}

func capDelay(delay, maxDelay time.Duration) time.Duration {
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

func wait(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-clock.After(d):
		return true
	}
}

type timer interface {
	After(time.Duration) <-chan time.Time
}

type realTimer struct{}

func (realTimer) After(d time.Duration) <-chan time.Time { return time.After(d) }

var clock timer = realTimer{}

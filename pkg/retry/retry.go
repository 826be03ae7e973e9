// Package retry runs actions until they succeed or a strategy gives up.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/code-payments/token-lifecycle/pkg/retry/backoff"
)

// Action is a function to be performed in a retriable manner.
type Action func() error

// Strategy decides whether an action should be attempted again after it
// failed with err. Strategies may sleep or cause other side effects.
type Strategy func(attempts uint, err error) bool

// Retrier retries the provided action.
type Retrier interface {
	Retry(action Action) (uint, error)
}

type retrier []Strategy

// NewRetrier returns a Retrier applying strategies to every action it runs.
func NewRetrier(strategies ...Strategy) Retrier {
	return retrier(strategies)
}

func (r retrier) Retry(action Action) (uint, error) {
	return Retry(action, r...)
}

// Retry runs action until it returns nil or a strategy declines another
// attempt, and returns the attempts made with the last error. Strategies are
// evaluated in order, so sleeping strategies go last.
func Retry(action Action, strategies ...Strategy) (uint, error) {
	var attempts uint
	for {
		attempts++

		err := action()
		if err == nil {
			return attempts, nil
		}

		for _, shouldRetry := range strategies {
			if !shouldRetry(attempts, err) {
				return attempts, err
			}
		}
	}
}

// RetryWithContext is Retry that also gives up once ctx is done.
func RetryWithContext(ctx context.Context, action Action, strategies ...Strategy) (uint, error) {
	return Retry(action, append([]Strategy{Context(ctx)}, strategies...)...)
}

// Limit caps the total number of attempts, including the first.
func Limit(maxAttempts uint) Strategy {
	return func(attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only retries errors matching one of targets.
func RetriableErrors(targets ...error) Strategy {
	return func(_ uint, err error) bool {
		for _, target := range targets {
			if errors.Is(err, target) {
				return true
			}
		}
		return false
	}
}

// Context stops retrying once ctx is done.
func Context(ctx context.Context) Strategy {
	return func(uint, error) bool {
		return ctx.Err() == nil
	}
}

// OnRetry calls fn before every retry.
func OnRetry(fn func(attempts uint, err error)) Strategy {
	return func(attempts uint, err error) bool {
		fn(attempts, err)
		return true
	}
}

// Backoff sleeps for the delay strategy gives before the next attempt.
func Backoff(strategy backoff.Strategy) Strategy {
	return func(attempts uint, _ error) bool {
		sleep(strategy(attempts))
		return true
	}
}

var sleep = time.Sleep

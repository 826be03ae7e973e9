// Package backoff provides delay functions for retry strategies.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Strategy returns how long to wait after the given attempt. Attempts start at 1.
type Strategy func(attempts uint) time.Duration

// Constant always waits interval.
func Constant(interval time.Duration) Strategy {
	return func(uint) time.Duration {
		return interval
	}
}

// BinaryExponential doubles the delay after every attempt, starting at
// baseDelay. Delays saturate at math.MaxInt64.
func BinaryExponential(baseDelay time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		if attempts == 0 {
			attempts = 1
		}
		return saturate(float64(baseDelay) * math.Exp2(float64(attempts-1)))
	}
}

// Capped limits every delay of s to max.
func (s Strategy) Capped(max time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		if d := s(attempts); d < max {
			return d
		}
		return max
	}
}

// WithJitter moves every delay of s by a random amount of up to fraction of
// the delay, in either direction.
func (s Strategy) WithJitter(fraction float64) Strategy {
	return func(attempts uint) time.Duration {
		factor := 1 + (rand.Float64()*2-1)*fraction
		return saturate(float64(s(attempts)) * factor)
	}
}

func saturate(d float64) time.Duration {
	if d >= math.MaxInt64 || d < 0 {
		return math.MaxInt64
	}
	return time.Duration(d)
}

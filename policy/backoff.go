package policy

import (
	"time"

	"andy.dev/redo/v2/backoff"
)

// Backoff is a pure exponential backoff: delay * exponent^(attempt-1), capped
// at max (DefaultMaxDelay when max <= 0). It ends a chain: next, if present,
// is still called, but its delay is discarded.
//
// Backoff panics if delay or exponent is not positive.
func Backoff(delay time.Duration, exponent float64, max time.Duration) Policy {
	mustPositive("backoff delay", float64(delay))
	mustPositive("backoff exponent", exponent)
	max = orDefault(max, DefaultMaxDelay)
	return func(s *State, next Policy) (time.Duration, error) {
		if err := notify(s, next); err != nil {
			return 0, err
		}
		return backoff.Exponential(delay, exponent, s.Attempt(), max), nil
	}
}

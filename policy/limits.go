package policy

import "time"

// Breaker stops once max attempts have failed. max <= 0 means
// DefaultMaxAttempts, not zero retries. Below the ceiling it delegates to
// next; with no next it fails.
func Breaker(max int) Policy {
	max = orDefault(max, DefaultMaxAttempts)
	return func(s *State, next Policy) (time.Duration, error) {
		if s.Attempt() >= max {
			return Fail(s)
		}
		return delegate(s, next)
	}
}

// Timeout stops scheduling attempts once elapsed > after - delay, where delay
// is the state's committed delay. It never interrupts an attempt in flight:
// the check only gates the next one. after <= 0 means DefaultTimeout, not an
// immediate give-up.
func Timeout(after time.Duration) Policy {
	after = orDefault(after, DefaultTimeout)
	return func(s *State, next Policy) (time.Duration, error) {
		if s.Elapsed() > after-s.Delay() {
			return Fail(s)
		}
		return delegate(s, next)
	}
}

// FastTrack makes the first retry immediate. Later delays come from next
// unchanged.
func FastTrack() Policy {
	return func(s *State, next Policy) (time.Duration, error) {
		d, err := delegate(s, next)
		if err != nil {
			return 0, err
		}
		if s.Attempt() == 1 {
			return 0, nil
		}
		return d, nil
	}
}

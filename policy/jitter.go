package policy

import (
	"sync"
	"time"

	"andy.dev/redo/v2/backoff"
)

// Jitter randomises the delay returned by next:
//
//	d + d*spread*rand + d*offset
//
// with rand drawn from [0, 1). offset shifts the window and spread scales it.
// Jitter needs a next stage to produce d and fails without one.
func Jitter(offset, spread float64) Policy {
	return func(s *State, next Policy) (time.Duration, error) {
		d, err := delegate(s, next)
		if err != nil {
			return 0, err
		}
		f := float64(d)
		return backoff.Clamp(f+f*spread*random()+f*offset, 0), nil
	}
}

// DefaultJitter spreads the upstream delay over (0.75d, 1.25d].
func DefaultJitter() Policy { return Jitter(0.25, -0.5) }

// FullJitter draws the delay uniformly from [0, d].
func FullJitter() Policy { return Jitter(-1, 1) }

// EqualJitter draws the delay uniformly from [d/2, d].
func EqualJitter() Policy { return Jitter(-0.5, 0.5) }

// DecorrelatedJitter ignores the upstream delay and draws from
// [initial, min(max, 3*previous delay)), starting from initial on the first
// retry. next, if present, is still called.
func DecorrelatedJitter(initial, max time.Duration) Policy {
	initial = orDefault(initial, DefaultInitialDelay)
	max = orDefault(max, DefaultMaxDelay)
	return func(s *State, next Policy) (time.Duration, error) {
		if err := notify(s, next); err != nil {
			return 0, err
		}
		base := s.Delay()
		if s.Attempt() <= 1 {
			base = initial
		}
		return backoff.Decorrelated(initial, base, max, random()), nil
	}
}

// PollyJitter ignores the upstream delay and produces an exponential delay
// with bounded jitter: successive steps along 2^t * tanh(sqrt(4t)) with t
// jittered by up to one attempt, scaled so that the median first delay is
// near initial and capped at max. next, if present, is still called.
//
// The position on the curve is tracked per operation, so one PollyJitter may
// serve any number of concurrent operations. The entry for an operation is
// dropped when it finishes.
func PollyJitter(initial, max time.Duration) Policy {
	initial = orDefault(initial, DefaultInitialDelay)
	max = orDefault(max, DefaultMaxDelay)
	var (
		mu   sync.Mutex
		prev = make(map[uint64]float64)
	)
	return func(s *State, next Policy) (time.Duration, error) {
		if err := notify(s, next); err != nil {
			return 0, err
		}
		t := float64(s.Attempt()-1) + random()
		curr := backoff.Curve(t)

		mu.Lock()
		p, seen := prev[s.ID()]
		prev[s.ID()] = curr
		mu.Unlock()
		if !seen {
			id := s.ID()
			s.OnFinish(func() {
				mu.Lock()
				delete(prev, id)
				mu.Unlock()
			})
		}
		return backoff.Polly(curr, p, initial, max), nil
	}
}

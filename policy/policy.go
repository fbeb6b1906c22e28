// Package policy defines the retry decision protocol and the units it is
// composed of.
//
// A [Policy] looks at the [State] of an operation after a failure and either
// returns the delay to wait before the next attempt or returns the error the
// operation should fail with. Policies are chained like middleware: each unit
// receives the remainder of the chain as next, and may call it, transform its
// result, ignore it, or refuse to call it at all.
//
//	p := policy.Join(
//		policy.Logger(logger.Warningf, logger.Errorf),
//		policy.Timeout(time.Minute),
//		policy.Breaker(5),
//		policy.FullJitter(),
//		policy.Backoff(100*time.Millisecond, 2, 10*time.Second),
//	)
//
// Units that need a next stage and have none fail with the state's current
// error, so an empty tail always means "give up".
package policy

import (
	"math/rand/v2"
	"time"

	"github.com/juju/errors"
)

// Defaults shared by the units and the default composite.
const (
	DefaultInitialDelay = 150 * time.Millisecond
	DefaultMaxDelay     = 30 * time.Second
	DefaultMaxAttempts  = 10
	DefaultTimeout      = 30 * time.Second
)

// random draws from [0, 1). Replaced in tests.
var random = rand.Float64

// Policy decides what happens after a failed attempt. It returns the delay to
// wait before retrying, or a non-nil error to stop. next is the rest of the
// chain and is nil for the last unit.
type Policy func(s *State, next Policy) (time.Duration, error)

// Stage is anything Join can compose: a single Policy or a nested Chain.
type Stage interface {
	stages() []Policy
}

func (p Policy) stages() []Policy {
	if p == nil {
		return nil
	}
	return []Policy{p}
}

// Chain is a sequence of stages. Nested chains are flattened by Join.
type Chain []Stage

func (c Chain) stages() []Policy {
	var out []Policy
	for _, st := range c {
		if st == nil {
			continue
		}
		out = append(out, st.stages()...)
	}
	return out
}

// Join composes stages into one policy. The first stage is the outermost and
// is handed the second as next, and so on. The last stage receives whatever
// next the joined policy is called with, which is nil when called by the
// execution loop. Nested chains are flattened depth first and nil policies
// are skipped. Join panics if fewer than two policies remain.
func Join(stages ...Stage) Policy {
	units := Chain(stages).stages()
	if len(units) < 2 {
		panic(errors.NotValidf("policy chain with %d unit(s)", len(units)))
	}
	link := func(tail Policy) Policy {
		p := tail
		for i := len(units) - 1; i >= 0; i-- {
			unit, rest := units[i], p
			p = func(s *State, _ Policy) (time.Duration, error) {
				return unit(s, rest)
			}
		}
		return p
	}
	bound := link(nil)
	return func(s *State, next Policy) (time.Duration, error) {
		if next == nil {
			return bound(s, nil)
		}
		return link(next)(s, nil)
	}
}

// Fail is the decision of a unit with nothing to delegate to: stop with the
// most recent error.
func Fail(s *State) (time.Duration, error) {
	return 0, s.Err()
}

// delegate calls next, or fails when there is no next stage.
func delegate(s *State, next Policy) (time.Duration, error) {
	if next == nil {
		return Fail(s)
	}
	return next(s, nil)
}

// notify calls next for its side effects only. A failure of next is still a
// failure.
func notify(s *State, next Policy) error {
	if next == nil {
		return nil
	}
	_, err := next(s, nil)
	return err
}

func mustPositive(name string, v float64) {
	if v <= 0 {
		panic(errors.NotValidf("%s %v (must be positive)", name, v))
	}
}

func orDefault[T time.Duration | int](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

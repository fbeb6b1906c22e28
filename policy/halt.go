package policy

import (
	"time"

	"github.com/juju/errors"
)

// HaltError marks an error that must not be retried.
type HaltError struct {
	Err error
}

func (he *HaltError) Error() string {
	return he.Err.Error()
}

func (he *HaltError) Unwrap() error {
	return he.Err
}

// Halt stops at once when the latest error is, or wraps, a *HaltError, or
// when match reports true for it. A matched error is returned wrapped in a
// *HaltError. match may be nil.
func Halt(match func(error) bool) Policy {
	return func(s *State, next Policy) (time.Duration, error) {
		var he *HaltError
		if errors.As(s.Err(), &he) {
			return Fail(s)
		}
		if match != nil && match(s.Err()) {
			return 0, &HaltError{Err: s.Err()}
		}
		return delegate(s, next)
	}
}

// Observe delegates, then reports the state and the decision of the rest of
// the chain to fn: the delay to be applied, or the error the run ends with.
func Observe(fn func(s *State, delay time.Duration, err error)) Policy {
	return func(s *State, next Policy) (time.Duration, error) {
		d, err := delegate(s, next)
		fn(s, d, err)
		return d, err
	}
}

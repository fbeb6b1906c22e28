package policy

import (
	"time"

	"golang.org/x/time/rate"
)

// Throttle paces retries through limiter, which is typically shared by every
// call site that talks to the same dependency within this process. The delay
// from next is extended to the time the limiter grants the next token. If
// the limiter can never grant one, Throttle fails with the latest error.
func Throttle(limiter *rate.Limiter) Policy {
	return func(s *State, next Policy) (time.Duration, error) {
		d, err := delegate(s, next)
		if err != nil {
			return 0, err
		}
		r := limiter.Reserve()
		if !r.OK() {
			return Fail(s)
		}
		if wait := r.Delay(); wait > d {
			return wait, nil
		}
		return d, nil
	}
}

package policy

import "time"

// LogFunc is a printf style sink. loggo.Logger.Warningf and friends satisfy
// it as method values.
type LogFunc func(format string, args ...any)

// Logger reports every failed attempt to warn and, when the rest of the chain
// gives up, reports the final error to fail before returning it unchanged.
// Either sink may be nil.
//
// Logger must sit near the head of a chain. As the last unit it has nothing
// to delegate to and gives up after the first failure.
func Logger(warn, fail LogFunc) Policy {
	return func(s *State, next Policy) (time.Duration, error) {
		if warn != nil {
			warn("attempt %d failed after %v: %v", s.Attempt(), s.Elapsed(), s.Err())
		}
		d, err := delegate(s, next)
		if err != nil {
			if fail != nil {
				fail("giving up after %d attempts (%v): %v", s.Attempt(), s.Elapsed(), err)
			}
			return 0, err
		}
		return d, nil
	}
}

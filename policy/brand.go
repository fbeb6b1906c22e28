package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/juju/errors"
)

// RetryError is the failure of an operation whose retries ran out, carrying
// every error observed along the way.
type RetryError struct {
	errs []error
}

// Error implements the error interface.
func (re *RetryError) Error() string {
	return fmt.Sprintf("failed after %d attempt(s): %v", len(re.errs), re.Unwrap())
}

// Errors returns the error of each attempt, oldest first.
func (re *RetryError) Errors() []error {
	out := make([]error, len(re.errs))
	copy(out, re.errs)
	return out
}

// Unwrap returns the last error, so errors.Is and errors.As see the error
// that ended the run.
func (re *RetryError) Unwrap() error {
	if len(re.errs) == 0 {
		return nil
	}
	return re.errs[len(re.errs)-1]
}

// Format implements fmt.Formatter. %+v lists every attempt.
func (re *RetryError) Format(state fmt.State, verb rune) {
	if verb == 'v' && state.Flag('+') {
		var b strings.Builder
		b.WriteString(re.Error())
		for i, err := range re.errs {
			fmt.Fprintf(&b, "\n\tattempt %d: %v", i+1, err)
		}
		fmt.Fprint(state, b.String())
		return
	}
	fmt.Fprint(state, re.Error())
}

// BrandError replaces the terminal failure of the rest of the chain with a
// *RetryError holding the whole failure history. A caught error that wraps
// the last recorded one, such as a *HaltError, takes its place in the
// history.
func BrandError() Policy {
	return func(s *State, next Policy) (time.Duration, error) {
		d, err := delegate(s, next)
		if err == nil {
			return d, nil
		}
		errs := s.Errors()
		if n := len(errs); n > 0 && errors.Is(err, errs[n-1]) {
			errs[n-1] = err
		} else {
			errs = append(errs, err)
		}
		return 0, &RetryError{errs: errs}
	}
}

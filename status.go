package redo

import (
	"context"
	"fmt"
	"time"

	"andy.dev/redo/v2/policy"
)

type retryCtxKeyT string

const (
	retryCtxKey retryCtxKeyT = "redo"
)

// runInfo is what a run stores in the context handed to the function.
type runInfo struct {
	state    *policy.State
	maxTries int
}

// GetStatus can be used to retrieve information about the current retry loop
// from within the function being retried, as opposed to setting a callback with
// [Each].
// It will return Status{} if not called in a retry context, so make sure to use
// [Retrying] if your function might be run outside of a retry loop.
func GetStatus(ctx context.Context) Status {
	ri, ok := ctx.Value(retryCtxKey).(runInfo)
	if !ok {
		return Status{}
	}
	return Status{
		TryNumber: ri.state.Attempt() + 1,
		MaxTries:  ri.maxTries,
		Err:       ri.state.Err(),
		Elapsed:   ri.state.Elapsed(),
	}
}

// Retrying reports whether ctx belongs to a retry loop.
func Retrying(ctx context.Context) bool {
	_, ok := ctx.Value(retryCtxKey).(runInfo)
	return ok
}

// Status represents the state of the current retry loop.
//
// From [GetStatus], TryNumber is the try in progress and Err the error of the
// previous try, if any. From [Each], TryNumber is the try that just failed,
// Err its error, and NextDelay the delay before the next try, which is 0 if
// the run gave up.
type Status struct {
	TryNumber int
	MaxTries  int
	Err       error
	NextDelay time.Duration
	Elapsed   time.Duration
}

// String implements fmt.Stringer
func (s Status) String() string {
	if s.MaxTries <= 0 {
		return fmt.Sprintf("attempt %d", s.TryNumber)
	}
	return fmt.Sprintf("attempt %d/%d", s.TryNumber, s.MaxTries)
}

// Format implements fmt.Formatter it supports the %s and %q print verbs. Output
// is flag-dependent:
//
//	%s -  "attempt #"
//	%+s - "attempt # - next in <duration>"
//
// Where '#' is the attempt number as an integer such starting from '1'
// optionally followed by `/#` and the maximum number of tries if
// [MaxTries] is set.
func (s Status) Format(state fmt.State, verb rune) {
	switch verb {
	case 's', 'q':
		str := s.String()
		if state.Flag('+') {
			str = fmt.Sprintf("%s - next in %v", str, shortNext(s.NextDelay))
		}
		if verb == 'q' {
			str = fmt.Sprintf("%q", str)
		}
		fmt.Fprint(state, str)
	}
}

// Next returns a time.Time value representing the approximate time the next
// iteration will occur, assuming it has just failed.
func (s Status) Next() time.Time {
	return time.Now().Add(s.NextDelay)
}

// shortNext rounds a delay for display.
func shortNext(d time.Duration) time.Duration {
	if d < time.Second {
		return d.Round(time.Millisecond)
	}
	return d.Round(time.Second)
}

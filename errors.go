package redo

import (
	"errors"
	"fmt"

	"andy.dev/redo/v2/policy"
)

// Exhausted returns true if the error is the final result of a run that gave
// up, branded with [BrandErrors] (or [policy.BrandError] in a custom policy).
// The *policy.RetryError it wraps holds the error of every try.
func Exhausted(e error) bool {
	var re *policy.RetryError
	return errors.As(e, &re)
}

// Halted returns true if the retry was halted, either by the user returning
// an error wrapped with [Halt] or by a [HaltFn] match.
func Halted(e error) bool {
	var he *policy.HaltError
	return errors.As(e, &he)
}

// Halt allows you to return a halting error from within the retry loop itself,
// as an alternative to using [HaltFn]. Simply:
//
//	return redo.Halt(err)
//
// To stop the retry run immediately. Custom policies honour it when they
// include [policy.Halt].
func Halt(e error) error {
	return &policy.HaltError{Err: e}
}

// RefreshError will be returned if a [RefreshFn] returns an error. The
// underlying error that caused the retry will be combined with this error using
// [errors.Join].
// If you would like to inspect just the original error, you can use [errors.As]
// to get the *RefreshError value and call the [RetryErr] Method.
type RefreshError struct {
	err      error
	retryErr error
}

// Error implements the error interface.
func (re *RefreshError) Error() string {
	return fmt.Sprintf("%s\n%s", re.err, re.retryErr)
}

// Unwrap allows a *RefreshError to work with [errors.Is] and [errors.As]
func (re *RefreshError) Unwrap() []error {
	return []error{re.err, re.retryErr}
}

// RetryErr returns the error that caused the function to retry before the
// RefreshFn failed.
func (re *RefreshError) RetryErr() error {
	return re.retryErr
}

// errRefresh is a helper to create a *RefreshError
func errRefresh(refreshErr, retryErr error) *RefreshError {
	return &RefreshError{
		err:      errors.Join(refreshErr, retryErr),
		retryErr: retryErr,
	}
}

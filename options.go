package redo

import (
	"errors"
	"time"

	"github.com/juju/clock"
	"golang.org/x/time/rate"

	"andy.dev/redo/v2/policy"
)

// Option represents an optional retry setting.
//
// An option either supplies a complete policy ([WithPolicy]) or adjusts the
// [Config] of the default policy. When a policy is supplied the config
// options are ignored, except for [HaltFn], [HaltErrors] and [Each], which
// wrap the supplied policy. [WithClock] and [CtxCause] apply to every run.
type Option func(o *opts)

// WithPolicy runs with p as-is instead of the default policy.
func WithPolicy(p policy.Policy) Option {
	return func(o *opts) {
		o.custom = p
	}
}

// WithConfig applies the settings in a [Config] to a run, allowing you to
// reuse a set of options for multiple functions. It replaces any config
// options given before it.
func WithConfig(c Config) Option {
	return func(o *opts) {
		o.config = c
	}
}

// InitialDelay sets the initial median delay of the first retry, and will
// serve to scale the rest of the run. If this is <= 0, it will default to
// DefaultInitialDelay (150 * time.Millisecond)
func InitialDelay(duration time.Duration) Option {
	return func(o *opts) {
		o.config.InitialDelay = duration
	}
}

// MaxDelay will cap the exponential delay to a maximum value. If this is <=
// 0, it will default to DefaultMaxDelay (30 * time.Second) or
// InitialDelay, whichever is greater.
func MaxDelay(duration time.Duration) Option {
	return func(o *opts) {
		o.config.MaxDelay = duration
	}
}

// MaxTries is the number of tries to attempt. A negative value will retry
// until the timeout, cancellation or a call to [Halt]. If unset, it will
// default to DefaultMaxTries (10)
func MaxTries(tries int) Option {
	return func(o *opts) {
		o.config.MaxTries = tries
	}
}

// Timeout stops scheduling new tries once the run would exceed duration. A
// try in progress is not interrupted; use the context for that. A negative
// value disables it. If unset, it will default to DefaultTimeout (30 *
// time.Second)
func Timeout(duration time.Duration) Option {
	return func(o *opts) {
		o.config.Timeout = duration
	}
}

// FirstFast defines whether or not the first retry should be made
// immediately. Defaults to false.
func FirstFast(firstRetryImmediate bool) Option {
	return func(o *opts) {
		o.config.FirstFast = firstRetryImmediate
	}
}

// WarnLog sends the per-try warnings to fn instead of the "redo" logger.
func WarnLog(fn policy.LogFunc) Option {
	return func(o *opts) {
		o.config.Warn = fn
		o.config.NoWarn = false
	}
}

// ErrorLog sends the final error report to fn instead of the "redo" logger.
func ErrorLog(fn policy.LogFunc) Option {
	return func(o *opts) {
		o.config.Error = fn
		o.config.NoError = false
	}
}

// NoWarnLog disables the per-try warnings.
func NoWarnLog() Option {
	return func(o *opts) {
		o.config.NoWarn = true
	}
}

// NoErrorLog disables the final error report.
func NoErrorLog() Option {
	return func(o *opts) {
		o.config.NoError = true
	}
}

// Extend appends p to the default policy, after every built in stage.
func Extend(p policy.Policy) Option {
	return func(o *opts) {
		o.config.Extend = p
	}
}

// BrandErrors makes a run that gives up return a *policy.RetryError holding
// the error of every try. Use [Exhausted] to detect it.
func BrandErrors() Option {
	return func(o *opts) {
		o.config.BrandErrors = true
	}
}

// HaltFn allows you to set a function to use for identifying fatal errors.
// It will be called for each error returned from the target function. If it
// returns true, the retry loop will terminate immediately. Defaults to nil.
//
// Note: this does not affect cancellation of the run's context, which always
// ends the retry loop while waiting.
func HaltFn(haltFn func(error) bool) Option {
	return func(o *opts) {
		o.config.HaltFn = haltFn
	}
}

// HaltErrors is a shortcut to writing a [HaltFn] of the form
//
//	func(e error) bool {
//	    return errors.Is(e, Err1) || errors.Is(e, Err2) /* ... */
//	}
func HaltErrors(errs ...error) Option {
	return func(o *opts) {
		o.config.HaltFn = func(e error) bool {
			for i := range errs {
				if errors.Is(e, errs[i]) {
					return true
				}
			}
			return false
		}
	}
}

// Each allows you to set a function to be called directly after each failed
// try, once the policy has decided what to do next. It is passed a [Status]
// value that you can use for logging or reporting. Defaults to nil, which
// will take no action.
func Each(eachFn func(Status)) Option {
	return func(o *opts) {
		o.config.Each = eachFn
	}
}

// WithMetrics records the decisions of the default policy in m.
func WithMetrics(m *policy.Metrics) Option {
	return func(o *opts) {
		o.config.Metrics = m
	}
}

// WithTracing annotates the span carried by the run's context with an event
// per failed try.
func WithTracing() Option {
	return func(o *opts) {
		o.config.Trace = true
	}
}

// WithLimiter paces retries through limiter. Share one limiter between the
// runs that hit the same dependency.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(o *opts) {
		o.config.Limiter = limiter
	}
}

// WithClock sets the clock used to time the run and the delays between
// tries. Defaults to the wall clock.
func WithClock(c clock.Clock) Option {
	return func(o *opts) {
		o.clock = c
	}
}

// CtxCause will enable or disable automatic context cancellation cause
// extraction.
// If enabled, a run ended by its context returns [context.Cause] instead of
// [context.Canceled] or [context.DeadlineExceeded]. Defaults to true, which
// enables this behavior
func CtxCause(enabled bool) Option {
	return func(o *opts) {
		o.noCause = !enabled
	}
}

type opts struct {
	custom  policy.Policy
	config  Config
	clock   clock.Clock
	noCause bool
}

func newOpts(options []Option) *opts {
	o := &opts{}
	for _, opt := range options {
		opt(o)
	}
	if o.clock == nil {
		o.clock = clock.WallClock
	}
	return o
}

// policy resolves the options into the policy for a run.
func (o *opts) policy() policy.Policy {
	if o.custom == nil {
		return o.config.Policy()
	}
	p := o.custom
	if o.config.HaltFn != nil {
		p = policy.Join(policy.Halt(o.config.HaltFn), p)
	}
	if o.config.Each != nil {
		p = policy.Join(each(o.config.Each, 0), p)
	}
	return p
}

// maxTries is the try limit reported by [Status], 0 when unknown.
func (o *opts) maxTries() int {
	if o.custom != nil {
		return 0
	}
	if n := o.config.withDefaults().MaxTries; n > 0 {
		return n
	}
	return 0
}

package redo

import (
	"time"

	"github.com/juju/loggo"
	"golang.org/x/time/rate"

	"andy.dev/redo/v2/policy"
)

var logger = loggo.GetLogger("redo")

const (
	DefaultInitialDelay = policy.DefaultInitialDelay
	DefaultMaxDelay     = policy.DefaultMaxDelay
	DefaultMaxTries     = policy.DefaultMaxAttempts
	DefaultTimeout      = policy.DefaultTimeout
)

// Config describes the default retry policy. The zero value is a valid
// configuration that uses every default. Pass it to [Default] to build the
// policy, or apply it to a run with [WithConfig].
type Config struct {
	// Initial median delay.
	// Default: (150 * time.Millisecond)
	InitialDelay time.Duration
	// Maximum delay allowed.
	// Default: (30*time.Second >= InitialDelay)
	MaxDelay time.Duration
	// Maximum number of tries to attempt. A negative value retries until the
	// timeout, a halting error or cancellation.
	// Default: 10
	MaxTries int
	// Time after which no further tries are scheduled. A try already running
	// is never interrupted. A negative value disables the timeout.
	// Default: (30 * time.Second)
	Timeout time.Duration
	// Whether to retry the first time immediately.
	// Default: false
	FirstFast bool

	// Warn receives a line per failed try and Error a line when the run gives
	// up. Nil sinks log to the "redo" loggo logger unless disabled by NoWarn
	// or NoError.
	Warn    policy.LogFunc
	Error   policy.LogFunc
	NoWarn  bool
	NoError bool

	// BrandErrors replaces the final error with a *policy.RetryError holding
	// the error of every try -- see [Exhausted]
	BrandErrors bool
	// HaltFn identifies errors that must not be retried -- see [HaltFn]
	HaltFn func(error) bool
	// Each is called after every failed try -- see [Each]
	Each func(Status)
	// Metrics, if set, records every decision.
	Metrics *policy.Metrics
	// Trace annotates the span found in the run's context.
	Trace bool
	// Limiter paces retries across every run that shares it.
	Limiter *rate.Limiter
	// Extend is appended after every built in stage.
	Extend policy.Policy
}

// Default builds the default retry policy from the first config given, or
// from the zero Config. The chain is, outermost first:
//
//	[BrandError] → Logger → [Trace] → [Metrics] → [Each] → Halt →
//	Timeout → Breaker → [Throttle] → [FastTrack] → PollyJitter → [Extend]
//
// Throttle sits outside FastTrack, so a first retry made immediately still
// waits for the limiter.
func Default(configs ...Config) policy.Policy {
	var cfg Config
	if len(configs) > 0 {
		cfg = configs[0]
	}
	return cfg.Policy()
}

// Policy builds the policy described by c.
func (c Config) Policy() policy.Policy {
	c = c.withDefaults()
	var stages policy.Chain
	add := func(p policy.Policy) {
		stages = append(stages, p)
	}
	if c.BrandErrors {
		add(policy.BrandError())
	}
	add(policy.Logger(c.sinks()))
	if c.Trace {
		add(policy.Trace())
	}
	if c.Metrics != nil {
		add(c.Metrics.Policy())
	}
	if c.Each != nil {
		add(each(c.Each, c.MaxTries))
	}
	add(policy.Halt(c.HaltFn))
	if c.Timeout > 0 {
		add(policy.Timeout(c.Timeout))
	}
	if c.MaxTries > 0 {
		add(policy.Breaker(c.MaxTries))
	}
	if c.Limiter != nil {
		add(policy.Throttle(c.Limiter))
	}
	if c.FirstFast {
		add(policy.FastTrack())
	}
	add(policy.PollyJitter(c.InitialDelay, c.MaxDelay))
	if c.Extend != nil {
		add(c.Extend)
	}
	return policy.Join(stages...)
}

func (c Config) sinks() (warn, fail policy.LogFunc) {
	warn, fail = c.Warn, c.Error
	if warn == nil {
		warn = logger.Warningf
	}
	if fail == nil {
		fail = logger.Errorf
	}
	if c.NoWarn {
		warn = nil
	}
	if c.NoError {
		fail = nil
	}
	return warn, fail
}

func (c Config) withDefaults() Config {
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultInitialDelay
	}
	if c.MaxDelay <= 0 {
		if c.InitialDelay > DefaultMaxDelay {
			c.MaxDelay = c.InitialDelay
		} else {
			c.MaxDelay = DefaultMaxDelay
		}
	}
	if c.MaxTries == 0 {
		c.MaxTries = DefaultMaxTries
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// each reports every decision of the rest of the chain to fn.
func each(fn func(Status), maxTries int) policy.Policy {
	if maxTries < 0 {
		maxTries = 0
	}
	return policy.Observe(func(s *policy.State, next time.Duration, _ error) {
		fn(Status{
			TryNumber: s.Attempt(),
			MaxTries:  maxTries,
			Err:       s.Err(),
			NextDelay: next,
			Elapsed:   s.Elapsed(),
		})
	})
}

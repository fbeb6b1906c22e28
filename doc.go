/*
Package redo is an ergonomic retry library for Go.

It provides a set of generic retriers for functions of common signatures, driven by a composable retry policy. The default policy uses a jittered soft exponential backoff delay to limit concurrent requests downstream.

# Ergonomic?

The API is intended to be "ergonomic" in that it attempts to be intuitive to use and easy to integrate into existing code, without a lot of cognitive load.

To this end, it has the following features:
  - Declarative syntax to wrap existing code.
  - Short, memorable names for wrapping functions.
  - Support for functional options with sensible defaults as well as a [Config] type to predeclare a set of options for re-use.
  - Policies built from small units in package policy, joined with [policy.Join].

# Supported Function Types

The following function types are supported:

	|           Function Signature           |   Retry Method(s)    |
	|----------------------------------------|----------------------|
	| func() error                           | Fn                   |
	| func()(OUT, error)                     | FnOut                |
	| func(IN) error                         | FnIn, FnInRefr       |
	| func(IN) (OUT, error)                  | FnIO, FnIORefr       |
	| func(context.Context) error            | FnCtx                |
	| func(context.Context)(OUT, error)      | FnOutCtx             |
	| func(context.Context, IN) error        | FnInCtx, FnInCtxRefr |
	| func(context.Context, IN) (OUT, error) | FnIOCtx, FnIOCtxRefr |

Functions of the last signature, and method values with it, can also be wrapped once with [Wrap] and called many times.

# Retry Workflow

Functions are retried by invoking them with the appropriate package-level retry method. If the function fails, the policy is asked what to do: wait some delay and run it again, or give up with an error. This process will continue until one of the following conditions occurs:
  - The function returns successfully with a nil error value.
  - The policy gives up, for example once [MaxTries] or [Timeout] is reached.
  - The function is halted by a [HaltFn] or [Halt] is used to manually return a fatal error.
  - The context is cancelled.
  - The refresh function, if used, fails, returning a [*RefreshError].

In the case of context cancellation, context.Cause will be called on the
context to get the underlying error, if set. See [CtxCause].

# Custom Policies

A policy is a [policy.Policy] function. Units such as [policy.Backoff], [policy.FullJitter] and [policy.Breaker] are joined outermost first:

	p := policy.Join(
		policy.Logger(log.Printf, log.Printf),
		policy.Breaker(5),
		policy.FullJitter(),
		policy.Backoff(100*time.Millisecond, 2, 10*time.Second),
	)
	err := redo.Fn(ctx, fn, redo.WithPolicy(p))
*/
package redo

package redo

import (
	"context"
	"time"

	"andy.dev/redo/v2/policy"
)

// Fn is a retrier for functions with the signatures of:
//
//	func() error
//
// The error returned will be the ultimate error returned after all retries are
// complete or nil, in the case of a successful run. For more information on how
// functions will be retried and values returned, see the package documentation.
func Fn(ctx context.Context,
	fn func() error,
	options ...Option,
) error {
	return FnCtx(ctx, func(context.Context) error {
		return fn()
	}, options...)
}

// FnOut is a retrier for functions with the signature of:
//
//	func() (OUT, error)
//
// Where OUT is a return value of any type.
//
// The function will be retried following the rules described in the package
// documentation, and will return the values of the first successful run or the
// final unsuccessful run.
func FnOut[OUT any](
	ctx context.Context,
	fn func() (OUT, error),
	options ...Option,
) (OUT, error) {
	return FnOutCtx(ctx, func(context.Context) (OUT, error) {
		return fn()
	}, options...)
}

// FnIn is a retrier for functions with the signature of:
//
//	func(IN) error
//
// Where IN is an input argument fnArg of any type.
//
// Note: fn is passed by value, separately from fnArg:
//
//	FnIn(ctx, fnToRetry, <argument>) - CORRECT
//	FnIn(ctx, fnToRetry(<argument)) - INCORRECT
func FnIn[IN any](
	ctx context.Context,
	fn func(IN) error,
	fnArg IN,
	options ...Option,
) error {
	return FnInCtx(ctx, func(_ context.Context, arg IN) error {
		return (fn(arg))
	}, fnArg, options...)
}

// FnInRefr is a retrier for functions with the signature of:
//
//	func(IN) error
//
// Where IN is an input argument of any type. The initial value for this
// argument is passed using the fnArg argument and will be refreshed using
// refreshFn for subsequent retries, if needed.
func FnInRefr[IN any](
	ctx context.Context,
	fn func(IN) error,
	fnArg IN,
	refreshFn RefreshFn[IN],
	options ...Option,
) error {
	return FnInCtxRefr(ctx, func(_ context.Context, arg IN) error {
		return fn(arg)
	}, fnArg, refreshFn, options...)
}

// FnIO is a retrier for functions with the signature of:
//
//	func(IN)(OUT, ERROR)
//
// Where IN is an input argument fnArg of any type and OUT is a return value of
// any type.
//
// The function will be retried following the rules described in the package
// documentation, and will return the values of the first successful run or the
// final unsuccessful run. It is a combination of [FnIn] and [FnOut].
func FnIO[IN, OUT any](
	ctx context.Context,
	fn func(IN) (OUT, error),
	fnArg IN,
	options ...Option,
) (OUT, error) {
	return FnIOCtx(ctx, func(_ context.Context, arg IN) (OUT, error) {
		return fn(arg)
	}, fnArg, options...)
}

// FnIORefr is a retrier for functions with the signature of:
//
//	func(IN)(OUT, ERROR)
//
// Where IN is an input argument fnArg of any type and OUT is a return value of
// any type.The initial input value for fn is passed using the fnArg argument
// and will be refreshed using refreshFn for subsequent retries, if needed. It
// is a combination of [FnInRefr] and [FnOut].
func FnIORefr[IN, OUT any](
	ctx context.Context,
	fn func(IN) (OUT, error),
	fnArg IN,
	refreshFn RefreshFn[IN],
	options ...Option,
) (OUT, error) {
	return FnIOCtxRefr(ctx, func(_ context.Context, arg IN) (OUT, error) {
		return fn(arg)
	}, fnArg, refreshFn, options...)
}

// FnCtx is a retrier for functions with the following signature:
//
//	func(context.Context) error
//
// The error returned will be the ultimate error returned after all retries are
// complete or nil, in the case of a successful run. For more information on how
// functions will be retried and values returned, see the package documentation.
func FnCtx(
	ctx context.Context,
	fn func(context.Context) error,
	options ...Option,
) error {
	o := newOpts(options)
	return o.run(ctx, fn, o.policy())
}

// run drives fn through p until it succeeds, p returns an error or ctx is
// done. Every call gets its own state; tries never overlap.
func (o *opts) run(
	ctx context.Context,
	fn func(context.Context) error,
	p policy.Policy,
) error {
	if ctx.Err() != nil {
		return o.cause(ctx)
	}
	state := policy.NewState(ctx, o.clock.Now())
	defer state.Finish()
	rctx := context.WithValue(ctx, retryCtxKey, runInfo{
		state:    state,
		maxTries: o.maxTries(),
	})
	for {
		err := fn(rctx)
		if err == nil {
			return nil
		}
		state.Record(err, o.clock.Now())
		delay, err := p(state, nil)
		if err != nil {
			return err
		}
		state.Schedule(delay)
		if err := o.wait(ctx, state.Delay()); err != nil {
			return err
		}
	}
}

// wait sleeps for delay, returning the cancellation cause if ctx is done
// first.
func (o *opts) wait(ctx context.Context, delay time.Duration) error {
	if ctx.Err() != nil {
		return o.cause(ctx)
	}
	if delay <= 0 {
		return nil
	}
	t := o.clock.NewTimer(delay)
	select {
	case <-ctx.Done():
		t.Stop()
		return o.cause(ctx)
	case <-t.Chan():
		return nil
	}
}

func (o *opts) cause(ctx context.Context) error {
	if o.noCause {
		return ctx.Err()
	}
	return context.Cause(ctx)
}

// FnOutCtx is a retrier for functions with the signature of:
//
//	func(context.Context) (OUT, error)
//
// Where OUT is a return value of any type.
//
// The function will be retried following the rules described in the package
// documentation, and will return the values of the first successful run or the
// final unsuccessful run.
func FnOutCtx[OUT any](
	ctx context.Context,
	fn func(context.Context) (OUT, error),
	options ...Option,
) (OUT, error) {
	var (
		zero  OUT
		val   OUT
		fnErr error
	)
	err := FnCtx(ctx, func(ctx context.Context) error {
		val, fnErr = fn(ctx)
		return fnErr
	}, options...)
	if err != nil {
		return zero, err
	}
	return val, nil
}

// FnInCtx is a retrier for functions with the signature of:
//
//	func(context.Context, IN) error
//
// Where IN is an input argument fnArg of any type.
//
// Note: fn is passed by value, separately from fnArg:
//
//	FnInCtx(ctx, fnToRetry, <arg>) - CORRECT
//	FnInCtx(ctx, fnToRetry(arg)) - INCORRECT
func FnInCtx[IN any](
	ctx context.Context,
	fn func(context.Context, IN) error,
	fnArg IN,
	options ...Option,
) error {
	return FnCtx(ctx, func(ictx context.Context) error {
		return fn(ictx, fnArg)
	}, options...)
}

// FnInCtxRefr is a retrier for functions with the signature of:
//
//	func(context.Context, IN) error
//
// Where IN is an input argument of any type. The initial value for this
// argument is passed using the fnArg argument and will be refreshed using
// refreshFn for subsequent retries, if needed.
func FnInCtxRefr[IN any](
	ctx context.Context,
	fn func(context.Context, IN) error,
	fnArg IN,
	refreshFn RefreshFn[IN],
	options ...Option,
) error {
	return FnCtx(ctx, func(ictx context.Context) error {
		err := fn(ictx, fnArg)
		if err != nil {
			if refreshFn != nil {
				nArg, refreshErr := refreshFn()
				if refreshErr != nil {
					return Halt(errRefresh(refreshErr, err))
				}
				fnArg = nArg
			}
		}
		return err
	}, options...)
}

// FnIO is a retrier for functions with the signature of:
//
//	func(context.Context, IN)(OUT, ERROR)
//
// Where IN is an input argument fnArg of any type and OUT is a return value of
// any type.
//
// The function will be retried following the rules described in the package
// documentation, and will return the values of the first successful run or the
// final unsuccessful run. It is a combination of [FnInCtx] and [FnOutCtx].
func FnIOCtx[IN, OUT any](
	ctx context.Context,
	fn func(context.Context, IN) (OUT, error),
	fnArg IN,
	options ...Option,
) (OUT, error) {
	var (
		zero  OUT
		val   OUT
		fnErr error
	)
	err := FnInCtx(ctx, func(ictx context.Context, arg IN) error {
		val, fnErr = fn(ictx, arg)
		return fnErr
	}, fnArg, options...)
	if err != nil {
		return zero, err
	}
	return val, nil
}

// FnIOCtxRefr is a retrier for functions with the signature of:
//
//	func(context.Context, IN)(OUT, ERROR)
//
// Where IN is an input argument fnArg of any type and OUT is a return value of
// any type.The initial input value for fn is passed using the fnArg argument
// and will be refreshed using refreshFn for subsequent retries, if needed. It
// is a combination of [FnInCtxRefr] and [FnOutCtx].
func FnIOCtxRefr[IN, OUT any](
	ctx context.Context,
	fn func(context.Context, IN) (OUT, error),
	fnArg IN,
	refreshFn RefreshFn[IN],
	options ...Option,
) (OUT, error) {
	var (
		zero  OUT
		val   OUT
		fnErr error
	)
	err := FnInCtxRefr(ctx, func(ictx context.Context, arg IN) error {
		val, fnErr = fn(ictx, arg)
		return fnErr
	}, fnArg, refreshFn, options...)
	if err != nil {
		return zero, err
	}
	return val, nil
}

// RefreshFn is a function that can be passed to any of the -Refresh retriers to
// recreate or reset the input argument to the function between retries. If this
// function returns an error, it will be wrapped in a [*RefreshError] value,
// along with the underlying error that triggered the retry, and marked with
// [Halt] so that the default policy ends the run.
type RefreshFn[T any] func() (T, error)

// Func is a function wrapped by [Wrap]. Calling it runs the retry loop.
type Func[IN, OUT any] func(ctx context.Context, arg IN) (OUT, error)

// Wrap returns fn with retries built in. The options are resolved into a
// policy once, here, and shared by every call of the returned function; each
// call still gets its own retry state, so calls may run concurrently.
//
// Methods can be wrapped through their method values:
//
//	get := redo.Wrap(client.Get, redo.MaxTries(5))
//	resp, err := get(ctx, url)
func Wrap[IN, OUT any](
	fn func(context.Context, IN) (OUT, error),
	options ...Option,
) Func[IN, OUT] {
	o := newOpts(options)
	p := o.policy()
	return func(ctx context.Context, arg IN) (OUT, error) {
		var (
			zero OUT
			val  OUT
		)
		err := o.run(ctx, func(ictx context.Context) error {
			var fnErr error
			val, fnErr = fn(ictx, arg)
			return fnErr
		}, p)
		if err != nil {
			return zero, err
		}
		return val, nil
	}
}

// Bind fixes the context of f, for call sites that do not pass one around.
// Cancelling ctx ends any run of the returned function that is waiting to
// retry.
func (f Func[IN, OUT]) Bind(ctx context.Context) func(IN) (OUT, error) {
	return func(arg IN) (OUT, error) {
		return f(ctx, arg)
	}
}

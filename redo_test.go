package redo_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/loggo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"andy.dev/redo/v2"
	"andy.dev/redo/v2/policy"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	errTemp  = errors.New("temporary failure")
	errFatal = errors.New("fatal failure")
)

// quiet keeps test runs fast and the logger silent.
var quiet = []redo.Option{
	redo.InitialDelay(time.Microsecond),
	redo.MaxDelay(time.Millisecond),
	redo.NoWarnLog(),
	redo.NoErrorLog(),
}

func with(opts ...redo.Option) []redo.Option {
	return append(append([]redo.Option{}, quiet...), opts...)
}

// failTimes returns a function failing n times with errTemp before succeeding,
// and a pointer to its call count.
func failTimes(n int) (func(context.Context) error, *int) {
	calls := 0
	return func(context.Context) error {
		calls++
		if calls <= n {
			return errTemp
		}
		return nil
	}, &calls
}

func TestCtxCancel(t *testing.T) {
	waitOrCancel := func(ctx context.Context) error {
		select {
		case <-time.After(10 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	inner := func(ctx context.Context) error {
		innerTimeoutCtx, cf := context.WithTimeout(ctx, 1*time.Millisecond)
		defer cf()
		return waitOrCancel(innerTimeoutCtx)
	}

	testConfig := redo.Config{
		InitialDelay: 10 * time.Microsecond,
		MaxDelay:     10 * time.Millisecond,
		MaxTries:     3,
		FirstFast:    true,
		NoWarn:       true,
		NoError:      true,
		BrandErrors:  true,
	}

	t.Run("InnerCtxCancelContinues", func(t *testing.T) {
		err := redo.FnCtx(context.Background(), inner, redo.WithConfig(testConfig))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.True(t, redo.Exhausted(err), "should reach MaxTries")
	})

	t.Run("OuterCtxCancelHalts", func(t *testing.T) {
		outerTimeoutCtx, cf := context.WithTimeout(context.Background(), 1)
		defer cf()
		err := redo.FnCtx(outerTimeoutCtx, inner, redo.WithConfig(testConfig))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, redo.Exhausted(err), "should not reach MaxTries")
	})
}

func TestCancelledBeforeFirstTry(t *testing.T) {
	cause := errors.New("not today")
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(cause)

	fn, calls := failTimes(0)
	err := redo.FnCtx(ctx, fn, quiet...)
	assert.Equal(t, cause, err)
	assert.Zero(t, *calls)
}

func TestCancelWhileWaiting(t *testing.T) {
	const maxTries = 5
	cause := errors.New("changed my mind")
	clk := testclock.NewClock(time.Now())
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- redo.FnCtx(ctx, func(context.Context) error {
			calls++
			return errTemp
		}, redo.WithClock(clk), redo.InitialDelay(time.Hour), redo.Timeout(-1),
			redo.MaxTries(maxTries), redo.NoWarnLog(), redo.NoErrorLog())
	}()

	// delays never exceed the one hour cap, so this lets the second try run
	require.NoError(t, clk.WaitAdvance(2*time.Hour, time.Second, 1))
	require.NoError(t, clk.WaitAdvance(time.Nanosecond, time.Second, 1))
	cancel(cause)
	select {
	case err := <-done:
		assert.Equal(t, cause, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not end on cancellation")
	}
	assert.Equal(t, 2, calls)
	assert.Less(t, calls, maxTries)
}

func TestCtxCauseDisabled(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(errors.New("some cause"))

	fn, _ := failTimes(0)
	err := redo.FnCtx(ctx, fn, with(redo.CtxCause(false))...)
	assert.Equal(t, context.Canceled, err)
}

func TestDelayUsesClock(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	fn, calls := failTimes(1)

	done := make(chan error, 1)
	go func() {
		done <- redo.FnCtx(context.Background(), fn, redo.WithClock(clk),
			redo.InitialDelay(time.Second), redo.NoWarnLog(), redo.NoErrorLog())
	}()

	// the first delay is well under 2s for a 1s initial delay
	require.NoError(t, clk.WaitAdvance(10*time.Second, time.Second, 1))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not resume after the delay")
	}
	assert.Equal(t, 2, *calls)
}

func TestMaxTries(t *testing.T) {
	for _, tries := range []int{1, 2, 5} {
		t.Run(fmt.Sprint(tries), func(t *testing.T) {
			fn, calls := failTimes(100)
			err := redo.FnCtx(context.Background(), fn, with(redo.MaxTries(tries))...)
			assert.Equal(t, errTemp, err)
			assert.Equal(t, tries, *calls)
		})
	}
}

func TestDefaultRun(t *testing.T) {
	var warns, errs []string
	record := func(into *[]string) policy.LogFunc {
		return func(format string, args ...any) {
			*into = append(*into, fmt.Sprintf(format, args...))
		}
	}

	fn, calls := failTimes(2)
	err := redo.FnCtx(context.Background(), fn,
		redo.InitialDelay(time.Microsecond),
		redo.WarnLog(record(&warns)),
		redo.ErrorLog(record(&errs)),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, *calls)
	assert.Len(t, warns, 2)
	assert.Empty(t, errs)
}

func TestDefaultPolicyRun(t *testing.T) {
	var w loggo.TestWriter
	require.NoError(t, loggo.RegisterWriter("redo-default-run", &w))
	defer func() { _, _ = loggo.RemoveWriter("redo-default-run") }()

	clk := testclock.NewClock(time.Now())
	fn, calls := failTimes(2)
	done := make(chan error, 1)
	go func() {
		done <- redo.FnCtx(context.Background(), fn,
			redo.WithPolicy(redo.Default()), redo.WithClock(clk))
	}()

	// the first two default delays stay well under a second each
	require.NoError(t, clk.WaitAdvance(time.Second, time.Second, 1))
	require.NoError(t, clk.WaitAdvance(time.Second, time.Second, 1))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	assert.Equal(t, 3, *calls)

	var levels []loggo.Level
	for _, entry := range w.Log() {
		if entry.Module == "redo" {
			levels = append(levels, entry.Level)
		}
	}
	assert.Equal(t, []loggo.Level{loggo.WARNING, loggo.WARNING}, levels)
}

func TestGiveUpIsLogged(t *testing.T) {
	var errs []string
	fn, _ := failTimes(100)
	err := redo.FnCtx(context.Background(), fn,
		redo.InitialDelay(time.Microsecond),
		redo.MaxTries(2),
		redo.NoWarnLog(),
		redo.ErrorLog(func(format string, args ...any) {
			errs = append(errs, fmt.Sprintf(format, args...))
		}),
	)
	assert.Equal(t, errTemp, err)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "giving up after 2 attempts")
}

func TestWithPolicy(t *testing.T) {
	fn, calls := failTimes(100)
	err := redo.FnCtx(context.Background(), fn, redo.WithPolicy(policy.Breaker(1)))
	assert.Equal(t, errTemp, err)
	assert.Equal(t, 1, *calls)

	var statuses []redo.Status
	fn, calls = failTimes(100)
	err = redo.FnCtx(context.Background(), fn,
		redo.WithPolicy(policy.Join(policy.Breaker(3), policy.Backoff(time.Microsecond, 2, time.Millisecond))),
		redo.HaltErrors(errFatal),
		redo.Each(func(s redo.Status) { statuses = append(statuses, s) }),
	)
	assert.Equal(t, errTemp, err)
	assert.Equal(t, 3, *calls)
	require.Len(t, statuses, 3)
	assert.Zero(t, statuses[0].MaxTries)
}

func TestHalt(t *testing.T) {
	t.Run("Returned", func(t *testing.T) {
		calls := 0
		err := redo.FnCtx(context.Background(), func(context.Context) error {
			calls++
			if calls == 2 {
				return redo.Halt(errFatal)
			}
			return errTemp
		}, quiet...)
		assert.True(t, redo.Halted(err))
		assert.ErrorIs(t, err, errFatal)
		assert.Equal(t, 2, calls)
	})

	t.Run("HaltErrors", func(t *testing.T) {
		calls := 0
		err := redo.FnCtx(context.Background(), func(context.Context) error {
			calls++
			return fmt.Errorf("wrapped: %w", errFatal)
		}, with(redo.HaltErrors(errTemp, errFatal))...)
		assert.True(t, redo.Halted(err))
		assert.ErrorIs(t, err, errFatal)
		assert.Equal(t, 1, calls)
	})

	t.Run("HaltFn", func(t *testing.T) {
		fn, calls := failTimes(100)
		err := redo.FnCtx(context.Background(), fn, with(redo.HaltFn(func(error) bool { return true }))...)
		assert.True(t, redo.Halted(err))
		assert.Equal(t, 1, *calls)
	})

	assert.False(t, redo.Halted(errTemp))
	assert.False(t, redo.Halted(nil))
}

func TestEach(t *testing.T) {
	var statuses []redo.Status
	fn, _ := failTimes(100)
	_ = redo.FnCtx(context.Background(), fn, with(
		redo.MaxTries(3),
		redo.Each(func(s redo.Status) { statuses = append(statuses, s) }),
	)...)
	require.Len(t, statuses, 3)
	for i, s := range statuses {
		assert.Equal(t, i+1, s.TryNumber)
		assert.Equal(t, 3, s.MaxTries)
		assert.Equal(t, errTemp, s.Err)
	}
	assert.Zero(t, statuses[2].NextDelay, "no delay once the run gives up")
}

func TestBrandErrors(t *testing.T) {
	fn, _ := failTimes(100)
	err := redo.FnCtx(context.Background(), fn, with(redo.MaxTries(3), redo.BrandErrors())...)
	require.True(t, redo.Exhausted(err))
	assert.ErrorIs(t, err, errTemp)

	var re *policy.RetryError
	require.ErrorAs(t, err, &re)
	assert.Len(t, re.Errors(), 3)

	fn, _ = failTimes(100)
	err = redo.FnCtx(context.Background(), fn, with(redo.MaxTries(3))...)
	assert.False(t, redo.Exhausted(err))
}

func TestBrandErrorsWithHalt(t *testing.T) {
	calls := 0
	err := redo.FnCtx(context.Background(), func(context.Context) error {
		calls++
		if calls == 2 {
			return errFatal
		}
		return errTemp
	}, with(redo.BrandErrors(), redo.HaltErrors(errFatal))...)

	assert.Equal(t, 2, calls)
	assert.True(t, redo.Halted(err))
	assert.True(t, redo.Exhausted(err))
	assert.ErrorIs(t, err, errFatal)

	var re *policy.RetryError
	require.ErrorAs(t, err, &re)
	assert.Len(t, re.Errors(), 2)
}

func TestGetStatus(t *testing.T) {
	assert.Equal(t, redo.Status{}, redo.GetStatus(context.Background()))
	assert.False(t, redo.Retrying(context.Background()))

	var seen []redo.Status
	calls := 0
	err := redo.FnCtx(context.Background(), func(ctx context.Context) error {
		assert.True(t, redo.Retrying(ctx))
		seen = append(seen, redo.GetStatus(ctx))
		calls++
		if calls < 3 {
			return errTemp
		}
		return nil
	}, with(redo.MaxTries(5))...)
	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.Equal(t, 1, seen[0].TryNumber)
	assert.NoError(t, seen[0].Err)
	assert.Equal(t, 3, seen[2].TryNumber)
	assert.Equal(t, 5, seen[2].MaxTries)
	assert.Equal(t, errTemp, seen[2].Err)
}

func TestRefresh(t *testing.T) {
	t.Run("NewArgument", func(t *testing.T) {
		var args []int
		next := 0
		out, err := redo.FnIORefr(context.Background(), func(n int) (int, error) {
			args = append(args, n)
			if n < 2 {
				return 0, errTemp
			}
			return n * 10, nil
		}, 0, func() (int, error) {
			next++
			return next, nil
		}, quiet...)
		require.NoError(t, err)
		assert.Equal(t, 20, out)
		assert.Equal(t, []int{0, 1, 2}, args)
	})

	t.Run("FailureHalts", func(t *testing.T) {
		errRefresh := errors.New("no connection")
		calls := 0
		err := redo.FnInRefr(context.Background(), func(string) error {
			calls++
			return errTemp
		}, "arg", func() (string, error) {
			return "", errRefresh
		}, quiet...)
		assert.Equal(t, 1, calls)
		assert.True(t, redo.Halted(err))

		var re *redo.RefreshError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, errTemp, re.RetryErr())
		assert.ErrorIs(t, err, errRefresh)
	})
}

func TestFnSignatures(t *testing.T) {
	ctx := context.Background()
	calls := 0
	flaky := func() error {
		calls++
		if calls%2 == 1 {
			return errTemp
		}
		return nil
	}

	require.NoError(t, redo.Fn(ctx, flaky, quiet...))

	out, err := redo.FnOut(ctx, func() (string, error) { return "ok", flaky() }, quiet...)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	require.NoError(t, redo.FnIn(ctx, func(int) error { return flaky() }, 1, quiet...))

	n, err := redo.FnIO(ctx, func(n int) (int, error) { return n + 1, flaky() }, 1, quiet...)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = redo.FnOutCtx(ctx, func(context.Context) (int, error) {
		return 0, errFatal
	}, with(redo.MaxTries(1))...)
	assert.Equal(t, errFatal, err)
}

func TestWrap(t *testing.T) {
	var mu sync.Mutex
	attempts := map[int]int{}
	get := redo.Wrap(func(ctx context.Context, id int) (string, error) {
		mu.Lock()
		attempts[id]++
		n := attempts[id]
		mu.Unlock()
		if n < 3 {
			return "", errTemp
		}
		return fmt.Sprintf("item %d", id), nil
	}, with(redo.MaxTries(5))...)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := get(context.Background(), i)
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	wg.Wait()
	for i, v := range results {
		assert.Equal(t, fmt.Sprintf("item %d", i), v)
		assert.Equal(t, 3, attempts[i])
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bound := get.Bind(ctx)
	_, err := bound(99)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, attempts[99])
}

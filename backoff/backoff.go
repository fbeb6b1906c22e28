// Package backoff holds the delay curves used by the retry policies. The
// functions are pure: randomness is supplied by the caller so that policies
// control their own sources and tests can pin values.
package backoff

import (
	"math"
	"time"
)

const (
	smoothing = 4.0
	// pollyScale normalises the first step of Curve so that the median
	// first delay is close to the initial delay.
	pollyScale = 1 / 1.4
	maxintf    = float64(math.MaxInt64) - 1
)

// Clamp converts a delay expressed in nanoseconds to a time.Duration no larger
// than max. Negative values become 0. A max <= 0 only guards against int64
// overflow.
func Clamp(ns float64, max time.Duration) time.Duration {
	switch {
	case ns <= 0 || math.IsNaN(ns):
		return 0
	case max > 0 && ns > float64(max):
		return max
	case ns > maxintf:
		// maxintf serves as a backstop against float64->int64 overflow
		return time.Duration(math.MaxInt64)
	default:
		return time.Duration(ns)
	}
}

// Exponential returns delay * exponent^(attempt-1), capped at max.
func Exponential(delay time.Duration, exponent float64, attempt int, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return Clamp(float64(delay)*math.Pow(exponent, float64(attempt-1)), max)
}

// Curve evaluates the soft exponential 2^t * tanh(sqrt(4t)). Successive
// differences of the curve at t = n + rand give an exponential delay with
// smoothly bounded jitter.
func Curve(t float64) float64 {
	return math.Pow(2, t) * math.Tanh(math.Sqrt(smoothing*t))
}

// Polly returns the delay for one step of the soft exponential curve, where
// curr and prev are consecutive values of Curve.
func Polly(curr, prev float64, initial, max time.Duration) time.Duration {
	return Clamp((curr-prev)*pollyScale*float64(initial), max)
}

// Decorrelated returns a delay drawn from [initial, min(max, 3*base)) using
// r in [0, 1).
func Decorrelated(initial, base, max time.Duration, r float64) time.Duration {
	lo := float64(initial)
	top := 3 * float64(base)
	if max > 0 && top > float64(max) {
		top = float64(max)
	}
	return Clamp(lo+r*(top-lo), 0)
}

package policy

import "testing"

// SetRandom pins the random source for the duration of a test.
func SetRandom(t *testing.T, r float64) {
	orig := random
	random = func() float64 { return r }
	t.Cleanup(func() { random = orig })
}

package policy

import (
	"context"
	"sync/atomic"
	"time"
)

var stateSeq atomic.Uint64

// State is the retry record of one operation invocation: every attempt made
// by a single call shares it. It is created and updated by the execution
// loop. Policies only read it.
type State struct {
	id      uint64
	ctx     context.Context
	attempt int
	delay   time.Duration
	elapsed time.Duration
	err     error
	errs    []error
	start   time.Time
	finish  []func()
}

// NewState returns the state for an operation whose first attempt begins at
// start. ctx is the caller's context, made available to policies through
// [State.Context].
func NewState(ctx context.Context, start time.Time) *State {
	if ctx == nil {
		ctx = context.Background()
	}
	return &State{
		id:    stateSeq.Add(1),
		ctx:   ctx,
		start: start,
	}
}

// ID is unique for every State created by the process.
func (s *State) ID() uint64 { return s.id }

// Context returns the context of the call that owns this state.
func (s *State) Context() context.Context { return s.ctx }

// Attempt is the number of failed attempts so far.
func (s *State) Attempt() int { return s.attempt }

// Delay is the delay committed before the most recent retry, or 0 if no retry
// has been scheduled yet.
func (s *State) Delay() time.Duration { return s.delay }

// Elapsed is the time between the start of the first attempt and the most
// recent failure.
func (s *State) Elapsed() time.Duration { return s.elapsed }

// Err returns the error of the most recent failed attempt.
func (s *State) Err() error { return s.err }

// Errors returns every failure so far, oldest first.
func (s *State) Errors() []error {
	out := make([]error, len(s.errs))
	copy(out, s.errs)
	return out
}

// Start is the time the first attempt began.
func (s *State) Start() time.Time { return s.start }

// Record registers a failed attempt observed at now.
func (s *State) Record(err error, now time.Time) {
	s.attempt++
	if e := now.Sub(s.start); e > s.elapsed {
		s.elapsed = e
	}
	s.err = err
	s.errs = append(s.errs, err)
}

// Schedule commits the delay applied before the next attempt.
func (s *State) Schedule(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.delay = d
}

// OnFinish registers fn to run when the operation terminates. Policies that
// keep data per state use it to drop that data.
func (s *State) OnFinish(fn func()) {
	s.finish = append(s.finish, fn)
}

// Finish runs the functions registered with OnFinish, once.
func (s *State) Finish() {
	fns := s.finish
	s.finish = nil
	for _, fn := range fns {
		fn()
	}
}

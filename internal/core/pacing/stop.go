// Package pacing holds the cooperative stop flag, interruptible sleeps and
// randomized delay ranges shared by every sequential loop of a cycle.
package pacing

import (
	"errors"
	"sync"
)

// ErrStopRequested is returned at a checkpoint once Stop has been requested.
var ErrStopRequested = errors.New("stop requested")

// StopFlag is the single process-wide "stop requested" flag.
// A nil *StopFlag is never stopped.
type StopFlag struct {
	once sync.Once
	ch   chan struct{}
}

// NewStopFlag creates an unset flag.
func NewStopFlag() *StopFlag {
	return &StopFlag{ch: make(chan struct{})}
}

// Request sets the flag. Safe to call more than once.
func (f *StopFlag) Request() {
	if f == nil {
		return
	}
	f.once.Do(func() { close(f.ch) })
}

// Requested reports whether the flag is set.
func (f *StopFlag) Requested() bool {
	if f == nil {
		return false
	}
	select {
	case <-f.ch:
		return true
	default:
		return false
	}
}

// Done is closed once the flag is set.
func (f *StopFlag) Done() <-chan struct{} {
	if f == nil {
		return nil
	}
	return f.ch
}

// Check is the checkpoint helper used at the top of loop iterations.
func (f *StopFlag) Check() error {
	if f.Requested() {
		return ErrStopRequested
	}
	return nil
}

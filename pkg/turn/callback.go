// Package turn coordinates one request/response exchange between a game
// loop and a view: the view is asked to present a turn, an answer arrives
// later from somewhere else, and a watchdog decides when to stop waiting.
package turn

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrTimeout is returned by Call and Watchdog.Wait when no complete
	// answer was observed before the turn deadline.
	ErrTimeout = errors.New("turn: no answer before deadline")

	// ErrAlreadyAnswered is returned when a second answer is recorded on
	// the same callback. The first answer is kept.
	ErrAlreadyAnswered = errors.New("turn: answer already recorded")
)

// Callback is the shared record of a single turn. The controller writes the
// inputs once at construction, the responder writes the answer once, and the
// coordinator flags call completion. Each field has a single writer.
type Callback[In, Out any] struct {
	inputs    In
	answer    atomic.Pointer[Out]
	completed atomic.Bool
}

// NewCallback creates a callback carrying a snapshot of the turn inputs.
// Callers must not mutate anything reachable from inputs afterwards.
func NewCallback[In, Out any](inputs In) *Callback[In, Out] {
	return &Callback[In, Out]{inputs: inputs}
}

// Inputs returns the state snapshot the turn was opened with.
func (c *Callback[In, Out]) Inputs() In {
	return c.inputs
}

// RecordAnswer stores the responder's answer. Only the first call wins.
func (c *Callback[In, Out]) RecordAnswer(v Out) error {
	if !c.answer.CompareAndSwap(nil, &v) {
		return ErrAlreadyAnswered
	}
	return nil
}

// Answer returns the recorded answer, if any.
func (c *Callback[In, Out]) Answer() (Out, bool) {
	p := c.answer.Load()
	if p == nil {
		var zero Out
		return zero, false
	}
	return *p, true
}

// Answered reports whether an answer has been recorded.
func (c *Callback[In, Out]) Answered() bool {
	return c.answer.Load() != nil
}

// MarkCallCompleted flags that the view's call activity has returned,
// normally or by failure.
func (c *Callback[In, Out]) MarkCallCompleted() {
	c.completed.Store(true)
}

// CallCompleted reports whether MarkCallCompleted has been called.
func (c *Callback[In, Out]) CallCompleted() bool {
	return c.completed.Load()
}

// IsReady is true once the call activity has returned and an answer exists.
func (c *Callback[In, Out]) IsReady() bool {
	return c.completed.Load() && c.answer.Load() != nil
}

package turn

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultGrace is the pause before the first readiness check.
	DefaultGrace = 50 * time.Millisecond
	// DefaultInterval is the polling cadence after the grace period.
	DefaultInterval = time.Second
	// NoTimeout disables the turn deadline.
	NoTimeout time.Duration = 0
)

// Readiness is what the watchdog polls.
type Readiness interface {
	IsReady() bool
}

// Turn is the part of a turn record the coordinator drives.
type Turn interface {
	Readiness
	MarkCallCompleted()
}

// Watchdog polls a turn until it is ready or its deadline passes.
// The zero value uses DefaultGrace and DefaultInterval.
type Watchdog struct {
	Grace    time.Duration
	Interval time.Duration
}

// DefaultWatchdog returns the standard polling cadence.
func DefaultWatchdog() Watchdog {
	return Watchdog{Grace: DefaultGrace, Interval: DefaultInterval}
}

// Wait blocks until r is ready, the timeout elapses, or ctx is done.
// A timeout <= 0 waits indefinitely. The deadline is only checked at poll
// points, so a timeout fires up to one Interval late.
func (w Watchdog) Wait(ctx context.Context, r Readiness, timeout time.Duration) error {
	grace, interval := w.Grace, w.Interval
	if grace <= 0 {
		grace = DefaultGrace
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	start := time.Now()
	timer := time.NewTimer(grace)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if r.IsReady() {
			return nil
		}
		if elapsed := time.Since(start); timeout > 0 && elapsed > timeout {
			return fmt.Errorf("%w: waited %s of %s", ErrTimeout, elapsed.Round(time.Millisecond), timeout)
		}
		timer.Reset(interval)
	}
}

// Call asks v to present turn t and waits for an answer under timeout.
//
// The view call and the watchdog run concurrently. Call returns nil once the
// view call has returned and an answer is recorded, an error wrapping
// ErrTimeout when the deadline passes first, the view's own error (or a
// converted panic) when the call fails, and ctx.Err() when ctx is cancelled.
// On timeout or cancellation the view call is abandoned: its context is
// cancelled and anything it writes later lands on the discarded t.
func Call[T Turn](ctx context.Context, w Watchdog, v View[T], t T, timeout time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	callDone := make(chan error, 1)
	go func() {
		callDone <- invoke(ctx, v, t)
	}()

	waitDone := make(chan error, 1)
	go func() {
		waitDone <- w.Wait(ctx, t, timeout)
	}()

	select {
	case err := <-callDone:
		if err != nil {
			return err
		}
		return <-waitDone
	case err := <-waitDone:
		if err != nil {
			return err
		}
		// Ready implies the call activity has marked completion.
		return <-callDone
	}
}

func invoke[T Turn](ctx context.Context, v View[T], t T) (err error) {
	defer t.MarkCallCompleted()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("turn: view call panicked: %v", r)
		}
	}()
	return v.Call(ctx, t)
}

package turn

import (
	"context"
	"sync/atomic"
)

// View presents a turn to whoever is expected to answer it. Call may record
// the answer itself before returning, or leave that to an asynchronous
// input path. It should return promptly once ctx is done.
type View[T any] interface {
	Call(ctx context.Context, t T) error
}

// ViewFunc adapts a function to the View interface.
type ViewFunc[T any] func(ctx context.Context, t T) error

// Call implements View.
func (f ViewFunc[T]) Call(ctx context.Context, t T) error { return f(ctx, t) }

// Pending holds the single open turn of a view. Input that arrives while
// nothing is open is dropped by the caller; it is never queued.
type Pending[C any] struct {
	cur atomic.Pointer[C]
}

// Open makes c the current turn, replacing any stale one.
func (p *Pending[C]) Open(c *C) {
	p.cur.Store(c)
}

// Take returns the current turn and clears it. Concurrent callers see at
// most one non-nil result per Open.
func (p *Pending[C]) Take() *C {
	return p.cur.Swap(nil)
}

// IsOpen reports whether a turn is waiting for input.
func (p *Pending[C]) IsOpen() bool {
	return p.cur.Load() != nil
}

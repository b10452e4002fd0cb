package watch

import (
	"context"
	"sync/atomic"
)

// StopSignal is the cooperative cancellation capability consulted by
// [Watcher.Watch] between steps. The engine only ever reads it; setting
// it is the caller's business. Implementations must be safe for
// concurrent use.
type StopSignal interface {
	IsSet() bool
}

// Flag is a single-shot stop latch. The zero value is ready to use.
// Once set it never resets.
type Flag struct {
	set atomic.Bool
}

// Set latches the flag.
func (f *Flag) Set() {
	f.set.Store(true)
}

// IsSet reports whether the flag has been set.
func (f *Flag) IsSet() bool {
	return f.set.Load()
}

// ContextStop adapts a context to a StopSignal: the signal reads as set
// once the context is done.
func ContextStop(ctx context.Context) StopSignal {
	return ctxStop{ctx: ctx}
}

type ctxStop struct {
	ctx context.Context
}

func (c ctxStop) IsSet() bool {
	return c.ctx.Err() != nil
}

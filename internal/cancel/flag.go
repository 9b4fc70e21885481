// Package cancel holds the process-wide cancellation flag shared between the
// control actor and the session actor.
package cancel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrCancelled is returned by checkpoints once a forced stop was requested.
// It is not a failure: callers treat it as a deliberate termination.
var ErrCancelled = errors.New("cancellation requested")

// Flag is an atomic boolean paired with the context of the session it guards.
// Setting the flag cancels that context, which the Lua VM observes on every
// instruction.
type Flag struct {
	set atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Arm derives the session context from parent. The returned context is
// cancelled when the flag is set or parent is done. A flag that is already set
// yields an already-cancelled context.
func (f *Flag) Arm(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	f.mu.Lock()
	f.cancel = cancel
	f.mu.Unlock()
	if f.set.Load() {
		cancel()
	}
	return ctx
}

// Set raises the flag. Safe to call from any goroutine, any number of times.
func (f *Flag) Set() {
	f.set.Store(true)
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// IsSet reports whether a stop was requested.
func (f *Flag) IsSet() bool {
	return f.set.Load()
}

// Clear lowers the flag and releases the armed context.
func (f *Flag) Clear() {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	f.set.Store(false)
}

// Checkpoint returns ErrCancelled when the flag is set.
func (f *Flag) Checkpoint() error {
	if f.set.Load() {
		return ErrCancelled
	}
	return nil
}

// Sleep blocks for d, waking every poll to check the flag and ctx. It returns
// ErrCancelled as soon as either fires.
func (f *Flag) Sleep(ctx context.Context, d, poll time.Duration) error {
	if poll <= 0 {
		poll = d
	}
	deadline := time.Now().Add(d)
	for {
		if err := f.Checkpoint(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		step := min(poll, remaining)
		t := time.NewTimer(step)
		select {
		case <-ctx.Done():
			t.Stop()
			return ErrCancelled
		case <-t.C:
		}
	}
}

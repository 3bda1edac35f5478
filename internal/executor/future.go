package executor

import (
	"context"
	"fmt"
	"sync"
)

// Future is the pending result of a pushed task.
type Future struct {
	done  chan struct{}
	once  sync.Once
	value any
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func settledFuture(value any, err error) *Future {
	f := newFuture()
	f.settle(value, err)
	return f
}

func (f *Future) settle(value any, err error) {
	f.once.Do(func() {
		f.value, f.err = value, err
		close(f.done)
	})
}

// Done is closed once the task settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task settled or ctx is done. Giving up on ctx does
// not cancel the task; pass the context to Push for that.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Err returns the task's error, or nil while it is still pending.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Await waits for f and asserts its value to T.
func Await[T any](ctx context.Context, f *Future) (T, error) {
	var zero T
	value, err := f.Wait(ctx)
	if err != nil {
		return zero, err
	}
	if value == nil {
		return zero, nil
	}
	typed, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("task resolved to %T, not %T", value, zero)
	}
	return typed, nil
}

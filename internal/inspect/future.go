package inspect

import (
	"context"
	"errors"
)

// Callback receives either a result or a failure message, never both.
type Callback[T any] func(result *T, errMsg string)

// outcome is the single completion shared by the future and callback forms.
type outcome[T any] struct {
	result *T
	errMsg string
	failed bool
}

func succeeded[T any](result *T) outcome[T] {
	return outcome[T]{result: result}
}

func failed[T any](err error) outcome[T] {
	return outcome[T]{errMsg: err.Error(), failed: true}
}

// Future is a deferred inspection result.
type Future[T any] struct {
	done chan struct{}
	out  outcome[T]
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(o outcome[T]) {
	f.out = o
	close(f.done)
}

// Done is closed once the inspection has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the inspection finishes or ctx ends. A failed
// inspection returns an error carrying only the failure message.
func (f *Future[T]) Await(ctx context.Context) (*T, error) {
	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if f.out.failed {
		return nil, errors.New(f.out.errMsg)
	}
	return f.out.result, nil
}

type operation[T any] func(ctx context.Context) (*T, error)

// run executes op on its own goroutine and hands the outcome to complete.
func run[T any](ctx context.Context, op operation[T], complete func(outcome[T])) {
	go func() {
		result, err := op(ctx)
		if err != nil {
			complete(failed[T](err))
			return
		}
		complete(succeeded(result))
	}()
}

func runFuture[T any](ctx context.Context, op operation[T]) *Future[T] {
	f := newFuture[T]()
	run(ctx, op, f.resolve)
	return f
}

func runCallback[T any](ctx context.Context, op operation[T], cb Callback[T]) {
	run(ctx, op, func(o outcome[T]) {
		if cb != nil {
			cb(o.result, o.errMsg)
		}
	})
}

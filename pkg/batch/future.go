// Package batch provides futures and an ordered batch of futures with
// bulk transformation and error interception.
//
// A Batch keeps its length and order through every operation: Pipe,
// PipeOrdered and Catch replace each future with a new one at the same
// position, so only the values change.
//
//	b := batch.New(futures...).
//		Pipe(decode).
//		Catch(func(err error, i int, _ []*batch.Future[Page]) (Page, error) {
//			return Page{Index: i, Err: err}, nil
//		})
//	pages, err := b.All(ctx)
package batch

import (
	"context"
	"fmt"
)

// Future is the eventual result of an asynchronous computation.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Go runs fn in a new goroutine and returns its future. A panic in fn
// rejects the future.
func Go[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.err = fmt.Errorf("panic: %v", r)
			}
		}()
		f.value, f.err = fn()
	}()
	return f
}

// Resolved returns a future already holding v.
func Resolved[T any](v T) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), value: v}
	close(f.done)
	return f
}

// Rejected returns a future already failed with err.
func Rejected[T any](err error) *Future[T] {
	f := &Future[T]{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Done is closed when the future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await waits for the future or ctx, whichever comes first. Cancelling ctx
// only stops the wait, not the computation.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// wait blocks until the future settles.
func (f *Future[T]) wait() (T, error) {
	<-f.done
	return f.value, f.err
}

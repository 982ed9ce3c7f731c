package batch

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Transform maps the value at index. snapshot holds the futures of the
// batch as they were when the transformation was attached.
type Transform[T, U any] func(value T, index int, snapshot []*Future[T]) (U, error)

// Handler replaces the error of a failed item with a value.
type Handler[T any] func(err error, index int, snapshot []*Future[T]) (T, error)

// Batch is an ordered collection of futures.
//
// Methods modify the batch in place and return it for chaining. A Batch is
// safe for concurrent use.
type Batch[T any] struct {
	mu      sync.Mutex
	futures []*Future[T]
}

// New creates a batch holding futures in order.
func New[T any](futures ...*Future[T]) *Batch[T] {
	return &Batch[T]{futures: slices.Clone(futures)}
}

// FromValues creates a batch of resolved futures.
func FromValues[T any](values ...T) *Batch[T] {
	return New(wrap(values)...)
}

func wrap[T any](values []T) []*Future[T] {
	futures := make([]*Future[T], len(values))
	for i, v := range values {
		futures[i] = Resolved(v)
	}
	return futures
}

// Len returns the number of items.
func (b *Batch[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.futures)
}

// Futures returns a copy of the current futures in order.
func (b *Batch[T]) Futures() []*Future[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.futures)
}

// Append adds futures at the end.
func (b *Batch[T]) Append(futures ...*Future[T]) *Batch[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.futures = append(b.futures, futures...)
	return b
}

// AppendValues adds resolved futures for values at the end.
func (b *Batch[T]) AppendValues(values ...T) *Batch[T] {
	return b.Append(wrap(values)...)
}

// Prepend adds futures at the front, keeping their order.
func (b *Batch[T]) Prepend(futures ...*Future[T]) *Batch[T] {
	return b.Insert(0, futures...)
}

// PrependValues adds resolved futures for values at the front.
func (b *Batch[T]) PrependValues(values ...T) *Batch[T] {
	return b.Insert(0, wrap(values)...)
}

// Insert splices futures in before position. A position outside the batch
// is clamped to its bounds.
func (b *Batch[T]) Insert(position int, futures ...*Future[T]) *Batch[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	position = max(0, min(position, len(b.futures)))
	b.futures = slices.Insert(b.futures, position, futures...)
	return b
}

// InsertValues splices resolved futures for values in before position.
func (b *Batch[T]) InsertValues(position int, values ...T) *Batch[T] {
	return b.Insert(position, wrap(values)...)
}

// Pipe applies fn to every item as soon as that item resolves. Items do not
// wait on each other. Failed items keep their error.
func (b *Batch[T]) Pipe(fn Transform[T, T]) *Batch[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.futures = pipe(b.futures, fn)
	return b
}

// PipeOrdered applies fn to every item, starting item i only after the
// transformation of item i-1 has settled. Only one transformation runs at a
// time.
func (b *Batch[T]) PipeOrdered(fn Transform[T, T]) *Batch[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.futures = pipeOrdered(b.futures, fn)
	return b
}

// Catch applies handler to every item that fails. The handler's result
// becomes the item's value; successful items are left untouched.
func (b *Batch[T]) Catch(handler Handler[T]) *Batch[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := slices.Clone(b.futures)
	next := make([]*Future[T], len(snapshot))
	for i, f := range snapshot {
		next[i] = Go(func() (T, error) {
			v, err := f.wait()
			if err == nil {
				return v, nil
			}
			return handler(err, i, snapshot)
		})
	}
	b.futures = next
	return b
}

// All waits for every item and returns the values in order. It fails as
// soon as any item fails, or when ctx is done.
func (b *Batch[T]) All(ctx context.Context) ([]T, error) {
	futures := b.Futures()
	values := make([]T, len(futures))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range futures {
		g.Go(func() error {
			select {
			case <-f.Done():
				v, err := f.wait()
				if err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
				values[i] = v
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

// Pipe returns a new batch with fn applied to every item of b as soon as it
// resolves. b is not modified.
func Pipe[T, U any](b *Batch[T], fn Transform[T, U]) *Batch[U] {
	return &Batch[U]{futures: pipe(b.Futures(), fn)}
}

// PipeOrdered returns a new batch with fn applied to the items of b one at a
// time, in order. b is not modified.
func PipeOrdered[T, U any](b *Batch[T], fn Transform[T, U]) *Batch[U] {
	return &Batch[U]{futures: pipeOrdered(b.Futures(), fn)}
}

func pipe[T, U any](futures []*Future[T], fn Transform[T, U]) []*Future[U] {
	snapshot := slices.Clone(futures)
	next := make([]*Future[U], len(snapshot))
	for i, f := range snapshot {
		next[i] = Go(func() (U, error) {
			v, err := f.wait()
			if err != nil {
				var zero U
				return zero, err
			}
			return fn(v, i, snapshot)
		})
	}
	return next
}

func pipeOrdered[T, U any](futures []*Future[T], fn Transform[T, U]) []*Future[U] {
	snapshot := slices.Clone(futures)
	next := make([]*Future[U], len(snapshot))
	var prev <-chan struct{}
	for i, f := range snapshot {
		wait := prev
		next[i] = Go(func() (U, error) {
			if wait != nil {
				<-wait
			}
			v, err := f.wait()
			if err != nil {
				var zero U
				return zero, err
			}
			return fn(v, i, snapshot)
		})
		prev = next[i].Done()
	}
	return next
}

package serial

import (
	"context"
	"sync"
)

// Future is the deferred result of a binding operation. It settles exactly
// once, either fulfilled with a value or rejected with an error. Bindings
// never settle a Future inside the call that returned it.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

// NewFuture returns an unsettled Future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Fulfill settles the Future with v. Later calls to Fulfill or Reject are ignored.
func (f *Future[T]) Fulfill(v T) {
	f.once.Do(func() {
		f.val = v
		close(f.done)
	})
}

// Reject settles the Future with err. Later calls to Fulfill or Reject are ignored.
func (f *Future[T]) Reject(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the Future has settled.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Ready reports whether the Future has settled.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the Future settles or ctx is done. Cancelling ctx only
// stops the wait; the underlying operation is not cancelled.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Resolve fulfills the Future with v when err is nil and rejects it otherwise.
func (f *Future[T]) Resolve(v T, err error) {
	if err != nil {
		f.Reject(err)
		return
	}
	f.Fulfill(v)
}


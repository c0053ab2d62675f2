package database

import (
	"context"
	"sync"

	"sitepulse/api/apperr"
)

// Lazy holds a store handle that is established on first use. Concurrent
// callers wait for the in-flight attempt; a failed attempt leaves the handle
// unset so the next caller retries.
type Lazy[T any] struct {
	name    string
	connect func(context.Context) (T, error)
	closeFn func(T) error

	mu    sync.Mutex
	value T
	ready bool
}

func NewLazy[T any](name string, connect func(context.Context) (T, error), closeFn func(T) error) *Lazy[T] {
	return &Lazy[T]{name: name, connect: connect, closeFn: closeFn}
}

// Get returns the handle, connecting if needed. Connect failures are reported
// as store-unavailable errors.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ready {
		return l.value, nil
	}
	v, err := l.connect(ctx)
	if err != nil {
		var zero T
		return zero, apperr.Unavailable("connect "+l.name, err)
	}
	l.value = v
	l.ready = true
	return v, nil
}

// Close releases the handle if one was established.
func (l *Lazy[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.ready {
		return nil
	}
	l.ready = false
	v := l.value
	var zero T
	l.value = zero
	if l.closeFn == nil {
		return nil
	}
	return l.closeFn(v)
}

package models

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrNotReady is returned by Holder.Get until loading has succeeded.
	ErrNotReady = errors.New("models not initialized")
	// ErrClosed is returned by a Load that finished after Close.
	ErrClosed = errors.New("holder closed during load")
)

// Holder keeps a value that is built once, in the background, and is
// read-only afterwards. Readers never block on loading.
type Holder[T any] struct {
	once  sync.Once
	ready atomic.Bool

	mu      sync.RWMutex
	val     T
	err     error
	release func(T) error
	closed  bool
}

// NewHolder returns an empty holder.
func NewHolder[T any]() *Holder[T] {
	return &Holder[T]{}
}

// Load builds the value with load. Only the first call runs load; later
// calls wait for it and return its result. release, if set, is used by
// Close.
func (h *Holder[T]) Load(ctx context.Context, load func(context.Context) (T, error), release func(T) error) error {
	h.once.Do(func() {
		val, err := load(ctx)

		h.mu.Lock()
		defer h.mu.Unlock()
		if err != nil {
			h.err = err
			return
		}
		if h.closed {
			h.err = ErrClosed
			if release != nil {
				h.err = errors.Join(ErrClosed, release(val))
			}
			return
		}
		h.val = val
		h.release = release
		h.ready.Store(true)
	})

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Get returns the value, or ErrNotReady while it is still loading, failed
// to load or has been closed.
func (h *Holder[T]) Get() (T, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.ready.Load() {
		var zero T
		return zero, ErrNotReady
	}
	return h.val, nil
}

// Ready reports whether Get would succeed.
func (h *Holder[T]) Ready() bool {
	return h.ready.Load()
}

// Err returns the load error, if loading failed.
func (h *Holder[T]) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Close marks the holder not ready and releases the value.
func (h *Holder[T]) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	if !h.ready.Swap(false) {
		return nil
	}
	if h.release != nil {
		return h.release(h.val)
	}
	return nil
}

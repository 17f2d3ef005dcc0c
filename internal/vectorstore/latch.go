package vectorstore

import "sync"

// InitLatch is a one-shot initialization guard that, unlike sync.Once,
// resets on failure so the next caller retries.
//
// InitLatch holds the mutex across the entire init call, so no concurrent
// caller can observe a half-reset latch. Callers must not bypass this
// type's lock when sharing the latched value across goroutines.
type InitLatch[T any] struct {
	mu   sync.Mutex
	done bool
	val  T
}

// Get returns the cached value if initialization already succeeded,
// otherwise calls init, caches the result on success, and returns it. On
// failure the latch remains un-done so a later call retries.
func (l *InitLatch[T]) Get(init func() (T, error)) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done {
		return l.val, nil
	}

	val, err := init()
	if err != nil {
		var zero T
		return zero, err
	}

	l.val = val
	l.done = true
	return l.val, nil
}

// Reset clears the latch, forcing the next Get to re-run init even if it
// previously succeeded. Used by callers that detect the underlying
// connection has gone bad out-of-band.
func (l *InitLatch[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done = false
	var zero T
	l.val = zero
}

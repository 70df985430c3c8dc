package tracker

import "golang.org/x/sync/semaphore"

// Lock is the single-flight gate for one provider's download cycle:
// try-acquire non-blocking, guaranteed release. A weighted semaphore of
// size one gives exactly those semantics.
type Lock struct {
	sem *semaphore.Weighted
}

// NewLock creates a released lock
func NewLock() *Lock {
	return &Lock{sem: semaphore.NewWeighted(1)}
}

// TryAcquire takes the lock without blocking; false when already held
func (l *Lock) TryAcquire() bool {
	return l.sem.TryAcquire(1)
}

// Release returns the lock
func (l *Lock) Release() {
	l.sem.Release(1)
}

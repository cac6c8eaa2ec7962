package checkpoint

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ThreadLocks serializes graph runs per thread so two requests on the same
// thread_id cannot interleave checkpoint writes. Different threads proceed
// in parallel.
type ThreadLocks struct {
	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

func NewThreadLocks() *ThreadLocks {
	return &ThreadLocks{
		locks: make(map[string]*semaphore.Weighted),
	}
}

func (l *ThreadLocks) get(threadID string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.locks[threadID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.locks[threadID] = sem
	}
	return sem
}

// Acquire blocks until the thread is free or the context is done.
func (l *ThreadLocks) Acquire(ctx context.Context, threadID string) error {
	return l.get(threadID).Acquire(ctx, 1)
}

// TryAcquire grabs the thread lock without blocking.
func (l *ThreadLocks) TryAcquire(threadID string) bool {
	return l.get(threadID).TryAcquire(1)
}

// Release frees the thread lock.
func (l *ThreadLocks) Release(threadID string) {
	l.get(threadID).Release(1)
}

package utils

import (
	"sync"
)

// WorkerPool runs queued tasks on a fixed set of goroutines. Broadcast
// deliveries go through it so one slow receiver cannot stall the rest.
type WorkerPool struct {
	workers   int
	jobQueue  chan func()
	waitGroup sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a pool with the given worker and queue sizes.
func NewWorkerPool(workers, queueSize int) *WorkerPool {
	pool := &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), queueSize),
	}

	pool.waitGroup.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker()
	}

	return pool
}

func (wp *WorkerPool) worker() {
	defer wp.waitGroup.Done()
	for task := range wp.jobQueue {
		task()
	}
}

// Submit queues a task for execution. It never blocks: it reports false
// when the queue is full or the pool has been shut down, and the task is
// not run. The queue close in Shutdown happens under the write lock, so a
// send here can never race it.
func (wp *WorkerPool) Submit(task func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return false
	}

	select {
	case wp.jobQueue <- task:
		return true
	default:
		return false
	}
}

// Shutdown closes the queue and waits for in-flight tasks to finish.
// Later submissions are refused. Safe to call more than once.
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.jobQueue)
	wp.mu.Unlock()

	wp.waitGroup.Wait()
}

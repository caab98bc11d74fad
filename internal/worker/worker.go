package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is a function that represents a background job
type Task func(ctx context.Context) error

type WorkerPool struct {
	taskQueue   chan Task
	wg          sync.WaitGroup
	isClosing   atomic.Bool // thread-safe value
	taskTimeout time.Duration
	logger      *zap.Logger
	dropped     atomic.Int64
}

// NewWorkerPool starts size workers sharing a queue of queueSize pending
// tasks. Every task gets its own context bounded by taskTimeout.
func NewWorkerPool(size, queueSize int, taskTimeout time.Duration, logger *zap.Logger) *WorkerPool {
	wp := &WorkerPool{
		taskQueue:   make(chan Task, queueSize),
		taskTimeout: taskTimeout,
		logger:      logger,
	}

	// Start the workers
	for i := 0; i < size; i++ {
		wp.wg.Add(1) // add to WaitGroup
		go wp.startWorker()
	}

	return wp
}

func (wp *WorkerPool) startWorker() {
	defer wp.wg.Done() // signal when worker finished
	for task := range wp.taskQueue {
		wp.run(task)
	}
}

func (wp *WorkerPool) run(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), wp.taskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("worker task panicked", zap.Any("panic", r))
		}
	}()

	if err := task(ctx); err != nil {
		wp.logger.Warn("worker task failed", zap.Error(err))
	}
}

// Submit enqueues t without blocking. Tasks are dropped when the queue is full
// or the pool is shutting down.
func (wp *WorkerPool) Submit(t Task) {
	if wp.isClosing.Load() {
		wp.dropped.Add(1)
		wp.logger.Warn("task submitted during shutdown, dropping")
		return
	}
	select {
	case wp.taskQueue <- t: // send task to worker pool
	default:
		wp.dropped.Add(1)
		wp.logger.Warn("task queue full, dropping task")
	}
}

// Dropped returns how many tasks were refused so far.
func (wp *WorkerPool) Dropped() int64 {
	return wp.dropped.Load()
}

// Shutdown closes the queue and waits for workers to finish
func (wp *WorkerPool) Shutdown() {
	if !wp.isClosing.CompareAndSwap(false, true) {
		return
	}
	close(wp.taskQueue) // Stop accepting new tasks
	wp.wg.Wait()        // Wait for all active workers to finish tasks
}

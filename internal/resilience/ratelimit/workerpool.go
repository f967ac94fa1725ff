package ratelimit

import (
	"context"
	"log/slog"
	"sync"
)

// Task is one unit of pool work. A task that fails is logged and its result
// dropped; it must handle its own partial-failure semantics if dropping is
// not acceptable.
type Task[T any] func(ctx context.Context) (T, error)

// WorkerPool drains a task queue through a Limiter's retry wrapper with a
// fixed number of concurrent consumers. Results are collected in completion
// order, not submission order. A pool is single-use: ProcessAll clears the
// queue when it returns.
type WorkerPool[T any] struct {
	limiter *Limiter
	workers int
	logger  *slog.Logger
	tasks   []Task[T]
}

// NewWorkerPool creates a pool of workers sharing limiter. A nil limiter
// gets default limits; workers below 1 are raised to 1.
func NewWorkerPool[T any](limiter *Limiter, workers int, logger *slog.Logger) *WorkerPool[T] {
	if limiter == nil {
		limiter = New(Config{})
	}
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool[T]{
		limiter: limiter,
		workers: workers,
		logger:  logger,
	}
}

// AddTask enqueues work for the next ProcessAll.
func (p *WorkerPool[T]) AddTask(task Task[T]) {
	p.tasks = append(p.tasks, task)
}

// ProcessAll runs every queued task and returns the successful results. It
// returns once the queue drains and all workers have finished; cancellation
// makes the remaining tasks fail fast through the limiter.
func (p *WorkerPool[T]) ProcessAll(ctx context.Context) []T {
	if len(p.tasks) == 0 {
		return nil
	}

	queue := make(chan Task[T])
	var (
		mu      sync.Mutex
		results []T
		wg      sync.WaitGroup
	)

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range queue {
				var out T
				err := p.limiter.ExecuteWithRetry(ctx, func(ctx context.Context) error {
					var taskErr error
					out, taskErr = task(ctx)
					return taskErr
				})
				if err != nil {
					p.logger.Warn("Worker task dropped",
						slog.String("error", err.Error()))
					continue
				}
				mu.Lock()
				results = append(results, out)
				mu.Unlock()
			}
		}()
	}

	for _, task := range p.tasks {
		queue <- task
	}
	close(queue)
	wg.Wait()

	p.tasks = nil
	return results
}

// Pending returns the number of queued tasks.
func (p *WorkerPool[T]) Pending() int {
	return len(p.tasks)
}

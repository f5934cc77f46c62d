package task

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
)

// WorkerPool runs tasks on a fixed set of workers, each draining its own
// queue. A task's key decides its worker, which serialises tasks that share
// a key.
type WorkerPool struct {
	queues []*TaskQueue

	// wg tracks active worker goroutines for clean shutdown
	wg sync.WaitGroup

	// ctx is passed to every Execute call and cancelled by Stop
	ctx    context.Context
	cancel context.CancelFunc

	logger *slog.Logger

	mu           sync.RWMutex
	errorHandler func(task Task, err error)
	started      bool
	stopOnce     sync.Once
}

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start.
	// If zero or negative, defaults to 1.
	WorkerCount int

	// QueueSize is the buffer of each worker's queue. If zero or negative,
	// defaults to 64.
	QueueSize int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount: 4,
		QueueSize:   64,
	}
}

// NewWorkerPool creates a worker pool. Call Start before submitting work.
func NewWorkerPool(config WorkerPoolConfig, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "worker_pool"))

	workerCount := config.WorkerCount
	if workerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			slog.Int("specified_count", config.WorkerCount),
			slog.Int("default_count", 1))
		workerCount = 1
	}
	queueSize := config.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}

	queues := make([]*TaskQueue, workerCount)
	for i := range queues {
		queues[i] = NewTaskQueue(queueSize, logger.With(slog.Int("worker_id", i)))
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queues: queues,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		errorHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				slog.String("task_id", task.ID().String()),
				slog.String("task_type", task.Type()),
				slog.String("error", err.Error()))
		},
	}
}

// SetErrorHandler replaces the handler called when a task returns an error
// or panics, and for each task Stop discards (with ErrTaskDiscarded). It runs
// on the worker goroutine, or on the goroutine calling Stop for discards.
func (p *WorkerPool) SetErrorHandler(handler func(task Task, err error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorHandler = handler
}

// WorkerCount returns the number of workers.
func (p *WorkerPool) WorkerCount() int {
	return len(p.queues)
}

// Start launches the workers. Calling it twice has no effect.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	p.started = true

	for i, q := range p.queues {
		p.wg.Add(1)
		go p.worker(i, q)
	}
	p.logger.Info("worker pool started", slog.Int("worker_count", len(p.queues)))
}

// Submit routes task to the worker owning its key.
func (p *WorkerPool) Submit(task Task) error {
	return p.queues[p.workerFor(task.Key())].Enqueue(task)
}

func (p *WorkerPool) workerFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.queues)))
}

// Shutdown stops accepting tasks and waits for the buffered ones to finish.
// If ctx ends first, running tasks are cancelled and ctx.Err() is returned.
func (p *WorkerPool) Shutdown(ctx context.Context) error {
	for _, q := range p.queues {
		q.Close()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.Stop()
		return ctx.Err()
	}
}

// Stop cancels running tasks, waits for the workers to exit and then hands
// every task still buffered to the error handler with ErrTaskDiscarded.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		for _, q := range p.queues {
			q.Close()
		}
	})
	p.wg.Wait()
	p.discardBuffered()
}

// discardBuffered drains the closed queues. Each task is received once, so
// concurrent Stop calls never report the same task twice.
func (p *WorkerPool) discardBuffered() {
	p.mu.RLock()
	handler := p.errorHandler
	p.mu.RUnlock()

	for _, q := range p.queues {
		for task := range q.GetChannel() {
			p.logger.Warn("discarding task that never ran",
				slog.String("task_id", task.ID().String()),
				slog.String("task_type", task.Type()))
			if handler != nil {
				handler(task, fmt.Errorf("%w: %s", ErrTaskDiscarded, task.ID()))
			}
		}
	}
}

func (p *WorkerPool) worker(id int, q *TaskQueue) {
	defer p.wg.Done()

	log := p.logger.With(slog.Int("worker_id", id))
	log.Debug("starting worker")

	for {
		// Stop wins over buffered work; what is left is discarded by Stop.
		if p.ctx.Err() != nil {
			log.Debug("stopping worker", slog.Int("discarded", q.Len()))
			return
		}

		select {
		case <-p.ctx.Done():
			log.Debug("stopping worker", slog.Int("discarded", q.Len()))
			return

		case task, ok := <-q.GetChannel():
			if !ok {
				log.Debug("task queue closed, stopping worker")
				return
			}
			p.processTask(task, log)
		}
	}
}

func (p *WorkerPool) processTask(task Task, log *slog.Logger) {
	log = log.With(
		slog.String("task_id", task.ID().String()),
		slog.String("task_type", task.Type()),
	)

	err := p.execute(task)
	if err == nil {
		log.Debug("task completed successfully")
		return
	}

	p.mu.RLock()
	handler := p.errorHandler
	p.mu.RUnlock()
	if handler != nil {
		handler(task, err)
	}
}

// execute runs the task, converting a panic into an error.
func (p *WorkerPool) execute(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panic: %v", r)
		}
	}()
	return task.Execute(p.ctx)
}

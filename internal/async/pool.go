package async

import (
	"context"
	"errors"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
)

// ErrShuttingDown is returned by Submit once Shutdown has begun.
var ErrShuttingDown = errors.New("pool is shutting down")

// Task is the smallest useful unit: an ID for tracing plus the work itself.
// The function receives a worker-scoped context with the pool's timeout.
type Task struct {
	ID          uuid.UUID
	SubmittedAt time.Time
	Fn          func(ctx context.Context)
}

// Pool is a bounded worker pool for the blocking OCR sub-pipeline, so slow
// recognitions do not stall unrelated requests.
type Pool struct {
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.ch = make(chan Task, n)
		}
	}
}
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPool(logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		logger:  logger,
		workers: 4,
		timeout: 2 * time.Minute,
		ch:      make(chan Task, 256),
	}
	for _, o := range opts {
		o(p)
	}
	p.start()
	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Info("worker started", "worker_id", workerID)

				for task := range p.ch {
					ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
					task.Fn(ctx)
					cancel()
					p.logger.Debug("task done",
						"worker_id", workerID,
						"task_id", task.ID,
						"wait_ms", time.Since(task.SubmittedAt).Milliseconds(),
					)
				}

				p.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Submit enqueues fn for execution. Blocks when the queue is full
// (backpressure) and fails only once the pool is shutting down.
func (p *Pool) Submit(_ context.Context, fn func(ctx context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrShuttingDown
	}
	task := Task{ID: uuid.New(), SubmittedAt: time.Now(), Fn: fn}
	select {
	case p.ch <- task:
	default:
		p.logger.Warn("queue full, applying backpressure", "task_id", task.ID)
		p.ch <- task
	}
	return nil
}

// Shutdown stops accepting work and waits for in-flight tasks, bounded by ctx.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("shutdown interrupted by context")
	case <-done:
		p.logger.Info("queue drained, shutdown complete")
	}
}

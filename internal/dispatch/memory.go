package dispatch

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers     = 4
	defaultBuffer      = 256
	defaultMaxAttempts = 3
)

// MemoryDispatcher runs tasks on a fixed pool of goroutines fed by a buffered channel.
// Queued tasks are lost on process exit.
type MemoryDispatcher struct {
	*registry
	tasks       chan Task
	workers     int
	maxAttempts int

	closeOnce sync.Once
	done      chan struct{}
}

// NewMemory constructs an in-process dispatcher.
func NewMemory(cfg Config) *MemoryDispatcher {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &MemoryDispatcher{
		registry:    newRegistry(),
		tasks:       make(chan Task, buffer),
		workers:     workers,
		maxAttempts: attempts,
		done:        make(chan struct{}),
	}
}

// Enqueue never blocks; a full buffer yields ErrQueueFull.
func (d *MemoryDispatcher) Enqueue(_ context.Context, kind string, payload any) error {
	task, err := NewTask(kind, payload)
	if err != nil {
		return err
	}
	return d.push(task)
}

func (d *MemoryDispatcher) push(task Task) error {
	select {
	case <-d.done:
		return ErrClosed
	default:
	}
	select {
	case d.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run starts the worker pool and blocks until ctx is cancelled or Close is called.
func (d *MemoryDispatcher) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-d.done:
					return nil
				case task := <-d.tasks:
					d.process(gCtx, task)
				}
			}
		})
	}
	return g.Wait()
}

func (d *MemoryDispatcher) process(ctx context.Context, task Task) {
	if err := d.execute(ctx, task); err == nil || errors.Is(err, ErrNoHandler) {
		return
	}
	if task.Attempt >= d.maxAttempts {
		return
	}
	task.Attempt++
	if err := d.push(task); err != nil {
		d.log.Warn("retry dropped", zap.String("kind", task.Kind), zap.String("task_id", task.ID), zap.Error(err))
	}
}

// Close stops workers; tasks still buffered are discarded.
func (d *MemoryDispatcher) Close() error {
	d.closeOnce.Do(func() { close(d.done) })
	return nil
}

// SyncDispatcher executes handlers inline during Enqueue. Used by tests and CLI tools.
type SyncDispatcher struct {
	*registry
}

// NewSync constructs an inline dispatcher.
func NewSync() *SyncDispatcher {
	return &SyncDispatcher{registry: newRegistry()}
}

// Enqueue runs the handler immediately and returns its error.
func (d *SyncDispatcher) Enqueue(ctx context.Context, kind string, payload any) error {
	task, err := NewTask(kind, payload)
	if err != nil {
		return err
	}
	return d.execute(ctx, task)
}

// Run blocks until ctx is cancelled.
func (d *SyncDispatcher) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (d *SyncDispatcher) Close() error { return nil }

// Package dispatch runs side effects (mail, push) off the request path.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/jobboard/pkg/logger"
	"github.com/charlesng35/jobboard/pkg/metrics"
)

var (
	// ErrQueueFull is returned when the in-memory buffer cannot take more tasks.
	ErrQueueFull = errors.New("dispatch: queue full")
	// ErrClosed is returned when enqueueing on a stopped dispatcher.
	ErrClosed = errors.New("dispatch: closed")
	// ErrNoHandler marks a task kind nobody registered.
	ErrNoHandler = errors.New("dispatch: no handler")
)

// Task is the unit of work carried through a dispatcher.
type Task struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Decode unmarshals the task payload into v.
func (t Task) Decode(v any) error {
	if len(t.Payload) == 0 {
		return fmt.Errorf("dispatch: task %s has no payload", t.Kind)
	}
	return json.Unmarshal(t.Payload, v)
}

// Handler processes a task. Returning an error schedules a retry until attempts run out.
type Handler func(ctx context.Context, task Task) error

// Dispatcher queues tasks for asynchronous execution.
type Dispatcher interface {
	Handle(kind string, handler Handler)
	Enqueue(ctx context.Context, kind string, payload any) error
	// Run processes tasks until ctx is cancelled.
	Run(ctx context.Context) error
	Close() error
}

// Config selects and tunes a dispatcher.
type Config struct {
	Driver      string
	Workers     int
	Buffer      int
	MaxAttempts int
	AMQP        AMQPConfig
}

// New builds the dispatcher named by cfg.Driver ("memory", "amqp" or "sync").
func New(cfg Config) (Dispatcher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemory(cfg), nil
	case "sync", "inline":
		return NewSync(), nil
	case "amqp", "rabbitmq":
		return DialAMQP(cfg)
	default:
		return nil, fmt.Errorf("dispatch: unsupported driver %q", cfg.Driver)
	}
}

// NewTask wraps payload as a first-attempt task of the given kind.
func NewTask(kind string, payload any) (Task, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return Task{}, errors.New("dispatch: task kind is required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Task{}, fmt.Errorf("dispatch: encode %s payload: %w", kind, err)
	}
	return Task{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payload:    body,
		Attempt:    1,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// registry holds handlers and executes tasks with metrics and logging.
type registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      *zap.Logger
}

func newRegistry() *registry {
	return &registry{
		handlers: make(map[string]Handler),
		log:      logger.WithModule("dispatch"),
	}
}

func (r *registry) Handle(kind string, handler Handler) {
	r.mu.Lock()
	r.handlers[kind] = handler
	r.mu.Unlock()
}

func (r *registry) execute(ctx context.Context, task Task) (err error) {
	r.mu.RLock()
	handler, ok := r.handlers[task.Kind]
	r.mu.RUnlock()
	if !ok {
		metrics.DispatchTasks.WithLabelValues(task.Kind, "unhandled").Inc()
		r.log.Warn("no handler for task", zap.String("kind", task.Kind), zap.String("task_id", task.ID))
		return ErrNoHandler
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("dispatch: handler panic: %v", rec)
		}
		result := "success"
		if err != nil {
			result = "failure"
			r.log.Warn("task failed",
				zap.String("kind", task.Kind),
				zap.String("task_id", task.ID),
				zap.Int("attempt", task.Attempt),
				zap.Error(err),
			)
		}
		metrics.DispatchTasks.WithLabelValues(task.Kind, result).Inc()
	}()

	return handler(ctx, task)
}

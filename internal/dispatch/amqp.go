package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultQueueName = "jobboard.tasks"

// AMQPConfig configures the RabbitMQ transport.
type AMQPConfig struct {
	URL            string
	Queue          string
	Prefetch       int
	PublishTimeout time.Duration
}

// amqpChannel is the subset of *amqp.Channel the dispatcher needs.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// AMQPDispatcher publishes tasks to a durable RabbitMQ queue and consumes them with a worker pool.
type AMQPDispatcher struct {
	*registry
	conn        *amqp.Connection
	publisher   amqpChannel
	consumer    amqpChannel
	queue       string
	workers     int
	maxAttempts int
	timeout     time.Duration

	pubMu     sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// DialAMQP connects to the broker and declares the task queue.
func DialAMQP(cfg Config) (*AMQPDispatcher, error) {
	url := strings.TrimSpace(cfg.AMQP.URL)
	if url == "" {
		return nil, errors.New("dispatch: amqp url is required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dispatch: connect to broker: %w", err)
	}

	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("dispatch: open publish channel: %w", err)
	}
	cons, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("dispatch: open consume channel: %w", err)
	}

	queue := queueName(cfg.AMQP.Queue)
	if _, err := pub.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("dispatch: declare queue: %w", err)
	}

	prefetch := cfg.AMQP.Prefetch
	if prefetch <= 0 {
		prefetch = workerCount(cfg.Workers)
	}
	if err := cons.Qos(prefetch, 0, false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("dispatch: set qos: %w", err)
	}

	d := newAMQPDispatcher(pub, cons, cfg)
	d.conn = conn
	return d, nil
}

func newAMQPDispatcher(pub, cons amqpChannel, cfg Config) *AMQPDispatcher {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	timeout := cfg.AMQP.PublishTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AMQPDispatcher{
		registry:    newRegistry(),
		publisher:   pub,
		consumer:    cons,
		queue:       queueName(cfg.AMQP.Queue),
		workers:     workerCount(cfg.Workers),
		maxAttempts: attempts,
		timeout:     timeout,
		closed:      make(chan struct{}),
	}
}

// Enqueue publishes a persistent JSON message.
func (d *AMQPDispatcher) Enqueue(ctx context.Context, kind string, payload any) error {
	task, err := NewTask(kind, payload)
	if err != nil {
		return err
	}
	return d.publish(ctx, task)
}

func (d *AMQPDispatcher) publish(ctx context.Context, task Task) error {
	select {
	case <-d.closed:
		return ErrClosed
	default:
	}

	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("dispatch: encode task: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	d.pubMu.Lock()
	defer d.pubMu.Unlock()
	return d.publisher.PublishWithContext(ctx, "", d.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    task.ID,
		Type:         task.Kind,
		Timestamp:    task.EnqueuedAt,
		Body:         body,
	})
}

// Run consumes deliveries with manual acknowledgement until ctx is cancelled.
func (d *AMQPDispatcher) Run(ctx context.Context) error {
	deliveries, err := d.consumer.Consume(d.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("dispatch: register consumer: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return nil
				case <-d.closed:
					return nil
				case delivery, ok := <-deliveries:
					if !ok {
						return nil
					}
					d.process(gCtx, delivery)
				}
			}
		})
	}
	return g.Wait()
}

func (d *AMQPDispatcher) process(ctx context.Context, delivery amqp.Delivery) {
	var task Task
	if err := json.Unmarshal(delivery.Body, &task); err != nil {
		d.log.Warn("discarding malformed task", zap.Error(err))
		_ = delivery.Reject(false)
		return
	}

	err := d.execute(ctx, task)
	if err == nil || errors.Is(err, ErrNoHandler) {
		_ = delivery.Ack(false)
		return
	}

	if task.Attempt < d.maxAttempts {
		task.Attempt++
		if pubErr := d.publish(ctx, task); pubErr == nil {
			_ = delivery.Ack(false)
			return
		}
	}
	// Exhausted or could not requeue: hand the message to the broker's dead-letter policy.
	_ = delivery.Nack(false, false)
}

// Close shuts down channels and the broker connection.
func (d *AMQPDispatcher) Close() error {
	var err error
	d.closeOnce.Do(func() {
		close(d.closed)
		if d.consumer != nil {
			err = multierr.Append(err, d.consumer.Close())
		}
		if d.publisher != nil {
			err = multierr.Append(err, d.publisher.Close())
		}
		if d.conn != nil {
			err = multierr.Append(err, d.conn.Close())
		}
	})
	return err
}

func queueName(name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return defaultQueueName
}

func workerCount(n int) int {
	if n <= 0 {
		return defaultWorkers
	}
	return n
}

package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/angelpublicista/tenemos-filo-api/pkg/kafka"
	"github.com/angelpublicista/tenemos-filo-api/pkg/logger"
)

// Job is a queued templated email
type Job struct {
	To     string `json:"to"`
	Kind   Kind   `json:"kind"`
	Params Params `json:"params"`
}

// TemplatedSender renders and sends one email
type TemplatedSender interface {
	SendTemplated(ctx context.Context, to string, kind Kind, params Params) (string, error)
}

// Dispatcher hands emails off for delivery outside the caller's request
type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
	Close(ctx context.Context) error
}

// AsyncDispatcherConfig sizes the in-process worker pool
type AsyncDispatcherConfig struct {
	Workers    int
	BufferSize int
	// SendTimeout bounds each delivery
	SendTimeout time.Duration
}

// AsyncDispatcher delivers jobs on a bounded pool of goroutines
type AsyncDispatcher struct {
	sender  TemplatedSender
	config  AsyncDispatcherConfig
	jobs    chan queuedJob
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
	log     *logger.Logger
}

type queuedJob struct {
	ctx context.Context
	job Job
}

// NewAsyncDispatcher starts the worker pool
func NewAsyncDispatcher(sender TemplatedSender, config AsyncDispatcherConfig) *AsyncDispatcher {
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 30 * time.Second
	}

	d := &AsyncDispatcher{
		sender: sender,
		config: config,
		jobs:   make(chan queuedJob, config.BufferSize),
		log:    logger.Get().Named("notification-dispatcher"),
	}
	for i := 0; i < config.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Dispatch queues job without blocking. The job keeps the caller's context
// values (trace, request id) but not its cancellation.
func (d *AsyncDispatcher) Dispatch(ctx context.Context, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.jobs <- queuedJob{ctx: context.WithoutCancel(ctx), job: job}:
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

func (d *AsyncDispatcher) worker() {
	defer d.wg.Done()

	for q := range d.jobs {
		ctx, cancel := context.WithTimeout(q.ctx, d.config.SendTimeout)
		_, err := d.sender.SendTemplated(ctx, q.job.To, q.job.Kind, q.job.Params)
		cancel()

		if err != nil {
			d.failed.Add(1)
			d.log.WarnContext(q.ctx, "queued email failed",
				zap.String("kind", string(q.job.Kind)),
				logger.Email(q.job.To),
				zap.Error(err),
			)
			continue
		}
		d.sent.Add(1)
	}
}

// Close stops accepting jobs and waits for queued ones to finish or ctx to expire
func (d *AsyncDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DispatcherStats reports delivery counters
type DispatcherStats struct {
	Sent    int64
	Failed  int64
	Dropped int64
	Queued  int
}

// Stats returns the current counters
func (d *AsyncDispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
		Queued:  len(d.jobs),
	}
}

// Publisher publishes a record to a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// DefaultPublishTimeout bounds a kafka publish when no timeout is configured
const DefaultPublishTimeout = 2 * time.Second

// KafkaDispatcher publishes jobs to a topic consumed by the mailer process
type KafkaDispatcher struct {
	publisher Publisher
	topic     string
	timeout   time.Duration
}

// NewKafkaDispatcher creates a new KafkaDispatcher. A zero timeout uses DefaultPublishTimeout.
func NewKafkaDispatcher(publisher Publisher, topic string, timeout time.Duration) *KafkaDispatcher {
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	return &KafkaDispatcher{publisher: publisher, topic: topic, timeout: timeout}
}

// Dispatch publishes job keyed by recipient. The publish keeps the request
// values but not its cancellation, and gives up after the dispatcher timeout.
func (d *KafkaDispatcher) Dispatch(ctx context.Context, job Job) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	value, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode notification job: %w", err)
	}
	headers := map[string]string{"kind": string(job.Kind)}
	if rid, ok := ctx.Value(logger.RequestIDKey).(string); ok && rid != "" {
		headers["request_id"] = rid
	}
	return d.publisher.Publish(ctx, d.topic, []byte(job.To), value, headers)
}

// Close is a no-op. The producer is owned by the caller.
func (d *KafkaDispatcher) Close(ctx context.Context) error {
	return nil
}

// Consumer delivers jobs read from the notification topic
type Consumer struct {
	sender TemplatedSender
	log    *logger.Logger
}

// NewConsumer creates a new Consumer
func NewConsumer(sender TemplatedSender) *Consumer {
	return &Consumer{sender: sender, log: logger.Get().Named("notification-consumer")}
}

// Handle sends one job. Undecodable or unknown jobs are dropped; send
// failures are returned so the offset is not committed.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	var job Job
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		c.log.ErrorContext(ctx, "dropping undecodable notification", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}
	if !job.Kind.IsValid() {
		c.log.ErrorContext(ctx, "dropping notification of unknown kind", zap.String("kind", string(job.Kind)))
		return nil
	}
	if rid := msg.Headers["request_id"]; rid != "" {
		ctx = context.WithValue(ctx, logger.RequestIDKey, rid)
	}

	id, err := c.sender.SendTemplated(ctx, job.To, job.Kind, job.Params)
	if err != nil {
		return err
	}
	c.log.InfoContext(ctx, "notification delivered", zap.String("kind", string(job.Kind)), zap.String("message_id", id))
	return nil
}

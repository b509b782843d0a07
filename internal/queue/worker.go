package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/citasalud/citasalud-platform/internal/store"
	"github.com/citasalud/citasalud-platform/pkg/logging"
)

// Handler processes a decoded reminder job. Returning ErrSkip drops the job
// without retry; returning ErrPermanent fails it without retry; any other
// error is treated as transient and retried with backoff.
type Handler interface {
	Handle(ctx context.Context, job Job) error
}

// Alerter notifies clinic operators when a reminder exhausts its retries.
type Alerter interface {
	AlertDeliveryFailure(ctx context.Context, job Job, reason string) error
}

// MetricsRecorder observes job outcomes. Implementations must tolerate a nil
// receiver so metrics stay optional in tests.
type MetricsRecorder interface {
	JobProcessed(kind string, outcome string)
	JobRetried(kind string)
}

// Worker consumes reminder jobs from the queue and dispatches them to the handler.
type Worker struct {
	queue   Queue
	handler Handler
	limiter *SendLimiter
	alerter Alerter
	metrics MetricsRecorder
	logger  *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	maxAttempts      int
	baseDelay        time.Duration
	maxDelay         time.Duration
	limiter          *SendLimiter
	alerter          Alerter
	metrics          MetricsRecorder
}

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	defaultMaxAttempts   = 4
	defaultBaseDelay     = 30 * time.Second
	defaultMaxDelay      = 15 * time.Minute
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the SQS long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithMaxAttempts caps how many delivery attempts a job gets before it is
// failed and an operator alert is raised.
func WithMaxAttempts(attempts int) WorkerOption {
	return func(cfg *workerConfig) {
		if attempts > 0 {
			cfg.maxAttempts = attempts
		}
	}
}

// WithRetryBaseDelay sets the first retry delay; subsequent retries double it.
func WithRetryBaseDelay(delay time.Duration) WorkerOption {
	return func(cfg *workerConfig) {
		if delay > 0 {
			cfg.baseDelay = delay
		}
	}
}

// WithSendLimiter paces outbound provider calls across all worker goroutines.
func WithSendLimiter(limiter *SendLimiter) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.limiter = limiter
	}
}

// WithAlerter wires an operator alert channel for exhausted jobs.
func WithAlerter(alerter Alerter) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.alerter = alerter
	}
}

// WithMetrics wires a job outcome recorder.
func WithMetrics(metrics MetricsRecorder) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = metrics
	}
}

// NewWorker constructs a queue consumer around the provided handler.
func NewWorker(q Queue, handler Handler, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if q == nil {
		panic("queue: queue cannot be nil")
	}
	if handler == nil {
		panic("queue: handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		maxAttempts:      defaultMaxAttempts,
		baseDelay:        defaultBaseDelay,
		maxDelay:         defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		queue:   q,
		handler: handler,
		limiter: cfg.limiter,
		alerter: cfg.alerter,
		metrics: cfg.metrics,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("reminder worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("reminder worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive reminder jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	job, err := DecodeJob(msg.Body)
	if err != nil {
		w.logger.Error("failed to decode reminder job", "error", err, "msg_id", msg.ID)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	w.logger.Info("worker processing reminder job",
		"job_id", job.ID,
		"appointment_id", job.AppointmentID,
		"kind", job.Kind,
		"attempt", job.Attempts+1,
	)

	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			// Shutdown mid-wait: leave the message for redelivery.
			return
		}
	}

	err = w.handler.Handle(ctx, job)
	switch {
	case err == nil:
		w.recordOutcome(job.Kind, "sent")
	case errors.Is(err, ErrSkip):
		w.logger.Info("skipping reminder job", "job_id", job.ID, "reason", err.Error())
		w.recordOutcome(job.Kind, "skipped")
	case errors.Is(err, ErrPermanent):
		w.failJob(ctx, job, err)
	default:
		w.retryOrFail(ctx, job, err)
	}

	w.deleteMessage(context.Background(), msg.ReceiptHandle)
}

func (w *Worker) retryOrFail(ctx context.Context, job Job, cause error) {
	nextAttempt := job.Attempts + 1
	if nextAttempt >= w.cfg.maxAttempts {
		w.failJob(ctx, job, fmt.Errorf("retries exhausted after %d attempts: %w", nextAttempt, cause))
		return
	}

	delay := w.cfg.baseDelay << uint(job.Attempts)
	if delay > w.cfg.maxDelay {
		delay = w.cfg.maxDelay
	}

	retry := job
	retry.Attempts = nextAttempt
	body, err := retry.Encode()
	if err != nil {
		w.failJob(ctx, job, fmt.Errorf("encode retry: %w", cause))
		return
	}
	// FIFO queues deduplicate on the id, so retries need a distinct one.
	dedupeID := fmt.Sprintf("%s-retry-%d", job.ID, nextAttempt)

	if err := w.queue.Send(ctx, body, dedupeID, delay); err != nil {
		w.logger.Error("failed to re-enqueue reminder job", "error", err, "job_id", job.ID)
		w.failJob(ctx, job, fmt.Errorf("re-enqueue failed: %w", cause))
		return
	}

	w.logger.Warn("reminder job will retry",
		"job_id", job.ID,
		"kind", job.Kind,
		"attempt", nextAttempt,
		"delay", delay,
		"error", cause,
	)
	if w.metrics != nil {
		w.metrics.JobRetried(string(job.Kind))
	}
}

func (w *Worker) failJob(ctx context.Context, job Job, cause error) {
	w.logger.Error("reminder job failed",
		"job_id", job.ID,
		"appointment_id", job.AppointmentID,
		"kind", job.Kind,
		"error", cause,
	)
	w.recordOutcome(job.Kind, "failed")

	if w.alerter == nil {
		return
	}
	alertCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.alerter.AlertDeliveryFailure(alertCtx, job, cause.Error()); err != nil {
		w.logger.Error("failed to send delivery failure alert", "error", err, "job_id", job.ID)
	}
}

func (w *Worker) recordOutcome(kind store.ReminderKind, outcome string) {
	if w.metrics != nil {
		w.metrics.JobProcessed(string(kind), outcome)
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete reminder job", "error", err)
	}
}

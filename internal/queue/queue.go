package queue

import (
	"context"
	"errors"
	"time"
)

// Queue is the durable transport between the scheduler and the worker pool.
type Queue interface {
	// Send enqueues a payload. dedupeID is a deterministic job key the
	// backend may use to suppress duplicates; delay postpones visibility.
	Send(ctx context.Context, body string, dedupeID string, delay time.Duration) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is a received queue entry.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// ErrSkip marks a job that should be dropped without retry or failure
// accounting: the work became irrelevant between enqueue and execution.
var ErrSkip = errors.New("queue: job skipped")

// ErrPermanent marks a job that can never succeed (validation failure).
// It is failed immediately, without retries.
var ErrPermanent = errors.New("queue: permanent job failure")

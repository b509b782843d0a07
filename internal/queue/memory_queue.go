package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is a Queue backed by an in-memory buffered channel. It is
// used in local development and tests, where SQS is not available.
type MemoryQueue struct {
	ch chan Message

	mu     sync.Mutex
	dedupe map[string]struct{}
}

// NewMemoryQueue creates a MemoryQueue with the provided buffer capacity.
func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 128
	}
	return &MemoryQueue{
		ch:     make(chan Message, buffer),
		dedupe: make(map[string]struct{}),
	}
}

// Send enqueues a payload or blocks until ctx is done. A non-empty dedupeID
// that was seen before drops the message silently, mirroring FIFO SQS.
// Delayed sends are scheduled on a timer goroutine.
func (q *MemoryQueue) Send(ctx context.Context, body string, dedupeID string, delay time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if dedupeID != "" {
		q.mu.Lock()
		if _, seen := q.dedupe[dedupeID]; seen {
			q.mu.Unlock()
			return nil
		}
		q.dedupe[dedupeID] = struct{}{}
		q.mu.Unlock()
	}

	msg := Message{
		ID:            uuid.NewString(),
		Body:          body,
		ReceiptHandle: uuid.NewString(),
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		go func() {
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
			select {
			case q.ch <- msg:
			case <-ctx.Done():
			}
		}()
		return nil
	}

	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until a message is available, ctx is done, or waitSeconds elapses.
func (q *MemoryQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if maxMessages <= 0 {
		maxMessages = 1
	}

	var timer *time.Timer
	if waitSeconds > 0 {
		timer = time.NewTimer(time.Duration(waitSeconds) * time.Second)
		defer timer.Stop()
	}

	for {
		if timer == nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case msg := <-q.ch:
				return q.collect(ctx, msg, maxMessages), nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case msg := <-q.ch:
			return q.collect(ctx, msg, maxMessages), nil
		}
	}
}

// Delete is a no-op for the in-memory queue.
func (q *MemoryQueue) Delete(_ context.Context, _ string) error {
	return nil
}

func (q *MemoryQueue) collect(ctx context.Context, first Message, max int) []Message {
	if ctx == nil {
		ctx = context.Background()
	}
	messages := make([]Message, 0, max)
	messages = append(messages, first)

	for len(messages) < max {
		select {
		case <-ctx.Done():
			return messages
		case msg := <-q.ch:
			messages = append(messages, msg)
		default:
			return messages
		}
	}
	return messages
}

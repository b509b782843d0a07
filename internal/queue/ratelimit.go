package queue

import (
	"context"
	"sync"
	"time"
)

// SendLimiter is a global token bucket that paces outbound provider calls
// across all workers. Unlike an HTTP limiter it blocks instead of rejecting:
// a worker waits for a token rather than dropping the job.
type SendLimiter struct {
	mu       sync.Mutex
	tokens   float64
	rate     float64 // tokens per second
	burst    int     // max tokens
	lastTime time.Time
}

// NewSendLimiter creates a limiter allowing rate sends/sec with the given
// burst size. A rate <= 0 disables pacing entirely.
func NewSendLimiter(rate float64, burst int) *SendLimiter {
	if burst < 1 {
		burst = 1
	}
	return &SendLimiter{
		tokens:   float64(burst),
		rate:     rate,
		burst:    burst,
		lastTime: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (l *SendLimiter) Wait(ctx context.Context) error {
	if l == nil || l.rate <= 0 {
		return nil
	}
	for {
		delay, ok := l.take()
		if ok {
			return nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// take consumes a token if one is available; otherwise it returns how long
// to sleep before the next token accrues.
func (l *SendLimiter) take() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastTime).Seconds()
	l.tokens += elapsed * l.rate
	if l.tokens > float64(l.burst) {
		l.tokens = float64(l.burst)
	}
	l.lastTime = now

	if l.tokens >= 1 {
		l.tokens--
		return 0, true
	}

	deficit := 1 - l.tokens
	return time.Duration(deficit / l.rate * float64(time.Second)), false
}

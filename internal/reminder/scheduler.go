package reminder

import (
	"context"
	"time"

	"github.com/citasalud/citasalud-platform/internal/queue"
	"github.com/citasalud/citasalud-platform/internal/store"
	"github.com/citasalud/citasalud-platform/pkg/logging"
)

type dueFinder interface {
	FindDueAppointments(ctx context.Context, kind store.ReminderKind, lead, lookback time.Duration, now time.Time) ([]store.Appointment, error)
}

// Scheduler periodically scans for appointments whose reminder windows have
// opened and enqueues one delivery job per (appointment, window).
type Scheduler struct {
	appointments dueFinder
	queue        queue.Queue
	dedupe       Deduper
	windows      []Window
	interval     time.Duration
	lookback     time.Duration
	logger       *logging.Logger
	metrics      SchedulerMetrics
}

// SchedulerMetrics observes scan outcomes. A nil recorder disables metrics.
type SchedulerMetrics interface {
	WindowsEnqueued(kind string, count int)
	ScanDuration(seconds float64)
}

// SchedulerOption customizes scheduler behavior.
type SchedulerOption func(*Scheduler)

// WithWindows overrides the default reminder cascade.
func WithWindows(windows []Window) SchedulerOption {
	return func(s *Scheduler) {
		if len(windows) > 0 {
			s.windows = windows
		}
	}
}

// WithInterval sets how often the scheduler scans.
func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLookback bounds how far past a window's opening the scheduler still
// enqueues it. Windows older than the lookback are considered missed.
func WithLookback(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.lookback = d
		}
	}
}

// WithDeduper wires a cross-replica window claim store.
func WithDeduper(d Deduper) SchedulerOption {
	return func(s *Scheduler) {
		if d != nil {
			s.dedupe = d
		}
	}
}

// WithSchedulerMetrics wires a scan outcome recorder.
func WithSchedulerMetrics(m SchedulerMetrics) SchedulerOption {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// NewScheduler creates a reminder scheduler.
func NewScheduler(appointments dueFinder, q queue.Queue, logger *logging.Logger, opts ...SchedulerOption) *Scheduler {
	if appointments == nil {
		panic("reminder: appointment store cannot be nil")
	}
	if q == nil {
		panic("reminder: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	s := &Scheduler{
		appointments: appointments,
		queue:        q,
		dedupe:       NoopDeduper{},
		windows:      DefaultWindows(2 * time.Hour),
		interval:     5 * time.Minute,
		lookback:     24 * time.Hour,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scans immediately, then on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.scanAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scanAndLog(ctx)
		}
	}
}

func (s *Scheduler) scanAndLog(ctx context.Context) {
	started := time.Now()
	enqueued, err := s.Scan(ctx, started.UTC())
	if err != nil {
		s.logger.Error("reminder scan failed", "error", err)
	}
	if s.metrics != nil {
		s.metrics.ScanDuration(time.Since(started).Seconds())
	}
	if enqueued > 0 {
		s.logger.Info("reminder scan complete", "enqueued", enqueued, "took", time.Since(started))
	}
}

// Scan walks every window once and enqueues jobs for appointments whose
// window has opened. A failure on one appointment never blocks the rest;
// the first error encountered is returned after the full walk.
func (s *Scheduler) Scan(ctx context.Context, now time.Time) (int, error) {
	var firstErr error
	enqueued := 0

	for _, window := range s.windows {
		appointments, err := s.appointments.FindDueAppointments(ctx, window.Kind, window.Lead, s.lookback, now)
		if err != nil {
			s.logger.Error("failed to list due appointments", "kind", window.Kind, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		count := 0
		for _, appt := range appointments {
			ok, err := s.enqueueWindow(ctx, appt, window)
			if err != nil {
				s.logger.Error("failed to enqueue reminder",
					"appointment_id", appt.ID,
					"kind", window.Kind,
					"error", err,
				)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if ok {
				count++
			}
		}

		enqueued += count
		if s.metrics != nil && count > 0 {
			s.metrics.WindowsEnqueued(string(window.Kind), count)
		}
	}

	return enqueued, firstErr
}

func (s *Scheduler) enqueueWindow(ctx context.Context, appt store.Appointment, window Window) (bool, error) {
	key := queue.JobKey(appt.ID, window.Kind, window.Start(appt.ScheduledAt))

	claimed, err := s.dedupe.ClaimWindow(ctx, key, window.Lead+s.lookback)
	if err != nil {
		// Redis trouble must not stall reminders; the queue and sent-flag
		// checks still catch duplicates.
		s.logger.Warn("window claim failed, enqueueing anyway", "error", err, "appointment_id", appt.ID)
	} else if !claimed {
		return false, nil
	}

	job := queue.Job{
		ID:            key,
		AppointmentID: appt.ID,
		Kind:          window.Kind,
	}
	body, err := job.Encode()
	if err != nil {
		return false, err
	}

	if err := s.queue.Send(ctx, body, key, 0); err != nil {
		return false, err
	}

	s.logger.Info("reminder enqueued",
		"appointment_id", appt.ID,
		"kind", window.Kind,
		"scheduled_at", appt.ScheduledAt.Format(time.RFC3339),
	)
	return true, nil
}

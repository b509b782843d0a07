package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReminderMetrics exposes counters/histograms for the reminder pipeline.
type ReminderMetrics struct {
	jobsTotal      *prometheus.CounterVec
	retriesTotal   *prometheus.CounterVec
	enqueuedTotal  *prometheus.CounterVec
	webhookTotal   *prometheus.CounterVec
	scanDuration   prometheus.Histogram
	webhookLatency *prometheus.HistogramVec
}

func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	m := &ReminderMetrics{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citasalud",
			Subsystem: "reminders",
			Name:      "jobs_total",
			Help:      "Reminder jobs processed by outcome",
		}, []string{"kind", "outcome"}),
		retriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citasalud",
			Subsystem: "reminders",
			Name:      "retries_total",
			Help:      "Reminder jobs re-enqueued after a transient failure",
		}, []string{"kind"}),
		enqueuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citasalud",
			Subsystem: "reminders",
			Name:      "windows_enqueued_total",
			Help:      "Reminder windows enqueued by the scheduler",
		}, []string{"kind"}),
		webhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citasalud",
			Subsystem: "webhooks",
			Name:      "events_total",
			Help:      "Voice provider webhook events processed",
		}, []string{"event_type", "outcome"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "citasalud",
			Subsystem: "reminders",
			Name:      "scan_duration_seconds",
			Help:      "Duration of scheduler scans",
			Buckets:   prometheus.DefBuckets,
		}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "citasalud",
			Subsystem: "webhooks",
			Name:      "latency_seconds",
			Help:      "Latency of webhook processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.jobsTotal, m.retriesTotal, m.enqueuedTotal, m.webhookTotal, m.scanDuration, m.webhookLatency)
	return m
}

// JobProcessed implements queue.MetricsRecorder.
func (m *ReminderMetrics) JobProcessed(kind, outcome string) {
	if m == nil {
		return
	}
	m.jobsTotal.WithLabelValues(kind, outcome).Inc()
}

// JobRetried implements queue.MetricsRecorder.
func (m *ReminderMetrics) JobRetried(kind string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(kind).Inc()
}

// WindowsEnqueued implements reminder.SchedulerMetrics.
func (m *ReminderMetrics) WindowsEnqueued(kind string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.enqueuedTotal.WithLabelValues(kind).Add(float64(count))
}

// ScanDuration implements reminder.SchedulerMetrics.
func (m *ReminderMetrics) ScanDuration(seconds float64) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(seconds)
}

// EventProcessed implements webhooks.ReconcilerMetrics.
func (m *ReminderMetrics) EventProcessed(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookTotal.WithLabelValues(eventType, outcome).Inc()
}

// ObserveWebhookLatency records end-to-end webhook handling time.
func (m *ReminderMetrics) ObserveWebhookLatency(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(eventType).Observe(seconds)
}

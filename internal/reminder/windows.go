package reminder

import (
	"time"

	"github.com/citasalud/citasalud-platform/internal/store"
)

// Window pairs a reminder kind with how far ahead of the appointment it fires.
// A window becomes due once now >= scheduled_at - lead, boundary inclusive.
type Window struct {
	Kind store.ReminderKind
	Lead time.Duration
}

// DefaultWindows returns the reminder cascade in firing order: three WhatsApp
// nudges at 72h/48h/24h before the appointment, then a voice call at voiceLead
// for appointments still unconfirmed.
func DefaultWindows(voiceLead time.Duration) []Window {
	if voiceLead <= 0 {
		voiceLead = 2 * time.Hour
	}
	return []Window{
		{Kind: store.ReminderWhatsApp72h, Lead: 72 * time.Hour},
		{Kind: store.ReminderWhatsApp48h, Lead: 48 * time.Hour},
		{Kind: store.ReminderWhatsApp24h, Lead: 24 * time.Hour},
		{Kind: store.ReminderVoiceCall, Lead: voiceLead},
	}
}

// Start returns the instant the window opens for an appointment. It is
// derived purely from the appointment time, so repeated scans compute the
// same value and job deduplication holds across ticks.
func (w Window) Start(scheduledAt time.Time) time.Time {
	return scheduledAt.Add(-w.Lead).UTC()
}

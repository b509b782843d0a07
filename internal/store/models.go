package store

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus tracks the lifecycle of an appointment.
type AppointmentStatus string

const (
	StatusScheduled   AppointmentStatus = "scheduled"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusRescheduled AppointmentStatus = "rescheduled"
	StatusPendingCall AppointmentStatus = "pending_call"
	// StatusContactar flags an appointment for manual follow-up by clinic staff.
	StatusContactar AppointmentStatus = "contactar"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Resolved reports whether the appointment no longer needs reminders.
func (s AppointmentStatus) Resolved() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// ReminderKind identifies a reminder window/channel pair.
type ReminderKind string

const (
	ReminderWhatsApp72h ReminderKind = "whatsapp_72h"
	ReminderWhatsApp48h ReminderKind = "whatsapp_48h"
	ReminderWhatsApp24h ReminderKind = "whatsapp_24h"
	ReminderVoiceCall   ReminderKind = "voice_call"
)

// Valid reports whether k is a known reminder kind.
func (k ReminderKind) Valid() bool {
	switch k {
	case ReminderWhatsApp72h, ReminderWhatsApp48h, ReminderWhatsApp24h, ReminderVoiceCall:
		return true
	}
	return false
}

// Patient holds identity and administrative data. The reminder pipeline only
// reads patients; mutation belongs to the import/CRUD paths.
type Patient struct {
	ID         uuid.UUID `json:"id"`
	NationalID string    `json:"national_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Email      *string   `json:"email,omitempty"`
	RiskLevel  string    `json:"risk_level"`
	Sector     string    `json:"sector"`
	Doctor     string    `json:"doctor"`
	CreatedAt  time.Time `json:"created_at"`
}

// Appointment is a patient's scheduled visit plus the per-window reminder
// bookkeeping. A non-nil sent timestamp means that reminder went out; the
// pipeline never clears one once set.
type Appointment struct {
	ID             uuid.UUID         `json:"id"`
	PatientID      uuid.UUID         `json:"patient_id"`
	ScheduledAt    time.Time         `json:"scheduled_at"`
	Specialty      string            `json:"specialty"`
	Doctor         string            `json:"doctor"`
	Status         AppointmentStatus `json:"status"`
	NeedsHumanCall bool              `json:"needs_human_call"`

	Reminder72hSentAt *time.Time `json:"reminder_72h_sent_at,omitempty"`
	Reminder48hSentAt *time.Time `json:"reminder_48h_sent_at,omitempty"`
	Reminder24hSentAt *time.Time `json:"reminder_24h_sent_at,omitempty"`
	VoiceCallSentAt   *time.Time `json:"voice_call_sent_at,omitempty"`

	// Joined patient fields, populated on every read path so the delivery
	// executor composes messages from fresh data.
	PatientName  string `json:"patient_name"`
	PatientPhone string `json:"patient_phone"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReminderSentAt returns the sent timestamp recorded for the given kind.
func (a *Appointment) ReminderSentAt(kind ReminderKind) *time.Time {
	switch kind {
	case ReminderWhatsApp72h:
		return a.Reminder72hSentAt
	case ReminderWhatsApp48h:
		return a.Reminder48hSentAt
	case ReminderWhatsApp24h:
		return a.Reminder24hSentAt
	case ReminderVoiceCall:
		return a.VoiceCallSentAt
	}
	return nil
}

// CallStatus tracks the lifecycle of an outbound voice-agent call.
type CallStatus string

const (
	CallInitiated  CallStatus = "initiated"
	CallInProgress CallStatus = "in_progress"
	CallCompleted  CallStatus = "completed"
	CallFailed     CallStatus = "failed"
	CallBusy       CallStatus = "busy"
	CallNoAnswer   CallStatus = "no_answer"
)

// Call is the local record of a voice-agent session. ConversationID is the
// only join key from provider webhooks back to local state.
type Call struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID string     `json:"conversation_id"`
	AppointmentID  *uuid.UUID `json:"appointment_id,omitempty"`
	Status         CallStatus `json:"status"`
	Transcript     *string    `json:"transcript,omitempty"`
	Summary        *string    `json:"summary,omitempty"`
	DurationSecs   *int       `json:"duration_secs,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ReminderLog is an append-only audit record of a delivery attempt that
// reached the provider. Never updated or deleted.
type ReminderLog struct {
	ID                uuid.UUID    `json:"id"`
	AppointmentID     uuid.UUID    `json:"appointment_id"`
	Kind              ReminderKind `json:"kind"`
	ProviderMessageID string       `json:"provider_message_id"`
	SentAt            time.Time    `json:"sent_at"`
}

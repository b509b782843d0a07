package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/citasalud/citasalud-platform/internal/channels/voice"
	"github.com/citasalud/citasalud-platform/internal/channels/whatsapp"
	"github.com/citasalud/citasalud-platform/internal/queue"
	"github.com/citasalud/citasalud-platform/internal/store"
	"github.com/citasalud/citasalud-platform/pkg/logging"
)

type executorStore interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*store.Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, kind store.ReminderKind, at time.Time) (bool, error)
	SetAppointmentStatus(ctx context.Context, id uuid.UUID, status store.AppointmentStatus) error
	AppendReminderLog(ctx context.Context, appointmentID uuid.UUID, kind store.ReminderKind, providerMessageID string, sentAt time.Time) error
	CreateCall(ctx context.Context, c *store.Call) error
}

// TextSender sends a WhatsApp message and returns the provider message id.
type TextSender interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// CallStarter initiates an outbound agent call and returns the conversation id.
type CallStarter interface {
	StartCall(ctx context.Context, to string, callCtx voice.CallContext) (string, error)
}

// Executor delivers one reminder job: it re-reads the appointment at send
// time, skips anything that resolved while the job sat in the queue, sends
// through the channel for the job's kind, then records the delivery.
type Executor struct {
	store      executorStore
	whatsapp   TextSender
	voice      CallStarter
	clinicName string
	logger     *logging.Logger
}

// NewExecutor creates a reminder delivery executor.
func NewExecutor(st executorStore, wa TextSender, vc CallStarter, clinicName string, logger *logging.Logger) *Executor {
	if st == nil {
		panic("reminder: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{
		store:      st,
		whatsapp:   wa,
		voice:      vc,
		clinicName: clinicName,
		logger:     logger,
	}
}

// Handle implements queue.Handler.
func (e *Executor) Handle(ctx context.Context, job queue.Job) error {
	appt, err := e.store.GetAppointment(ctx, job.AppointmentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: appointment %s no longer exists", queue.ErrSkip, job.AppointmentID)
		}
		return fmt.Errorf("reminder: load appointment: %w", err)
	}

	// Queue latency can be hours; only the state at send time counts.
	if appt.Status.Resolved() {
		return fmt.Errorf("%w: appointment %s already %s", queue.ErrSkip, appt.ID, appt.Status)
	}
	if appt.NeedsHumanCall {
		return fmt.Errorf("%w: appointment %s is flagged for human follow-up", queue.ErrSkip, appt.ID)
	}
	if appt.ReminderSentAt(job.Kind) != nil {
		return fmt.Errorf("%w: %s reminder already sent for appointment %s", queue.ErrSkip, job.Kind, appt.ID)
	}
	if !appt.ScheduledAt.After(time.Now()) {
		return fmt.Errorf("%w: appointment %s is in the past", queue.ErrSkip, appt.ID)
	}
	if appt.PatientPhone == "" {
		return fmt.Errorf("%w: appointment %s has no patient phone", queue.ErrPermanent, appt.ID)
	}

	switch job.Kind {
	case store.ReminderWhatsApp72h, store.ReminderWhatsApp48h, store.ReminderWhatsApp24h:
		return e.deliverWhatsApp(ctx, appt, job.Kind)
	case store.ReminderVoiceCall:
		return e.deliverVoiceCall(ctx, appt)
	default:
		return fmt.Errorf("%w: unknown reminder kind %q", queue.ErrPermanent, job.Kind)
	}
}

func (e *Executor) deliverWhatsApp(ctx context.Context, appt *store.Appointment, kind store.ReminderKind) error {
	if e.whatsapp == nil {
		return errors.New("reminder: whatsapp sender not configured")
	}

	body := WhatsAppMessage(*appt, kind, e.clinicName)
	messageID, err := e.whatsapp.SendText(ctx, appt.PatientPhone, body)
	if err != nil {
		if errors.Is(err, whatsapp.ErrRejected) {
			return fmt.Errorf("%w: %v", queue.ErrPermanent, err)
		}
		return fmt.Errorf("reminder: send whatsapp: %w", err)
	}

	e.recordDelivery(ctx, appt.ID, kind, messageID)
	return nil
}

func (e *Executor) deliverVoiceCall(ctx context.Context, appt *store.Appointment) error {
	if e.voice == nil {
		return errors.New("reminder: voice caller not configured")
	}

	date, hour := madridTime(appt.ScheduledAt)
	conversationID, err := e.voice.StartCall(ctx, appt.PatientPhone, voice.CallContext{
		AppointmentID: appt.ID.String(),
		PatientName:   appt.PatientName,
		Date:          date,
		Hour:          hour,
		Specialty:     appt.Specialty,
		Doctor:        appt.Doctor,
		Greeting:      VoiceGreeting(*appt, e.clinicName),
	})
	if err != nil {
		if errors.Is(err, voice.ErrRejected) {
			return fmt.Errorf("%w: %v", queue.ErrPermanent, err)
		}
		return fmt.Errorf("reminder: start voice call: %w", err)
	}

	apptID := appt.ID
	if err := e.store.CreateCall(ctx, &store.Call{
		ConversationID: conversationID,
		AppointmentID:  &apptID,
		Status:         store.CallInitiated,
	}); err != nil {
		// The call is already ringing; losing the row breaks webhook
		// reconciliation, so this is worth a loud log, not a retry.
		e.logger.Error("failed to persist call record",
			"error", err,
			"appointment_id", appt.ID,
			"conversation_id", conversationID,
		)
	}

	if err := e.store.SetAppointmentStatus(ctx, appt.ID, store.StatusPendingCall); err != nil {
		e.logger.Error("failed to set pending_call status", "error", err, "appointment_id", appt.ID)
	}

	e.recordDelivery(ctx, appt.ID, store.ReminderVoiceCall, conversationID)
	return nil
}

// recordDelivery appends the audit log entry and stamps the sent flag. The
// send already happened, so failures here are logged rather than retried;
// retrying the job would reach the patient twice.
func (e *Executor) recordDelivery(ctx context.Context, apptID uuid.UUID, kind store.ReminderKind, providerID string) {
	now := time.Now().UTC()

	if err := e.store.AppendReminderLog(ctx, apptID, kind, providerID, now); err != nil {
		e.logger.Error("failed to append reminder log",
			"error", err,
			"appointment_id", apptID,
			"kind", kind,
		)
	}

	stamped, err := e.store.MarkReminderSent(ctx, apptID, kind, now)
	if err != nil {
		e.logger.Error("failed to mark reminder sent",
			"error", err,
			"appointment_id", apptID,
			"kind", kind,
		)
		return
	}
	if !stamped {
		e.logger.Warn("reminder sent flag was already set",
			"appointment_id", apptID,
			"kind", kind,
		)
		return
	}

	e.logger.Info("reminder delivered",
		"appointment_id", apptID,
		"kind", kind,
		"provider_id", providerID,
	)
}

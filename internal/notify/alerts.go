package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/citasalud/citasalud-platform/internal/queue"
	"github.com/citasalud/citasalud-platform/internal/store"
	"github.com/citasalud/citasalud-platform/pkg/logging"
)

type appointmentGetter interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*store.Appointment, error)
}

// DeliveryAlerter emails clinic operators when a reminder exhausts its
// retries, so the patient gets a manual call instead of silence.
type DeliveryAlerter struct {
	sender       EmailSender
	appointments appointmentGetter
	to           string
	logger       *logging.Logger
}

// NewDeliveryAlerter creates an alerter that reports failed reminder jobs
// to the configured operations address.
func NewDeliveryAlerter(sender EmailSender, appointments appointmentGetter, to string, logger *logging.Logger) *DeliveryAlerter {
	if logger == nil {
		logger = logging.Default()
	}
	return &DeliveryAlerter{
		sender:       sender,
		appointments: appointments,
		to:           to,
		logger:       logger,
	}
}

// AlertDeliveryFailure implements queue.Alerter.
func (a *DeliveryAlerter) AlertDeliveryFailure(ctx context.Context, job queue.Job, reason string) error {
	if a.sender == nil || a.to == "" {
		a.logger.Warn("delivery failure alert dropped: no alert email configured",
			"appointment_id", job.AppointmentID,
			"kind", job.Kind,
		)
		return nil
	}

	msg := EmailMessage{
		To:      a.to,
		Subject: fmt.Sprintf("[CitaSalud] Recordatorio fallido: cita %s", job.AppointmentID),
		Body:    a.composeBody(ctx, job, reason),
	}
	if err := a.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: delivery failure alert: %w", err)
	}
	return nil
}

func (a *DeliveryAlerter) composeBody(ctx context.Context, job queue.Job, reason string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "No se pudo entregar el recordatorio %s para la cita %s.\n\n", job.Kind, job.AppointmentID)
	fmt.Fprintf(&b, "Motivo: %s\n", reason)
	fmt.Fprintf(&b, "Intentos realizados: %d\n", job.Attempts+1)

	if a.appointments != nil {
		appt, err := a.appointments.GetAppointment(ctx, job.AppointmentID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				a.logger.Warn("alert: appointment lookup failed", "error", err, "appointment_id", job.AppointmentID)
			}
		} else {
			fmt.Fprintf(&b, "\nPaciente: %s (%s)\n", appt.PatientName, appt.PatientPhone)
			fmt.Fprintf(&b, "Cita: %s", appt.ScheduledAt.Format(time.RFC3339))
			if appt.Specialty != "" {
				fmt.Fprintf(&b, ", %s", appt.Specialty)
			}
			if appt.Doctor != "" {
				fmt.Fprintf(&b, " (%s)", appt.Doctor)
			}
			b.WriteByte('\n')
		}
	}

	b.WriteString("\nContacte al paciente manualmente para confirmar la cita.\n")
	return b.String()
}

var _ queue.Alerter = (*DeliveryAlerter)(nil)

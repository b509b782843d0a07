package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `
	a.id, a.patient_id, a.scheduled_at, a.specialty, a.doctor, a.status,
	a.needs_human_call,
	a.reminder_72h_sent_at, a.reminder_48h_sent_at, a.reminder_24h_sent_at,
	a.voice_call_sent_at,
	p.name, p.phone,
	a.created_at, a.updated_at`

// sentColumn maps a reminder kind to its flag column. Kinds are a closed
// enum, so interpolating the result into SQL is safe.
func sentColumn(kind ReminderKind) (string, error) {
	switch kind {
	case ReminderWhatsApp72h:
		return "reminder_72h_sent_at", nil
	case ReminderWhatsApp48h:
		return "reminder_48h_sent_at", nil
	case ReminderWhatsApp24h:
		return "reminder_24h_sent_at", nil
	case ReminderVoiceCall:
		return "voice_call_sent_at", nil
	}
	return "", fmt.Errorf("store: unknown reminder kind %q", kind)
}

// GetAppointment fetches a single appointment with its patient joined.
func (s *Store) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("store: get appointment: %w", err)
	}
	defer rows.Close()
	appts, err := scanAppointments(rows)
	if err != nil {
		return nil, err
	}
	if len(appts) == 0 {
		return nil, ErrNotFound
	}
	return &appts[0], nil
}

// FindDueAppointments returns appointments whose lead time for the given kind
// has been crossed, whose flag for that kind is still unset, and whose status
// is not resolved. The lookback bounds how far past the crossing point the
// scan still picks a record up, so scheduler downtime shorter than the
// lookback loses nothing.
func (s *Store) FindDueAppointments(ctx context.Context, kind ReminderKind, lead, lookback time.Duration, now time.Time) ([]Appointment, error) {
	col, err := sentColumn(kind)
	if err != nil {
		return nil, err
	}

	// Due: scheduled_at - now <= lead, i.e. scheduled_at <= now + lead.
	// The boundary is inclusive: exactly-at-lead is due.
	upper := now.Add(lead)
	lower := now.Add(lead - lookback)
	if lower.Before(now) {
		// Never remind for appointments already in the past.
		lower = now
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.scheduled_at <= $1
		  AND a.scheduled_at >= $2
		  AND a.status NOT IN ('confirmed', 'cancelled')
		  AND a.`+col+` IS NULL
		ORDER BY a.scheduled_at ASC`, upper, lower)
	if err != nil {
		return nil, fmt.Errorf("store: find due appointments: %w", err)
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// MarkReminderSent sets the sent timestamp for one reminder kind. The update
// is conditional on the flag being unset, so the flag is monotonic: it
// transitions nil -> non-nil at most once. Returns false when the flag was
// already set by a concurrent delivery.
func (s *Store) MarkReminderSent(ctx context.Context, id uuid.UUID, kind ReminderKind, at time.Time) (bool, error) {
	col, err := sentColumn(kind)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET `+col+` = $1, updated_at = $1
		WHERE id = $2 AND `+col+` IS NULL`, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("store: mark reminder sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetAppointmentStatus updates the appointment status.
func (s *Store) SetAppointmentStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET status = $1, updated_at = $2
		WHERE id = $3`, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: set appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FlagForHumanCall marks an appointment for manual follow-up in one update:
// needs_human_call plus the contactar status.
func (s *Store) FlagForHumanCall(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE appointments SET needs_human_call = TRUE, status = $1, updated_at = $2
		WHERE id = $3`, string(StatusContactar), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("store: flag for human call: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		var a Appointment
		var status string
		err := rows.Scan(
			&a.ID, &a.PatientID, &a.ScheduledAt, &a.Specialty, &a.Doctor, &status,
			&a.NeedsHumanCall,
			&a.Reminder72hSentAt, &a.Reminder48hSentAt, &a.Reminder24hSentAt,
			&a.VoiceCallSentAt,
			&a.PatientName, &a.PatientPhone,
			&a.CreatedAt, &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("store: scan appointment: %w", err)
		}
		a.Status = AppointmentStatus(status)
		result = append(result, a)
	}
	return result, rows.Err()
}

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendReminderLog records one successful delivery attempt. The table is
// append-only; nothing in the pipeline updates or deletes rows.
func (s *Store) AppendReminderLog(ctx context.Context, appointmentID uuid.UUID, kind ReminderKind, providerMessageID string, sentAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO reminder_logs (id, appointment_id, kind, provider_message_id, sent_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), appointmentID, string(kind), providerMessageID, sentAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: append reminder log: %w", err)
	}
	return nil
}

// ListReminderLogs returns the delivery audit trail for an appointment,
// newest first.
func (s *Store) ListReminderLogs(ctx context.Context, appointmentID uuid.UUID) ([]ReminderLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, appointment_id, kind, provider_message_id, sent_at
		FROM reminder_logs
		WHERE appointment_id = $1
		ORDER BY sent_at DESC`, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("store: list reminder logs: %w", err)
	}
	defer rows.Close()

	var result []ReminderLog
	for rows.Next() {
		var l ReminderLog
		var kind string
		if err := rows.Scan(&l.ID, &l.AppointmentID, &kind, &l.ProviderMessageID, &l.SentAt); err != nil {
			return nil, fmt.Errorf("store: scan reminder log: %w", err)
		}
		l.Kind = ReminderKind(kind)
		result = append(result, l)
	}
	return result, rows.Err()
}

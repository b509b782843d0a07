package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appointmentRows(mock pgxmock.PgxPoolIface) *pgxmock.Rows {
	return mock.NewRows([]string{
		"id", "patient_id", "scheduled_at", "specialty", "doctor", "status",
		"needs_human_call",
		"reminder_72h_sent_at", "reminder_48h_sent_at", "reminder_24h_sent_at",
		"voice_call_sent_at",
		"name", "phone",
		"created_at", "updated_at",
	})
}

func TestGetAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	patientID := uuid.New()
	now := time.Now().UTC()
	scheduled := now.Add(48 * time.Hour)

	rows := appointmentRows(mock).AddRow(
		id, patientID, scheduled, "cardiology", "Dr. Rivas", "scheduled",
		false, nil, nil, nil, nil, "Ana Morales", "+573001112233", now, now,
	)
	mock.ExpectQuery("SELECT(.|\n)+FROM appointments a(.|\n)+WHERE a.id").
		WithArgs(id).
		WillReturnRows(rows)

	s := New(mock)
	appt, err := s.GetAppointment(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, appt.ID)
	assert.Equal(t, StatusScheduled, appt.Status)
	assert.Equal(t, "Ana Morales", appt.PatientName)
	assert.Nil(t, appt.Reminder48hSentAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAppointmentNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT(.|\n)+FROM appointments a").
		WithArgs(id).
		WillReturnRows(appointmentRows(mock))

	s := New(mock)
	_, err = s.GetAppointment(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindDueAppointmentsBounds(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	lead := 48 * time.Hour
	lookback := 24 * time.Hour

	// Both comparisons are inclusive: an appointment at exactly now + lead
	// is due, and the upper bound is exactly now + lead. A drift to < or >
	// here changes when reminders fire and must fail this test.
	mock.ExpectQuery(`SELECT(.|\n)+WHERE a\.scheduled_at <= \$1(.|\n)+AND a\.scheduled_at >= \$2(.|\n)+reminder_48h_sent_at IS NULL(.|\n)+ORDER BY a.scheduled_at`).
		WithArgs(now.Add(lead), now.Add(lead-lookback)).
		WillReturnRows(appointmentRows(mock))

	s := New(mock)
	_, err = s.FindDueAppointments(context.Background(), ReminderWhatsApp48h, lead, lookback, now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDueAppointmentsClampsLowerBoundToNow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	lead := 2 * time.Hour
	lookback := 24 * time.Hour

	// lead - lookback is in the past; past appointments must not be offered.
	mock.ExpectQuery("SELECT(.|\n)+voice_call_sent_at IS NULL").
		WithArgs(now.Add(lead), now).
		WillReturnRows(appointmentRows(mock))

	s := New(mock)
	_, err = s.FindDueAppointments(context.Background(), ReminderVoiceCall, lead, lookback, now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindDueAppointmentsUnknownKind(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	s := New(mock)
	_, err = s.FindDueAppointments(context.Background(), ReminderKind("email_1h"), time.Hour, time.Hour, time.Now())
	assert.Error(t, err)
}

func TestMarkReminderSentIsConditional(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	at := time.Now()

	mock.ExpectExec("UPDATE appointments SET reminder_24h_sent_at(.|\n)+reminder_24h_sent_at IS NULL").
		WithArgs(at.UTC(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	s := New(mock)
	updated, err := s.MarkReminderSent(context.Background(), id, ReminderWhatsApp24h, at)
	require.NoError(t, err)
	assert.True(t, updated)

	// Second attempt: flag already set, no row matches.
	mock.ExpectExec("UPDATE appointments SET reminder_24h_sent_at").
		WithArgs(at.UTC(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	updated, err = s.MarkReminderSent(context.Background(), id, ReminderWhatsApp24h, at)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetAppointmentStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("confirmed", pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	s := New(mock)
	require.NoError(t, s.SetAppointmentStatus(context.Background(), id, StatusConfirmed))

	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs("cancelled", pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err = s.SetAppointmentStatus(context.Background(), id, StatusCancelled)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFlagForHumanCall(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE appointments SET needs_human_call = TRUE").
		WithArgs("contactar", pgxmock.AnyArg(), id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	s := New(mock)
	require.NoError(t, s.FlagForHumanCall(context.Background(), id))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatusResolved(t *testing.T) {
	assert.True(t, StatusConfirmed.Resolved())
	assert.True(t, StatusCancelled.Resolved())
	assert.False(t, StatusScheduled.Resolved())
	assert.False(t, StatusRescheduled.Resolved())
	assert.False(t, StatusContactar.Resolved())
}

package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citasalud/citasalud-platform/internal/queue"
	"github.com/citasalud/citasalud-platform/internal/store"
	"github.com/citasalud/citasalud-platform/pkg/logging"
)

// pipelineStore extends the executor fake with the due-window query and a
// MarkReminderSent that actually stamps the flag, mirroring the SQL
// predicates closely enough to run scheduler and executor against one state.
type pipelineStore struct {
	*fakeStore
}

func (p *pipelineStore) FindDueAppointments(_ context.Context, kind store.ReminderKind, lead, lookback time.Duration, now time.Time) ([]store.Appointment, error) {
	upper := now.Add(lead)
	lower := now.Add(lead - lookback)
	if lower.Before(now) {
		lower = now
	}
	var due []store.Appointment
	for _, a := range p.appointments {
		if a.ScheduledAt.After(upper) || a.ScheduledAt.Before(lower) {
			continue
		}
		if a.Status.Resolved() || a.ReminderSentAt(kind) != nil {
			continue
		}
		due = append(due, *a)
	}
	return due, nil
}

func (p *pipelineStore) MarkReminderSent(_ context.Context, id uuid.UUID, kind store.ReminderKind, at time.Time) (bool, error) {
	a, ok := p.appointments[id]
	if !ok || a.ReminderSentAt(kind) != nil {
		return false, nil
	}
	ts := at
	switch kind {
	case store.ReminderWhatsApp72h:
		a.Reminder72hSentAt = &ts
	case store.ReminderWhatsApp48h:
		a.Reminder48hSentAt = &ts
	case store.ReminderWhatsApp24h:
		a.Reminder24hSentAt = &ts
	case store.ReminderVoiceCall:
		a.VoiceCallSentAt = &ts
	}
	p.marked = append(p.marked, kind)
	return true, nil
}

// An appointment 47 hours out sits inside the 48h window and short of the
// 24h one; the 72h window opened 25 hours ago, beyond the 24h lookback.
// One full cycle must deliver exactly the 48h WhatsApp reminder, and a
// second cycle must deliver nothing.
func TestPipelineFortySevenHourScenario(t *testing.T) {
	now := time.Now().UTC()
	appt := pendingAppointment()
	appt.ScheduledAt = now.Add(47 * time.Hour)

	ps := &pipelineStore{fakeStore: newFakeStore(appt)}
	q := queue.NewMemoryQueue(16)
	sched := NewScheduler(ps, q, logging.Default())
	sender := &fakeTextSender{}
	exec := NewExecutor(ps, sender, &fakeCallStarter{}, "Clínica San Rafael", logging.Default())

	enqueued, err := sched.Scan(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 1, enqueued)

	jobs := drain(t, q)
	require.Len(t, jobs, 1)
	assert.Equal(t, store.ReminderWhatsApp48h, jobs[0].Kind)

	require.NoError(t, exec.Handle(context.Background(), jobs[0]))
	assert.Len(t, sender.sent, 1)
	require.NotNil(t, appt.Reminder48hSentAt)
	require.Len(t, ps.logs, 1)
	assert.Equal(t, store.ReminderWhatsApp48h, ps.logs[0].Kind)

	// Second cycle: the stamped flag keeps the window out of the scan, and a
	// redelivered copy of the job is skipped by the executor's fresh fetch.
	enqueued, err = sched.Scan(context.Background(), now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, enqueued)

	err = exec.Handle(context.Background(), jobs[0])
	assert.ErrorIs(t, err, queue.ErrSkip)
	assert.Len(t, sender.sent, 1)
}

// The window boundary is inclusive: an appointment at exactly now + lead is
// due, one a minute past it is not. A single 48h window keeps the minute-past
// case out of every other window's range.
func TestPipelineExactLeadBoundary(t *testing.T) {
	now := time.Now().UTC()
	atBoundary := pendingAppointment()
	atBoundary.ScheduledAt = now.Add(48 * time.Hour)
	pastBoundary := pendingAppointment()
	pastBoundary.ScheduledAt = now.Add(48*time.Hour + time.Minute)

	ps := &pipelineStore{fakeStore: newFakeStore(atBoundary, pastBoundary)}
	q := queue.NewMemoryQueue(16)
	sched := NewScheduler(ps, q, logging.Default(),
		WithWindows([]Window{{Kind: store.ReminderWhatsApp48h, Lead: 48 * time.Hour}}))

	enqueued, err := sched.Scan(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 1, enqueued)

	jobs := drain(t, q)
	require.Len(t, jobs, 1)
	assert.Equal(t, atBoundary.ID, jobs[0].AppointmentID)
}

func TestPipelineResolvedAppointmentNeverScanned(t *testing.T) {
	now := time.Now().UTC()
	appt := pendingAppointment()
	appt.ScheduledAt = now.Add(47 * time.Hour)
	appt.Status = store.StatusConfirmed

	ps := &pipelineStore{fakeStore: newFakeStore(appt)}
	q := queue.NewMemoryQueue(16)
	sched := NewScheduler(ps, q, logging.Default())

	enqueued, err := sched.Scan(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, enqueued)
	assert.Empty(t, drain(t, q))
}

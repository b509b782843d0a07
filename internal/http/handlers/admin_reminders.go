package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/citasalud/citasalud-platform/internal/queue"
	"github.com/citasalud/citasalud-platform/internal/reminder"
	"github.com/citasalud/citasalud-platform/internal/store"
	"github.com/citasalud/citasalud-platform/pkg/logging"
)

type appointmentGetter interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*store.Appointment, error)
}

type windowScanner interface {
	Scan(ctx context.Context, now time.Time) (int, error)
}

// AdminRemindersHandler hosts privileged endpoints for operating the
// reminder pipeline: forcing a scheduler pass and enqueueing a single
// reminder out of band.
type AdminRemindersHandler struct {
	appointments appointmentGetter
	queue        queue.Queue
	scanner      windowScanner
	windows      []reminder.Window
	logger       *logging.Logger
}

func NewAdminRemindersHandler(appointments appointmentGetter, q queue.Queue, scanner windowScanner, windows []reminder.Window, logger *logging.Logger) *AdminRemindersHandler {
	if appointments == nil {
		panic("handlers: nil appointment store")
	}
	if q == nil {
		panic("handlers: nil queue")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if len(windows) == 0 {
		windows = reminder.DefaultWindows(0)
	}
	return &AdminRemindersHandler{
		appointments: appointments,
		queue:        q,
		scanner:      scanner,
		windows:      windows,
		logger:       logger,
	}
}

// TriggerScan runs one scheduler pass immediately instead of waiting for
// the next tick.
func (h *AdminRemindersHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	if h.scanner == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not available")
		return
	}

	enqueued, err := h.scanner.Scan(r.Context(), time.Now())
	if err != nil {
		h.logger.Error("manual scan failed", "error", err, "enqueued", enqueued)
		writeError(w, http.StatusInternalServerError, "scan failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"enqueued": enqueued})
}

type enqueueReminderRequest struct {
	AppointmentID string `json:"appointment_id"`
	ReminderType  string `json:"reminder_type"`
}

// EnqueueReminder queues one reminder job for a specific appointment,
// bypassing the scheduler's due-window query. The job key matches what the
// scheduler would produce, so queue-level dedupe still applies.
func (h *AdminRemindersHandler) EnqueueReminder(w http.ResponseWriter, r *http.Request) {
	var req enqueueReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	apptID, err := uuid.Parse(req.AppointmentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid appointment_id")
		return
	}
	kind := store.ReminderKind(req.ReminderType)
	if !kind.Valid() {
		writeError(w, http.StatusBadRequest, "invalid reminder_type")
		return
	}

	appt, err := h.appointments.GetAppointment(r.Context(), apptID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("appointment lookup failed", "error", err, "appointment_id", apptID)
		writeError(w, http.StatusInternalServerError, "appointment lookup failed")
		return
	}

	window, ok := h.windowFor(kind)
	if !ok {
		writeError(w, http.StatusBadRequest, "no window configured for reminder_type")
		return
	}

	job := queue.Job{
		ID:            queue.JobKey(appt.ID, kind, window.Start(appt.ScheduledAt)),
		AppointmentID: appt.ID,
		Kind:          kind,
	}
	body, err := job.Encode()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encoding job failed")
		return
	}
	if err := h.queue.Send(r.Context(), body, job.ID, 0); err != nil {
		h.logger.Error("manual enqueue failed", "error", err, "appointment_id", apptID, "kind", kind)
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}

	h.logger.Info("reminder enqueued manually", "appointment_id", apptID, "kind", kind, "job_id", job.ID)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":         job.ID,
		"appointment_id": appt.ID.String(),
		"reminder_type":  string(kind),
	})
}

func (h *AdminRemindersHandler) windowFor(kind store.ReminderKind) (reminder.Window, bool) {
	for _, win := range h.windows {
		if win.Kind == kind {
			return win, true
		}
	}
	return reminder.Window{}, false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

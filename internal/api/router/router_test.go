package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/citasalud/citasalud-platform/internal/http/handlers"
	"github.com/citasalud/citasalud-platform/internal/queue"
	"github.com/citasalud/citasalud-platform/internal/reminder"
	"github.com/citasalud/citasalud-platform/internal/store"
	"github.com/citasalud/citasalud-platform/internal/webhooks"
	"github.com/citasalud/citasalud-platform/pkg/logging"

	"github.com/citasalud/citasalud-platform/internal/channels/voice"
)

type fakeAppointments struct {
	appt *store.Appointment
}

func (f *fakeAppointments) GetAppointment(_ context.Context, id uuid.UUID) (*store.Appointment, error) {
	if f.appt == nil || f.appt.ID != id {
		return nil, store.ErrNotFound
	}
	cp := *f.appt
	return &cp, nil
}

type fakeScanner struct {
	enqueued int
	err      error
}

func (f *fakeScanner) Scan(_ context.Context, _ time.Time) (int, error) {
	return f.enqueued, f.err
}

type emptyReconcilerStore struct{}

func (emptyReconcilerStore) FindCallByConversationID(context.Context, string) (*store.Call, error) {
	return nil, store.ErrNotFound
}
func (emptyReconcilerStore) UpdateCall(context.Context, string, store.CallUpdate) error { return nil }
func (emptyReconcilerStore) SetAppointmentStatus(context.Context, uuid.UUID, store.AppointmentStatus) error {
	return nil
}
func (emptyReconcilerStore) FlagForHumanCall(context.Context, uuid.UUID) error { return nil }

const testAdminToken = "admin-test-token"

func newTestRouter(t *testing.T, appts *fakeAppointments, q queue.Queue) http.Handler {
	t.Helper()

	logger := logging.Default()

	verifier, err := voice.NewClient(voice.ClientConfig{
		APIKey:        "test-key",
		BaseURL:       "https://voice.invalid",
		AgentID:       "agent-1",
		WebhookSecret: "whsec_router_test",
	})
	if err != nil {
		t.Fatalf("failed to build voice client: %v", err)
	}
	reconciler := webhooks.NewReconciler(emptyReconcilerStore{}, logger, nil)

	cfg := &Config{
		Logger:         logger,
		VoiceWebhooks:  webhooks.NewHandler(verifier, reconciler, logger),
		AdminReminders: handlers.NewAdminRemindersHandler(appts, q, &fakeScanner{enqueued: 2}, reminder.DefaultWindows(0), logger),
		AdminToken:     testAdminToken,
	}
	return New(cfg)
}

func testAppointment() *store.Appointment {
	return &store.Appointment{
		ID:          uuid.New(),
		ScheduledAt: time.Now().Add(47 * time.Hour).UTC(),
		Status:      store.StatusScheduled,
	}
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, &fakeAppointments{}, queue.NewMemoryQueue(8))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterAdminRequiresToken(t *testing.T) {
	router := newTestRouter(t, &fakeAppointments{}, queue.NewMemoryQueue(8))

	req := httptest.NewRequest(http.MethodPost, "/admin/reminders/scan", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d without token, got %d", http.StatusUnauthorized, rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/admin/reminders/scan", nil)
	req.Header.Set("X-Admin-Token", "wrong")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d with bad token, got %d", http.StatusUnauthorized, rr.Code)
	}
}

func TestRouterAdminScan(t *testing.T) {
	router := newTestRouter(t, &fakeAppointments{}, queue.NewMemoryQueue(8))

	req := httptest.NewRequest(http.MethodPost, "/admin/reminders/scan", nil)
	req.Header.Set("X-Admin-Token", testAdminToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}

	var resp map[string]int
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode scan response: %v", err)
	}
	if resp["enqueued"] != 2 {
		t.Errorf("expected 2 enqueued, got %d", resp["enqueued"])
	}
}

func TestRouterAdminEnqueue(t *testing.T) {
	appt := testAppointment()
	q := queue.NewMemoryQueue(8)
	router := newTestRouter(t, &fakeAppointments{appt: appt}, q)

	payload := map[string]string{
		"appointment_id": appt.ID.String(),
		"reminder_type":  string(store.ReminderWhatsApp48h),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/admin/reminders/enqueue", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Token", testAdminToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d: %s", http.StatusAccepted, rr.Code, rr.Body.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msgs, err := q.Receive(ctx, 1, 1)
	if err != nil {
		t.Fatalf("failed to receive from queue: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 queued job, got %d", len(msgs))
	}

	job, err := queue.DecodeJob(msgs[0].Body)
	if err != nil {
		t.Fatalf("failed to decode job: %v", err)
	}
	if job.AppointmentID != appt.ID {
		t.Errorf("expected appointment %s, got %s", appt.ID, job.AppointmentID)
	}
	if job.Kind != store.ReminderWhatsApp48h {
		t.Errorf("expected kind %s, got %s", store.ReminderWhatsApp48h, job.Kind)
	}
}

func TestRouterAdminEnqueueUnknownAppointment(t *testing.T) {
	router := newTestRouter(t, &fakeAppointments{}, queue.NewMemoryQueue(8))

	payload := map[string]string{
		"appointment_id": uuid.NewString(),
		"reminder_type":  string(store.ReminderWhatsApp24h),
	}
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/admin/reminders/enqueue", bytes.NewReader(body))
	req.Header.Set("X-Admin-Token", testAdminToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestRouterWebhookRejectsUnsignedRequest(t *testing.T) {
	router := newTestRouter(t, &fakeAppointments{}, queue.NewMemoryQueue(8))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice/events", bytes.NewReader([]byte(`{"type":"post_call_transcription","data":{}}`)))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
}

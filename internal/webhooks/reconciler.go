package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/citasalud/citasalud-platform/internal/store"
	"github.com/citasalud/citasalud-platform/pkg/logging"
)

type reconcilerStore interface {
	FindCallByConversationID(ctx context.Context, conversationID string) (*store.Call, error)
	UpdateCall(ctx context.Context, conversationID string, upd store.CallUpdate) error
	SetAppointmentStatus(ctx context.Context, id uuid.UUID, status store.AppointmentStatus) error
	FlagForHumanCall(ctx context.Context, id uuid.UUID) error
}

// ReconcilerMetrics observes processed webhook events.
type ReconcilerMetrics interface {
	EventProcessed(eventType string, outcome string)
}

// Reconciler folds asynchronous provider call events into local call and
// appointment state. All updates are sets, not increments, so redelivered
// events converge on the same final state.
type Reconciler struct {
	store   reconcilerStore
	logger  *logging.Logger
	metrics ReconcilerMetrics
}

// NewReconciler creates a webhook reconciler.
func NewReconciler(st reconcilerStore, logger *logging.Logger, metrics ReconcilerMetrics) *Reconciler {
	if st == nil {
		panic("webhooks: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{store: st, logger: logger, metrics: metrics}
}

// HandleTranscription applies a post_call_transcription event: store the
// transcript and summary on the call, then infer the appointment outcome
// from the summary.
func (r *Reconciler) HandleTranscription(ctx context.Context, data TranscriptionData) error {
	call, ok, err := r.lookupCall(ctx, data.ConversationID)
	if err != nil || !ok {
		return err
	}

	upd := store.CallUpdate{}
	if strings.EqualFold(data.Status, "done") {
		status := store.CallCompleted
		upd.Status = &status
	}
	if len(data.Transcript) > 0 {
		transcript := flattenTranscript(data.Transcript)
		upd.Transcript = &transcript
	}
	var summary string
	if data.Analysis != nil && data.Analysis.TranscriptSummary != "" {
		summary = data.Analysis.TranscriptSummary
		upd.Summary = &summary
	}
	if data.Metadata != nil && data.Metadata.CallDurationSecs > 0 {
		secs := data.Metadata.CallDurationSecs
		upd.DurationSecs = &secs
	}
	// ended_at is write-once: a redelivered event must not move the original
	// end time.
	if call.EndedAt == nil {
		endedAt := time.Now().UTC()
		upd.EndedAt = &endedAt
	}

	if err := r.store.UpdateCall(ctx, data.ConversationID, upd); err != nil {
		return fmt.Errorf("webhooks: update call: %w", err)
	}

	if call.AppointmentID == nil || summary == "" {
		r.record(EventPostCallTranscription, "no_change")
		return nil
	}

	outcome := ClassifySummary(summary)
	status, ok := outcomeStatus(outcome)
	if !ok {
		r.logger.Info("call summary matched no outcome",
			"conversation_id", data.ConversationID,
			"appointment_id", *call.AppointmentID,
		)
		r.record(EventPostCallTranscription, "no_change")
		return nil
	}

	if err := r.store.SetAppointmentStatus(ctx, *call.AppointmentID, status); err != nil {
		return fmt.Errorf("webhooks: set appointment status: %w", err)
	}

	r.logger.Info("appointment status inferred from call",
		"conversation_id", data.ConversationID,
		"appointment_id", *call.AppointmentID,
		"status", status,
	)
	r.record(EventPostCallTranscription, string(status))
	return nil
}

// HandleCallFailure applies a call_initiation_failure event: record why the
// call never happened and hand the appointment to a human.
func (r *Reconciler) HandleCallFailure(ctx context.Context, data CallFailureData) error {
	call, ok, err := r.lookupCall(ctx, data.ConversationID)
	if err != nil || !ok {
		return err
	}

	status := failureStatus(data.FailureReason)
	errMsg := fmt.Sprintf("call initiation failed: %s", data.FailureReason)
	if len(data.Metadata) > 0 {
		errMsg = fmt.Sprintf("%s (%s)", errMsg, string(data.Metadata))
	}
	upd := store.CallUpdate{
		Status:       &status,
		ErrorMessage: &errMsg,
	}
	if call.EndedAt == nil {
		endedAt := time.Now().UTC()
		upd.EndedAt = &endedAt
	}

	if err := r.store.UpdateCall(ctx, data.ConversationID, upd); err != nil {
		return fmt.Errorf("webhooks: update failed call: %w", err)
	}

	if call.AppointmentID != nil {
		if err := r.store.FlagForHumanCall(ctx, *call.AppointmentID); err != nil {
			return fmt.Errorf("webhooks: flag for human call: %w", err)
		}
		r.logger.Info("appointment flagged for human follow-up",
			"conversation_id", data.ConversationID,
			"appointment_id", *call.AppointmentID,
			"reason", data.FailureReason,
		)
	}

	r.record(EventCallInitiationFailure, string(status))
	return nil
}

// lookupCall resolves the webhook join key. A conversation with no local
// call record is a logged no-op: the provider also delivers events for
// calls this system never placed.
func (r *Reconciler) lookupCall(ctx context.Context, conversationID string) (*store.Call, bool, error) {
	if strings.TrimSpace(conversationID) == "" {
		r.logger.Warn("webhook event missing conversation id")
		return nil, false, nil
	}
	call, err := r.store.FindCallByConversationID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			r.logger.Info("webhook for unknown conversation, ignoring", "conversation_id", conversationID)
			r.record("unknown_conversation", "ignored")
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("webhooks: find call: %w", err)
	}
	return call, true, nil
}

func (r *Reconciler) record(eventType, outcome string) {
	if r.metrics != nil {
		r.metrics.EventProcessed(eventType, outcome)
	}
}

func outcomeStatus(o Outcome) (store.AppointmentStatus, bool) {
	switch o {
	case OutcomeConfirmed:
		return store.StatusConfirmed, true
	case OutcomeCancelled:
		return store.StatusCancelled, true
	case OutcomeRescheduled:
		return store.StatusRescheduled, true
	default:
		return "", false
	}
}

func failureStatus(reason string) store.CallStatus {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case "busy":
		return store.CallBusy
	case "no-answer", "no_answer":
		return store.CallNoAnswer
	default:
		return store.CallFailed
	}
}

func flattenTranscript(turns []TranscriptTurn) string {
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(turn.Message)
	}
	return b.String()
}

package webhooks

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/citasalud/citasalud-platform/pkg/logging"
)

// Headers carrying the provider's webhook signature.
const (
	HeaderSignature = "X-Voice-Signature"
	HeaderTimestamp = "X-Voice-Timestamp"
)

// SignatureVerifier validates a webhook's HMAC over "{timestamp}.{payload}".
type SignatureVerifier interface {
	VerifyWebhookSignature(timestamp, signature string, payload []byte) error
}

// Handler is the HTTP boundary for provider voice events. Authenticity
// failures get a 401 before any state is touched; everything after the
// signature check is acknowledged with 200 so the provider never enters a
// retry storm, even when processing failed.
type Handler struct {
	verifier   SignatureVerifier
	reconciler *Reconciler
	logger     *logging.Logger
}

// NewHandler creates the voice events webhook handler.
func NewHandler(verifier SignatureVerifier, reconciler *Reconciler, logger *logging.Logger) *Handler {
	if verifier == nil {
		panic("webhooks: signature verifier cannot be nil")
	}
	if reconciler == nil {
		panic("webhooks: reconciler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{verifier: verifier, reconciler: reconciler, logger: logger}
}

// HandleVoiceEvents processes POST /webhooks/voice/events.
func (h *Handler) HandleVoiceEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := h.verifier.VerifyWebhookSignature(r.Header.Get(HeaderTimestamp), r.Header.Get(HeaderSignature), body); err != nil {
		h.logger.Warn("invalid voice webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		h.logger.Warn("malformed voice webhook payload", "error", err)
		h.ack(w, false, "malformed payload")
		return
	}

	switch evt.Type {
	case EventPostCallTranscription:
		var data TranscriptionData
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			h.logger.Warn("malformed transcription data", "error", err)
			h.ack(w, false, "malformed transcription data")
			return
		}
		if err := h.reconciler.HandleTranscription(r.Context(), data); err != nil {
			h.logger.Error("transcription reconciliation failed",
				"error", err,
				"conversation_id", data.ConversationID,
			)
			h.ack(w, false, "processing failed")
			return
		}
		h.ack(w, true, "transcription processed")

	case EventCallInitiationFailure:
		var data CallFailureData
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			h.logger.Warn("malformed call failure data", "error", err)
			h.ack(w, false, "malformed call failure data")
			return
		}
		if err := h.reconciler.HandleCallFailure(r.Context(), data); err != nil {
			h.logger.Error("call failure reconciliation failed",
				"error", err,
				"conversation_id", data.ConversationID,
			)
			h.ack(w, false, "processing failed")
			return
		}
		h.ack(w, true, "call failure processed")

	case EventPostCallAudio:
		// Audio payloads are not stored locally.
		h.ack(w, true, "audio event ignored")

	default:
		h.logger.Info("unhandled voice webhook event", "type", evt.Type)
		h.ack(w, true, "event ignored")
	}
}

func (h *Handler) ack(w http.ResponseWriter, success bool, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(Ack{Success: success, Message: message}); err != nil {
		h.logger.Error("failed to write webhook ack", "error", err)
	}
}

package webhooks

import "encoding/json"

// Provider event types delivered to the voice webhook endpoint.
const (
	EventPostCallTranscription = "post_call_transcription"
	EventPostCallAudio         = "post_call_audio"
	EventCallInitiationFailure = "call_initiation_failure"
)

// Event is the provider callback envelope.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// TranscriptTurn is one exchange in the call transcript.
type TranscriptTurn struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Analysis is the provider's post-call summary block.
type Analysis struct {
	TranscriptSummary string `json:"transcript_summary"`
	CallSuccessful    string `json:"call_successful"`
}

// CallMetadata carries call timing facts.
type CallMetadata struct {
	CallDurationSecs int `json:"call_duration_secs"`
}

// TranscriptionData is the payload of a post_call_transcription event.
type TranscriptionData struct {
	ConversationID string           `json:"conversation_id"`
	Status         string           `json:"status"`
	Transcript     []TranscriptTurn `json:"transcript"`
	Analysis       *Analysis        `json:"analysis"`
	Metadata       *CallMetadata    `json:"metadata"`
}

// CallFailureData is the payload of a call_initiation_failure event.
type CallFailureData struct {
	ConversationID string          `json:"conversation_id"`
	FailureReason  string          `json:"failure_reason"`
	Metadata       json.RawMessage `json:"metadata"`
}

// Ack is the response body the endpoint always returns once the signature
// check has passed.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

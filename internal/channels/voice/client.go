package voice

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/citasalud/citasalud-platform/pkg/logging"
)

const (
	defaultCallTimeout = 15 * time.Second
	defaultMaxSkew     = 30 * time.Minute
)

// ErrRejected marks a call request the provider refused outright.
var ErrRejected = errors.New("voice: request rejected")

// Client initiates outbound AI-agent calls and verifies provider webhooks.
type Client struct {
	apiKey        string
	baseURL       string
	agentID       string
	fromNumber    string
	webhookSecret string
	maxSkew       time.Duration
	httpClient    *http.Client
	logger        *logging.Logger
}

// ClientConfig configures the voice agent client.
type ClientConfig struct {
	// APIKey is the provider API key (Bearer token).
	APIKey string
	// BaseURL overrides the provider API base URL (for testing).
	BaseURL string
	// AgentID is the conversational agent used for reminder calls.
	AgentID string
	// FromNumber is the clinic's outbound caller id (E.164).
	FromNumber string
	// WebhookSecret signs provider event callbacks.
	WebhookSecret string
	// MaxSkew bounds the accepted webhook timestamp age. Defaults to 30m.
	MaxSkew time.Duration
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// NewClient creates a voice agent client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("voice: API key required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("voice: base URL required")
	}
	if strings.TrimSpace(cfg.AgentID) == "" {
		return nil, fmt.Errorf("voice: agent ID required")
	}
	maxSkew := cfg.MaxSkew
	if maxSkew <= 0 {
		maxSkew = defaultMaxSkew
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultCallTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		apiKey:        cfg.APIKey,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		agentID:       cfg.AgentID,
		fromNumber:    cfg.FromNumber,
		webhookSecret: cfg.WebhookSecret,
		maxSkew:       maxSkew,
		httpClient:    httpClient,
		logger:        logger,
	}, nil
}

// CallContext carries the appointment facts the agent weaves into the call.
type CallContext struct {
	AppointmentID string `json:"appointment_id"`
	PatientName   string `json:"patient_name"`
	Date          string `json:"date"`
	Hour          string `json:"hour"`
	Specialty     string `json:"specialty"`
	Doctor        string `json:"doctor"`
	Greeting      string `json:"greeting"`
}

type startCallRequest struct {
	AgentID          string      `json:"agent_id"`
	FromNumber       string      `json:"from_number"`
	ToNumber         string      `json:"to_number"`
	DynamicVariables CallContext `json:"dynamic_variables"`
}

type startCallResponse struct {
	ConversationID string `json:"conversation_id"`
	CallSID        string `json:"callSid"`
}

// StartCall initiates an outbound reminder call and returns the provider
// conversation id, the join key for later webhook events.
func (c *Client) StartCall(ctx context.Context, to string, callCtx CallContext) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("%w: recipient phone number required", ErrRejected)
	}

	payload, err := json.Marshal(startCallRequest{
		AgentID:          c.agentID,
		FromNumber:       c.fromNumber,
		ToNumber:         to,
		DynamicVariables: callCtx,
	})
	if err != nil {
		return "", fmt.Errorf("voice: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/calls", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("voice: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Info("voice: initiating outbound call",
		"to", maskPhone(to),
		"agent_id", c.agentID,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("voice: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("voice: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("voice: API error",
			"status", resp.StatusCode,
			"to", maskPhone(to),
			"body", string(respBody),
		)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: API returned %d: %s", ErrRejected, resp.StatusCode, string(respBody))
		}
		return "", fmt.Errorf("voice: API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp startCallResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("voice: decode response: %w", err)
	}
	if apiResp.ConversationID == "" {
		return "", fmt.Errorf("voice: response missing conversation id")
	}

	c.logger.Info("voice: outbound call initiated",
		"conversation_id", apiResp.ConversationID,
		"to", maskPhone(to),
	)
	return apiResp.ConversationID, nil
}

// VerifyWebhookSignature validates provider event callbacks. The provider
// signs "{timestamp}.{payload}" with HMAC-SHA256 over the shared secret and
// sends hex(signature) plus the unix timestamp in headers.
func (c *Client) VerifyWebhookSignature(timestamp, signature string, payload []byte) error {
	if c.webhookSecret == "" {
		return errors.New("voice: webhook secret not configured")
	}
	ts := strings.TrimSpace(timestamp)
	if ts == "" {
		return errors.New("voice: missing signature timestamp")
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("voice: invalid signature timestamp: %w", err)
	}
	sentAt := time.Unix(sec, 0)
	if diff := time.Since(sentAt); diff > c.maxSkew || diff < -c.maxSkew {
		return fmt.Errorf("voice: signature timestamp skew %s exceeds limit", diff)
	}
	unsigned := ts + "." + string(payload)
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(unsigned))
	expected := hex.EncodeToString(mac.Sum(nil))
	actual := strings.ToLower(strings.TrimSpace(signature))
	if actual == "" {
		return errors.New("voice: missing signature header")
	}
	if !hmac.Equal([]byte(expected), []byte(actual)) {
		return errors.New("voice: signature mismatch")
	}
	return nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

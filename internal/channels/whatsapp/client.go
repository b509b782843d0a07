package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/citasalud/citasalud-platform/pkg/logging"
)

const defaultSendTimeout = 15 * time.Second

// ErrRejected marks a request the provider refused outright (bad recipient,
// malformed payload). Retrying will not help.
var ErrRejected = errors.New("whatsapp: request rejected")

// Client sends WhatsApp text messages via the Business Cloud API.
type Client struct {
	apiKey     string
	baseURL    string
	fromNumber string
	httpClient *http.Client
	logger     *logging.Logger
}

// ClientConfig configures the WhatsApp sender.
type ClientConfig struct {
	// APIKey is the provider access token (Bearer).
	APIKey string
	// BaseURL is the provider endpoint for the business phone number,
	// e.g. https://graph.facebook.com/v19.0/<phone_number_id>.
	BaseURL string
	// FromNumber is the clinic's WhatsApp number (E.164), used for logging.
	FromNumber string
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// NewClient creates a WhatsApp sender.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("whatsapp: API key required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("whatsapp: base URL required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultSendTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		fromNumber: cfg.FromNumber,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type sendTextRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

type sendTextResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendText delivers a text message and returns the provider message id.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", fmt.Errorf("%w: recipient phone number required", ErrRejected)
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("%w: message body required", ErrRejected)
	}

	payload, err := json.Marshal(sendTextRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             textBody{Body: body},
	})
	if err != nil {
		return "", fmt.Errorf("whatsapp: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("whatsapp: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("whatsapp: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("whatsapp: API error",
			"status", resp.StatusCode,
			"to", maskPhone(to),
			"body", string(respBody),
		)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: API returned %d: %s", ErrRejected, resp.StatusCode, string(respBody))
		}
		return "", fmt.Errorf("whatsapp: API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp sendTextResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("whatsapp: decode response: %w", err)
	}
	if len(apiResp.Messages) == 0 || apiResp.Messages[0].ID == "" {
		return "", fmt.Errorf("whatsapp: response missing message id")
	}

	c.logger.Info("whatsapp: message sent",
		"message_id", apiResp.Messages[0].ID,
		"to", maskPhone(to),
	)
	return apiResp.Messages[0].ID, nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{
		APIKey:     "token",
		BaseURL:    srv.URL,
		FromNumber: "+34911222333",
	})
	require.NoError(t, err)
	return client
}

func TestSendTextReturnsMessageID(t *testing.T) {
	var gotAuth, gotPath string
	var gotReq sendTextRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.abc123"}]}`))
	})

	id, err := client.SendText(context.Background(), "+34600111222", "Hola, le recordamos su cita.")
	require.NoError(t, err)
	assert.Equal(t, "wamid.abc123", id)

	assert.Equal(t, "Bearer token", gotAuth)
	assert.Equal(t, "/messages", gotPath)
	assert.Equal(t, "whatsapp", gotReq.MessagingProduct)
	assert.Equal(t, "+34600111222", gotReq.To)
	assert.Equal(t, "text", gotReq.Type)
	assert.Equal(t, "Hola, le recordamos su cita.", gotReq.Text.Body)
}

func TestSendTextClientErrorIsRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid recipient"}}`, http.StatusBadRequest)
	})

	_, err := client.SendText(context.Background(), "+34600111222", "hola")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestSendTextServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := client.SendText(context.Background(), "+34600111222", "hola")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}

func TestSendTextRateLimitIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.SendText(context.Background(), "+34600111222", "hola")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}

func TestSendTextValidatesInput(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.SendText(context.Background(), "", "hola")
	assert.ErrorIs(t, err, ErrRejected)

	_, err = client.SendText(context.Background(), "+34600111222", "")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestSendTextMissingMessageID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[]}`))
	})

	_, err := client.SendText(context.Background(), "+34600111222", "hola")
	assert.ErrorContains(t, err, "missing message id")
}

func TestNewClientValidatesConfig(t *testing.T) {
	_, err := NewClient(ClientConfig{BaseURL: "https://example.invalid"})
	assert.Error(t, err)

	_, err = NewClient(ClientConfig{APIKey: "token"})
	assert.Error(t, err)
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "********1222", maskPhone("+34600111222"))
	assert.Equal(t, "****", maskPhone("123"))
}

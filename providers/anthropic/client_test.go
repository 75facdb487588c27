package anthropic

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"neuro-news/config"
)

func testClient(baseURL string) *Client {
	cfg := &config.Config{
		AnthropicBaseURL: baseURL,
		AnthropicAPIKey:  "test-key",
		AnthropicModel:   "claude-haiku-4-5-20251001",
	}
	return NewClient(cfg, zap.NewNop())
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "claude-haiku-4-5-20251001", req.Model)
		assert.Equal(t, "system instructions", req.System)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "analyze this", req.Messages[0].Content)

		fmt.Fprint(w, `{"content":[{"type":"text","text":"{\"summary\":\"ok\"}"}],"stop_reason":"end_turn"}`)
	}))
	defer srv.Close()

	text, err := testClient(srv.URL).Complete("system instructions", "analyze this")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, text)
}

func TestCompleteAPIErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"type":"rate_limit_error","message":"Too many requests"}}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Complete("s", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit_error")
	assert.Contains(t, err.Error(), "Too many requests")
}

func TestCompleteAPIErrorWithoutPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Complete("s", "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestCompleteEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"content":[],"stop_reason":"end_turn"}`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Complete("s", "p")
	assert.Error(t, err)
}

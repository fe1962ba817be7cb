package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) Client {
	return NewClient("test-key", option.WithBaseURL(baseURL), option.WithMaxRetries(0))
}

func writeMessage(w http.ResponseWriter, id, text string, usage map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
		"id":          id,
		"type":        "message",
		"role":        "assistant",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"model":       "claude-haiku-4-5-20251001",
		"stop_reason": "end_turn",
		"usage":       usage,
	})
}

func TestSDKClient_Complete(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")
		writeMessage(w, "msg_test_001", `{"еда":"neg"}`, map[string]any{
			"input_tokens":  10,
			"output_tokens": 5,
		})
	}))
	defer ts.Close()

	resp, err := newTestClient(ts.URL).Complete(context.Background(), Request{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 256,
		Prompt:    "Еда в столовой холодная",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_test_001", resp.ID)
	assert.Equal(t, "claude-haiku-4-5-20251001", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, `{"еда":"neg"}`, resp.Text)
	assert.Equal(t, Usage{Input: 10, Output: 5}, resp.Usage)
}

func TestSDKClient_Complete_SendsCachedSystem(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		writeMessage(w, "msg_sys", "{}", map[string]any{
			"input_tokens":            50,
			"output_tokens":           3,
			"cache_read_input_tokens": 4000,
		})
	}))
	defer ts.Close()

	temp := 0.0
	resp, err := newTestClient(ts.URL).Complete(context.Background(), Request{
		Model:       "claude-haiku-4-5-20251001",
		MaxTokens:   128,
		System:      "Ты классифицируешь отзывы о школах",
		CacheSystem: true,
		Prompt:      "Отзыв",
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4000), resp.Usage.CacheRead)

	system, ok := body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
	block := system[0].(map[string]any)
	assert.Equal(t, "Ты классифицируешь отзывы о школах", block["text"])
	cc := block["cache_control"].(map[string]any)
	assert.Equal(t, "ephemeral", cc["type"])
	assert.Equal(t, "1h", cc["ttl"])
}

func TestSDKClient_Complete_Error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"type":  "error",
			"error": map[string]any{"type": "invalid_request_error", "message": "bad"},
		})
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL).Complete(context.Background(), Request{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 16,
		Prompt:    "Привет",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: complete")
}

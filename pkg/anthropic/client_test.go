package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bizdir/internal/resilience"
)

func TestCreateMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-haiku-4-5-20251001", body["model"])
		assert.NotNil(t, body["system"])
		assert.InDelta(t, 0.2, body["temperature"], 0.001)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":   "msg_1",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `{"sentiment":`},
				{"type": "text", "text": `"positive"}`},
			},
			"model":       "claude-haiku-4-5-20251001",
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 42, "output_tokens": 7},
		})
	}))
	defer ts.Close()

	temp := 0.2
	c := NewClient("test-key", option.WithBaseURL(ts.URL))
	resp, err := c.CreateMessage(context.Background(), MessageRequest{
		Model:       "claude-haiku-4-5-20251001",
		MaxTokens:   256,
		System:      "Return JSON.",
		Messages:    []Message{{Role: "user", Content: "Great service"}},
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_1", resp.ID)
	assert.Equal(t, `{"sentiment":"positive"}`, resp.Text())
	assert.Equal(t, int64(42), resp.Usage.InputTokens)
	assert.Equal(t, "end_turn", resp.StopReason)
}

func TestCreateMessage_TransientStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`))
	}))
	defer ts.Close()

	_, err := NewClient("k", option.WithBaseURL(ts.URL)).CreateMessage(context.Background(), MessageRequest{
		Model: "m", MaxTokens: 10, Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
	assert.True(t, resilience.IsTransient(err))
}

func TestCreateMessage_PermanentStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"bad key"}}`))
	}))
	defer ts.Close()

	_, err := NewClient("k", option.WithBaseURL(ts.URL)).CreateMessage(context.Background(), MessageRequest{
		Model: "m", MaxTokens: 10, Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestToSDKMessages_Roles(t *testing.T) {
	out := toSDKMessages([]Message{{Role: "user", Content: "a"}, {Role: "assistant", Content: "b"}})
	require.Len(t, out, 2)
	assert.Equal(t, "user", string(out[0].Role))
	assert.Equal(t, "assistant", string(out[1].Role))
}

package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func completionResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "openai/gpt-4o-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	}
}

func TestClassifyIntentSendsAttributionHeaders(t *testing.T) {
	var gotReferer, gotTitle, gotAuth string
	var gotBody struct {
		Model       string  `json:"model"`
		Temperature float32 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionResponse(`{"type":"find_events","confidence":0.9}`))
	}))
	defer srv.Close()

	client := NewOpenRouterClient("test-key", srv.URL, "openai/gpt-4o-mini", "https://cavens.app", "Cavens Assistant", testLogger())
	raw, err := client.ClassifyIntent(context.Background(), "classify this", "find events tonight")

	require.NoError(t, err)
	assert.Equal(t, `{"type":"find_events","confidence":0.9}`, raw)
	assert.Equal(t, "https://cavens.app", gotReferer)
	assert.Equal(t, "Cavens Assistant", gotTitle)
	assert.Equal(t, "Bearer test-key", gotAuth)

	assert.Equal(t, "openai/gpt-4o-mini", gotBody.Model)
	assert.InDelta(t, classifyTemperature, gotBody.Temperature, 1e-6)
	assert.Equal(t, classifyMaxTokens, gotBody.MaxTokens)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Equal(t, "classify this", gotBody.Messages[0].Content)
	assert.Equal(t, "find events tonight", gotBody.Messages[1].Content)
}

func TestGenerateTextUsesGenerationSettings(t *testing.T) {
	var gotBody struct {
		Temperature float32 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completionResponse("Check out Neon Nights at Blu Dubai."))
	}))
	defer srv.Close()

	client := NewOpenRouterClient("test-key", srv.URL, "openai/gpt-4o-mini", "", "", testLogger())
	text, err := client.GenerateText(context.Background(), "compose", "any parties?")

	require.NoError(t, err)
	assert.Equal(t, "Check out Neon Nights at Blu Dubai.", text)
	assert.InDelta(t, generateTemperature, gotBody.Temperature, 1e-6)
	assert.Equal(t, generateMaxTokens, gotBody.MaxTokens)
}

func TestCompleteSurfacesUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewOpenRouterClient("test-key", srv.URL, "openai/gpt-4o-mini", "", "", testLogger())
	_, err := client.GenerateText(context.Background(), "compose", "hello")

	assert.Error(t, err)
}

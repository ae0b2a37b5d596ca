package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyweave/gamemaster/pkg/llm"
)

func anthropicCompletion(text string) string {
	resp := map[string]any{
		"id":   "msg-1",
		"type": "message",
		"role": "assistant",
		"content": []map[string]string{
			{"type": "text", "text": text},
		},
		"stop_reason": "end_turn",
	}
	data, _ := json.Marshal(resp)
	return string(data)
}

func newTestAnthropic(serverURL string) *AnthropicService {
	svc := NewAnthropicService("test-key", "claude-primary", "claude-fast", testLogger())
	svc.baseURL = serverURL
	svc.retryBase = time.Millisecond
	return svc
}

func TestAnthropicGenerate(t *testing.T) {
	t.Run("returns text block", func(t *testing.T) {
		var gotKey, gotVersion string
		var gotReq anthropicRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get("x-api-key")
			gotVersion = r.Header.Get("anthropic-version")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			w.Write([]byte(anthropicCompletion("The inn is warm.")))
		}))
		defer server.Close()

		text, err := newTestAnthropic(server.URL).Generate(context.Background(), "describe the inn", llm.VariantPrimary)
		require.NoError(t, err)
		assert.Equal(t, "The inn is warm.", text)
		assert.Equal(t, "test-key", gotKey)
		assert.Equal(t, anthropicVersion, gotVersion)
		assert.Equal(t, "claude-primary", gotReq.Model)
	})

	t.Run("fast variant selects the fast model", func(t *testing.T) {
		var gotReq anthropicRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
			w.Write([]byte(anthropicCompletion("3d")))
		}))
		defer server.Close()

		_, err := newTestAnthropic(server.URL).Generate(context.Background(), "translate", llm.VariantFast)
		require.NoError(t, err)
		assert.Equal(t, "claude-fast", gotReq.Model)
	})

	t.Run("missing text block is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":"msg-1","type":"message","content":[]}`))
		}))
		defer server.Close()

		_, err := newTestAnthropic(server.URL).Generate(context.Background(), "p", llm.VariantPrimary)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no text content")
	})

	t.Run("server failure exhausts retries", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := newTestAnthropic(server.URL).Generate(context.Background(), "p", llm.VariantPrimary)
		var genErr *llm.GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, maxAttempts, genErr.Attempts)
	})
}

package openaichat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/inworld-ai/living-memories-unity-sub003/internal/registry"
	"github.com/inworld-ai/living-memories-unity-sub003/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func (r *recorder) last() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bodies[len(r.bodies)-1]
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]any)) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		rec.mu.Lock()
		rec.bodies = append(rec.bodies, body)
		rec.mu.Unlock()
		handler(w, body)
	}))
	t.Cleanup(srv.Close)
	retries := 0
	return New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/", MaxRetries: &retries}), rec
}

const completion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": "Let me check.",
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "weather", "arguments": "{'city': 'Paris',}"}
      }]
    }
  }]
}`

func TestGenerate(t *testing.T) {
	client, rec := newServer(t, func(w http.ResponseWriter, _ map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, completion)
	})

	temp := 0.2
	resp, err := client.Generate(context.Background(), registry.ChatRequest{
		System:      "Be brief.",
		Messages:    []registry.ChatMessage{{Role: "user", Content: "Weather in Paris?"}},
		Tools:       []value.Tool{{Name: "weather", Description: "Look up weather"}},
		Temperature: &temp,
		MaxTokens:   64,
	})
	require.NoError(t, err)
	assert.Equal(t, "Let me check.", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, map[string]any{"city": "Paris"}, resp.ToolCalls[0].Arguments)

	body := rec.last()
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.InDelta(t, 0.2, body["temperature"], 1e-9)
	assert.EqualValues(t, 64, body["max_completion_tokens"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "weather", fn["name"])
}

func TestGenerateAPIError(t *testing.T) {
	client, _ := newServer(t, func(w http.ResponseWriter, _ map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	})
	_, err := client.Generate(context.Background(), registry.ChatRequest{
		Messages: []registry.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai api error")
}

func chunk(delta string) string {
	return fmt.Sprintf(`{"id":"c","object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[{"index":0,"delta":%s}]}`, delta)
}

func TestStream(t *testing.T) {
	client, rec := newServer(t, func(w http.ResponseWriter, _ map[string]any) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range []string{
			`{"role":"assistant","content":"Hel"}`,
			`{"content":"lo"}`,
			`{"tool_calls":[{"index":0,"id":"call_9","type":"function","function":{"name":"wave","arguments":"{\"hand\":"}}]}`,
			`{"tool_calls":[{"index":0,"function":{"arguments":"\"left\"}"}}]}`,
		} {
			fmt.Fprintf(w, "data: %s\n\n", chunk(d))
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	})

	var deltas []string
	resp, err := client.Stream(context.Background(), registry.ChatRequest{
		Model:    "gpt-4.1",
		Messages: []registry.ChatMessage{{Role: "user", Content: "hi"}},
	}, func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)

	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	assert.Equal(t, "Hello", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "wave", resp.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"hand": "left"}, resp.ToolCalls[0].Arguments)
	assert.Equal(t, "gpt-4.1", rec.last()["model"])
	assert.Equal(t, true, rec.last()["stream"])
}

func TestModuleDecodesConfig(t *testing.T) {
	r := registry.New()
	Module{}.Register(r)
	assert.True(t, r.HasProvider(Provider))
}

package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gliderlab/scholarscout/tools"
)

func TestOpenAIClientRoundTrip(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "m",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "add", "arguments": "{\"a\":2,\"b\":3}"}}]
				}
			}]
		}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	catalog := tools.NewCatalog(addTool())

	resp, err := client.Complete(context.Background(), CompletionRequest{
		Model: "m",
		Messages: []Message{
			{Role: RoleSystem, Content: "sys"},
			{Role: RoleUser, Content: "compute 2+3"},
		},
		Tools:       catalog.List(),
		ToolChoice:  "auto",
		Temperature: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, FinishReasonToolCalls, resp.FinishReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "add", resp.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"a":2,"b":3}`, resp.ToolCalls[0].Function.Arguments)

	assert.Equal(t, "m", got["model"])
	assert.Equal(t, "auto", got["tool_choice"])
	assert.Contains(t, got, "temperature")
	toolsSent, ok := got["tools"].([]any)
	require.True(t, ok)
	require.Len(t, toolsSent, 1)
	fn := toolsSent[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "add", fn["name"])
	params := fn["parameters"].(map[string]any)
	assert.Equal(t, "object", params["type"])
	assert.ElementsMatch(t, []any{"a", "b"}, params["required"])
}

func TestOpenAIClientOmitsToolChoiceWithoutTools(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"hello"}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	resp, err := client.Complete(context.Background(), CompletionRequest{
		Model:      "m",
		Messages:   []Message{{Role: RoleUser, Content: "hi"}},
		ToolChoice: "auto",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.NotContains(t, got, "tools")
	assert.NotContains(t, got, "tool_choice")
}

func TestOpenAIClientAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := client.Complete(context.Background(), CompletionRequest{Model: "m", Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestToOpenAIMessagesKeepsToolCorrelation(t *testing.T) {
	out := toOpenAIMessages([]Message{
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Function: FunctionCall{Name: "add", Arguments: "{}"}}}},
		{Role: RoleTool, Content: "5", ToolCallID: "c1"},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "c1", out[0].ToolCalls[0].ID)
	assert.EqualValues(t, "function", out[0].ToolCalls[0].Type)
	assert.Equal(t, "c1", out[1].ToolCallID)
}

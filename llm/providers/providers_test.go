package providers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quickjot/quickjot/llm"
)

func TestRegistry(t *testing.T) {
	for _, name := range []string{"openai", "ollama", "anthropic"} {
		p := llm.GetProvider(name)
		require.NotNil(t, p, "provider %s", name)
		assert.Equal(t, name, p.Name())
	}
}

func TestOpenAI_BuildURL(t *testing.T) {
	p := &OpenAIProvider{}

	assert.Equal(t, "https://api.openai.com/v1/chat/completions", p.BuildURL(""))
	assert.Equal(t, "http://example.com/v1/chat/completions", p.BuildURL("http://example.com/v1/"))
	// Full endpoint URLs pass through unchanged.
	assert.Equal(t, "http://example.com/v1/chat/completions", p.BuildURL("http://example.com/v1/chat/completions"))
}

func TestOllama_BuildURL(t *testing.T) {
	p := &OllamaProvider{}
	assert.Equal(t, "http://localhost:11434/v1/chat/completions", p.BuildURL(""))
}

func TestAnthropic_BuildURL(t *testing.T) {
	p := &AnthropicProvider{}
	assert.Equal(t, "https://api.anthropic.com/v1/messages", p.BuildURL(""))
	assert.Equal(t, "http://example.com/v1/messages", p.BuildURL("http://example.com/"))
}

func TestOpenAI_BuildRequestBody_Schema(t *testing.T) {
	p := &OpenAIProvider{}
	temp := 0.0
	schema := json.RawMessage(`{"type": "object"}`)

	body, err := p.BuildRequestBody("gpt-4o", []llm.Message{
		{Role: "system", Content: "classify"},
		{Role: "user", Content: "buy milk"},
	}, &temp, 200, schema)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))

	assert.Equal(t, "gpt-4o", req["model"])
	assert.Equal(t, float64(0), req["temperature"])
	assert.Equal(t, float64(200), req["max_tokens"])

	rf := req["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", rf["type"])
	js := rf["json_schema"].(map[string]any)
	assert.Equal(t, "result", js["name"])
	assert.Equal(t, map[string]any{"type": "object"}, js["schema"])
}

func TestOpenAI_BuildRequestBody_NoSchema(t *testing.T) {
	p := &OpenAIProvider{}

	body, err := p.BuildRequestBody("gpt-4o", []llm.Message{{Role: "user", Content: "hi"}}, nil, 0, nil)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))

	assert.NotContains(t, req, "response_format")
	assert.NotContains(t, req, "temperature")
	assert.NotContains(t, req, "max_tokens")
}

func TestOpenAI_ParseResponse(t *testing.T) {
	p := &OpenAIProvider{}

	resp, err := p.ParseResponse([]byte(`{
		"model": "gpt-4o-2024-08-06",
		"choices": [{"message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}]
	}`), "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, "gpt-4o-2024-08-06", resp.Model)
	assert.Equal(t, "stop", resp.FinishReason)

	// Model name falls back to the requested one.
	resp, err = p.ParseResponse([]byte(`{"choices": [{"message": {"content": "x"}}]}`), "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", resp.Model)

	_, err = p.ParseResponse([]byte(`{"choices": []}`), "gpt-4o")
	assert.Error(t, err)
}

func TestAnthropic_BuildRequestBody_SchemaInSystemPrompt(t *testing.T) {
	p := &AnthropicProvider{}
	schema := json.RawMessage(`{"type": "object"}`)

	body, err := p.BuildRequestBody("claude-sonnet", []llm.Message{
		{Role: "system", Content: "classify"},
		{Role: "user", Content: "buy milk"},
	}, nil, 0, schema)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))

	// System message is lifted out of the message list.
	messages := req["messages"].([]any)
	require.Len(t, messages, 1)

	system := req["system"].(string)
	assert.Contains(t, system, "classify")
	assert.Contains(t, system, `{"type": "object"}`)

	// Zero maxTokens gets the API-required default.
	assert.Equal(t, float64(4096), req["max_tokens"])
}

func TestAnthropic_ParseResponse(t *testing.T) {
	p := &AnthropicProvider{}

	resp, err := p.ParseResponse([]byte(`{
		"model": "claude-sonnet",
		"content": [{"type": "text", "text": "part one "}, {"type": "text", "text": "part two"}],
		"stop_reason": "end_turn"
	}`), "claude-sonnet")
	require.NoError(t, err)
	assert.Equal(t, "part one part two", resp.Content)
	assert.Equal(t, "end_turn", resp.FinishReason)
}

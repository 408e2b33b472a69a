package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "bare object",
			input:    `{"category": "task"}`,
			expected: `{"category": "task"}`,
		},
		{
			name:     "markdown json fence",
			input:    "Here you go:\n```json\n{\"category\": \"idea\"}\n```\nDone.",
			expected: `{"category": "idea"}`,
		},
		{
			name:     "plain fence without language",
			input:    "```\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "object embedded in prose",
			input:    `Sure! The result is {"category": "misc", "metadata": {}} as requested.`,
			expected: `{"category": "misc", "metadata": {}}`,
		},
		{
			name:     "trailing comma removed",
			input:    "{\"a\": 1,\n\"b\": [1, 2,],\n}",
			expected: "{\"a\": 1,\n\"b\": [1, 2]}",
		},
		{
			name:     "line comment stripped",
			input:    "{\n\"a\": 1 // the count\n}",
			expected: "{\n\"a\": 1\n}",
		},
		{
			name:     "url inside string survives",
			input:    `{"link": "https://example.com/page"}`,
			expected: `{"link": "https://example.com/page"}`,
		},
		{
			name:     "no object present",
			input:    "task",
			expected: "",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSON(tt.input))
		})
	}
}

func TestExtractJSON_ResultParses(t *testing.T) {
	input := "```json\n{\n  \"category\": \"reading\", // label\n  \"metadata\": {\"link\": \"https://go.dev\",},\n}\n```"

	extracted := ExtractJSON(input)
	require.NotEmpty(t, extracted)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(extracted), &parsed))
	assert.Equal(t, "reading", parsed["category"])
}

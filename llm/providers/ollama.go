package providers

import (
	"net/http"
	"os"
	"strings"

	"github.com/quickjot/quickjot/llm"
)

// OllamaProvider implements the OpenAI-compatible API served by Ollama,
// vLLM, and similar local runtimes. Request and response formats are shared
// with OpenAIProvider; only the default URL and auth differ.
type OllamaProvider struct {
	OpenAIProvider // Embed for shared request/response format
}

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// Name returns the provider identifier.
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// BuildURL constructs the chat-completions endpoint.
func (o *OllamaProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "http://localhost:11434/v1"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}

	return baseURL + "/chat/completions"
}

// SetHeaders adds an API key header when one is configured (vLLM,
// OpenRouter, and friends accept the OpenAI bearer convention).
func (o *OllamaProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

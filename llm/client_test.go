package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quickjot/quickjot/llm"
	_ "github.com/quickjot/quickjot/llm/providers" // Register providers
	"github.com/quickjot/quickjot/note"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatFixture wraps content in the OpenAI chat-completions envelope.
func chatFixture(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-123",
		"object":  "chat.completion",
		"created": 1677652288,
		"model":   "test-model",
		"choices": []map[string]any{
			{
				"index": 0,
				"message": map[string]string{
					"role":    "assistant",
					"content": content,
				},
				"finish_reason": "stop",
			},
		},
	}
}

func testEndpoint(serverURL string) llm.Endpoint {
	return llm.Endpoint{
		Provider: "ollama",
		URL:      serverURL,
		Model:    "test-model",
	}
}

func fastRetry() llm.RetryConfig {
	return llm.RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       10 * time.Millisecond,
		BackoffMultiplier: 1.5,
		MaxBackoff:        100 * time.Millisecond,
	}
}

func TestClient_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify request
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatFixture("Hello! How can I help you?"))
	}))
	defer server.Close()

	client := llm.NewClient(testEndpoint(server.URL))

	resp, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: "Hello"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help you?", resp.Content)
	assert.Equal(t, "test-model", resp.Model)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestClient_Complete_RetryOnTransientError(t *testing.T) {
	var attempts atomic.Int32

	// Server that fails first 2 times, then succeeds
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempt := attempts.Add(1)

		if attempt < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Service temporarily unavailable"))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatFixture("Success after retries"))
	}))
	defer server.Close()

	client := llm.NewClient(testEndpoint(server.URL), llm.WithRetryConfig(fastRetry()))

	resp, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: "Test"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "Success after retries", resp.Content)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestClient_Complete_NoRetryOnFatalError(t *testing.T) {
	var attempts atomic.Int32

	// Server that returns 401 Unauthorized (fatal)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Invalid API key"))
	}))
	defer server.Close()

	client := llm.NewClient(testEndpoint(server.URL))

	_, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: "Test"},
		},
	})

	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
	assert.ErrorIs(t, err, llm.ErrAuth)
	assert.Equal(t, int32(1), attempts.Load()) // Only one attempt
}

func TestClient_Complete_RateLimitIsTransient(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte("slow down"))
	}))
	defer server.Close()

	client := llm.NewClient(testEndpoint(server.URL), llm.WithRetryConfig(fastRetry()))

	_, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: "Test"},
		},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrRateLimited)
	assert.Equal(t, int32(3), attempts.Load()) // All attempts consumed
}

func TestClient_Complete_EmptyMessages(t *testing.T) {
	client := llm.NewClient(testEndpoint("http://localhost:1"))

	_, err := client.Complete(context.Background(), llm.Request{})

	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
}

func TestClient_Complete_InputTooLarge(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
	}))
	defer server.Close()

	client := llm.NewClient(testEndpoint(server.URL))

	_, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{
			{Role: "user", Content: strings.Repeat("a", 50001)},
		},
	})

	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
	assert.ErrorIs(t, err, llm.ErrInputTooLarge)
	assert.Equal(t, int32(0), attempts.Load()) // Rejected before any HTTP call
}

func TestClient_Complete_ClampsMaxTokens(t *testing.T) {
	var gotMaxTokens atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MaxTokens int `json:"max_tokens"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotMaxTokens.Store(int64(body.MaxTokens))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatFixture("ok"))
	}))
	defer server.Close()

	client := llm.NewClient(testEndpoint(server.URL))

	_, err := client.Complete(context.Background(), llm.Request{
		Messages:  []llm.Message{{Role: "user", Content: "Test"}},
		MaxTokens: 99999,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(4000), gotMaxTokens.Load())
}

func TestClient_Complete_DefaultMaxTokens(t *testing.T) {
	var gotMaxTokens atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			MaxTokens int `json:"max_tokens"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotMaxTokens.Store(int64(body.MaxTokens))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatFixture("ok"))
	}))
	defer server.Close()

	client := llm.NewClient(testEndpoint(server.URL))

	_, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "Test"}},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(200), gotMaxTokens.Load())
}

func TestClient_Complete_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatFixture("too late"))
	}))
	defer server.Close()

	client := llm.NewClient(testEndpoint(server.URL), llm.WithTimeout(20*time.Millisecond))

	_, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "Test"}},
	})

	require.Error(t, err)
	// A timed-out call already burned its budget; it must not be retried.
	assert.True(t, llm.IsFatal(err))
	assert.ErrorIs(t, err, llm.ErrTimeout)
}

func TestClient_Complete_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatFixture("too late"))
	}))
	defer server.Close()

	client := llm.NewClient(testEndpoint(server.URL))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := client.Complete(ctx, llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "Test"}},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

// recorderStub collects cost entries for assertions.
type recorderStub struct {
	mu      sync.Mutex
	entries []note.CostEntry
	done    chan struct{}
}

func (r *recorderStub) Record(_ context.Context, entry note.CostEntry) error {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	close(r.done)
	return nil
}

func TestClient_Complete_RecordsCost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatFixture("four char groups here"))
	}))
	defer server.Close()

	recorder := &recorderStub{done: make(chan struct{})}

	endpoint := testEndpoint(server.URL)
	client := llm.NewClient(endpoint,
		llm.WithCostRecorder(recorder),
		llm.WithPricing(map[string]llm.Price{
			"test-model": {InputPerToken: 0.001, OutputPerToken: 0.002},
		}),
	)

	resp, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "12345678"}}, // 8 chars = 2 tokens
		Caller:   "classify",
	})
	require.NoError(t, err)

	select {
	case <-recorder.done:
	case <-time.After(2 * time.Second):
		t.Fatal("cost entry was never recorded")
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]

	assert.Equal(t, "classify", entry.Endpoint)
	assert.Equal(t, "test-model", entry.Model)
	assert.Equal(t, 2, entry.InputTokens)
	assert.Equal(t, llm.EstimateTokens("four char groups here"), entry.OutputTokens)
	assert.InDelta(t, float64(entry.InputTokens)*0.001+float64(entry.OutputTokens)*0.002, entry.CostUSD, 1e-9)

	// Usage on the response mirrors the ledger entry.
	assert.Equal(t, entry.InputTokens, resp.Usage.PromptTokens)
	assert.Equal(t, entry.OutputTokens, resp.Usage.CompletionTokens)
	assert.Equal(t, entry.InputTokens+entry.OutputTokens, resp.Usage.TotalTokens)
}

func TestClient_Complete_UnknownProvider(t *testing.T) {
	client := llm.NewClient(llm.Endpoint{Provider: "nope", Model: "m"})

	_, err := client.Complete(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: "user", Content: "Test"}},
	})

	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
}

package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360studio/specforge/llm"
	"github.com/c360studio/specforge/llm/providers"
	"github.com/c360studio/specforge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keys(m map[string]string) llm.CredentialSource {
	return llm.CredentialFunc(func(provider string) (string, bool) {
		v, ok := m[provider]
		return v, ok
	})
}

func openAIServer(t *testing.T, content string, inspect func(r *http.Request, body map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(raw, &body))
		if inspect != nil {
			inspect(r, body)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-123",
			"model": "test-model",
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		})
	}))
}

func TestGateway_Call_FamilyA(t *testing.T) {
	server := openAIServer(t, "```\nlet x = 1\n```", func(r *http.Request, body map[string]any) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer sk-openai", r.Header.Get("Authorization"))

		assert.Equal(t, "gpt-4o", body["model"])
		assert.InDelta(t, 0.2, body["temperature"], 1e-6)
		assert.InDelta(t, 4096, body["max_tokens"], 0)

		messages := body["messages"].([]any)
		require.Len(t, messages, 2)
		system := messages[0].(map[string]any)
		user := messages[1].(map[string]any)
		assert.Equal(t, "system", system["role"])
		assert.Equal(t, llm.DefaultSystemPrompt, system["content"])
		assert.Equal(t, "user", user["role"])
		assert.Equal(t, "specify a queue", user["content"])
	})
	defer server.Close()

	reg := model.DefaultRegistry().With(model.EndpointConfig{Provider: "openai", URL: server.URL + "/v1"})
	gw := llm.NewGateway(reg, keys(map[string]string{"openai": "sk-openai"}), providers.Default())

	got, err := gw.Call(context.Background(), "specify a queue")
	require.NoError(t, err)
	assert.Equal(t, "```\nlet x = 1\n```", got)
}

func TestGateway_Call_CustomSystemPrompt(t *testing.T) {
	server := openAIServer(t, "ok", func(r *http.Request, body map[string]any) {
		messages := body["messages"].([]any)
		require.Len(t, messages, 2)
		assert.Equal(t, "You write Dafny only.", messages[0].(map[string]any)["content"])
	})
	defer server.Close()

	reg := model.DefaultRegistry().With(model.EndpointConfig{Provider: "openai", URL: server.URL + "/v1"})
	gw := llm.NewGateway(reg, keys(map[string]string{"openai": "sk-openai"}), providers.Default(),
		llm.WithSystemPrompt("You write Dafny only."))

	got, err := gw.Call(context.Background(), "specify a queue")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}

func TestGateway_Call_FamilyB(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ant-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, llm.DefaultSystemPrompt, body["system"])
		assert.Len(t, body["messages"], 1)

		w.Write([]byte(`{"content":[{"type":"text","text":"anthropic answer"}]}`))
	}))
	defer server.Close()

	reg := model.DefaultRegistry().With(model.EndpointConfig{Provider: "anthropic", URL: server.URL})
	gw := llm.NewGateway(reg, keys(map[string]string{"anthropic": "ant-key"}), providers.Default(),
		llm.WithPreferredProvider("anthropic"))

	got, err := gw.Call(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "anthropic answer", got)
}

func TestGateway_Call_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer server.Close()

	reg := model.NewRegistry(model.EndpointConfig{Provider: "openai", URL: server.URL, Model: "gpt-4o"})
	gw := llm.NewGateway(reg, keys(map[string]string{"openai": "bad"}), providers.Default())

	_, err := gw.Call(context.Background(), "hello")
	require.Error(t, err)

	var httpErr *llm.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.Status)
	assert.Contains(t, httpErr.Body, "invalid api key")
	assert.True(t, llm.IsFatal(err))
}

func TestGateway_Call_ServerErrorIsTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	reg := model.NewRegistry(model.EndpointConfig{Provider: "openai", URL: server.URL})
	gw := llm.NewGateway(reg, keys(map[string]string{"openai": "k"}), providers.Default())

	_, err := gw.Call(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, llm.IsTransient(err))
	assert.Equal(t, int32(1), calls.Load(), "gateway must not retry")
}

func TestGateway_Call_ParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway</html>`))
	}))
	defer server.Close()

	reg := model.NewRegistry(model.EndpointConfig{Provider: "openai", URL: server.URL})
	gw := llm.NewGateway(reg, keys(map[string]string{"openai": "k"}), providers.Default())

	_, err := gw.Call(context.Background(), "hello")
	var parseErr *llm.ParseError
	require.True(t, errors.As(err, &parseErr), "got %v", err)
}

func TestGateway_Call_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	reg := model.NewRegistry(model.EndpointConfig{Provider: "openai", URL: url})
	gw := llm.NewGateway(reg, keys(map[string]string{"openai": "k"}), providers.Default())

	_, err := gw.Call(context.Background(), "hello")
	var netErr *llm.NetworkError
	require.True(t, errors.As(err, &netErr), "got %v", err)
	assert.Equal(t, "openai", netErr.Provider)
	assert.True(t, llm.IsTransient(err))
}

func TestGateway_Call_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	reg := model.NewRegistry(model.EndpointConfig{Provider: "openai", URL: server.URL})
	gw := llm.NewGateway(reg, keys(map[string]string{"openai": "k"}), providers.Default(),
		llm.WithTimeout(50*time.Millisecond))

	_, err := gw.Call(context.Background(), "hello")
	var netErr *llm.NetworkError
	assert.True(t, errors.As(err, &netErr), "got %v", err)
}

func TestGateway_Call_NoCredential(t *testing.T) {
	gw := llm.NewGateway(model.DefaultRegistry(), keys(nil), providers.Default())

	_, err := gw.Call(context.Background(), "hello")
	assert.ErrorIs(t, err, llm.ErrNoCredential)
}

func TestGateway_Call_UnknownProvider(t *testing.T) {
	reg := model.NewRegistry(model.EndpointConfig{Provider: "bedrock", URL: "http://localhost"})
	gw := llm.NewGateway(reg, keys(map[string]string{"bedrock": "k"}), providers.Default())

	_, err := gw.Call(context.Background(), "hello")
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)
}

func TestGateway_Call_AzureNeedsEndpoint(t *testing.T) {
	gw := llm.NewGateway(model.DefaultRegistry(), keys(map[string]string{"azure": "k"}), providers.Default())

	_, err := gw.Call(context.Background(), "hello")
	assert.ErrorIs(t, err, llm.ErrNoEndpoint)
}

func TestGateway_Call_KeylessEndpoint(t *testing.T) {
	server := openAIServer(t, "local answer", func(r *http.Request, _ map[string]any) {
		assert.Empty(t, r.Header.Get("Authorization"))
	})
	defer server.Close()

	reg := model.NewRegistry(model.EndpointConfig{Provider: "ollama", URL: server.URL, Model: "llama3.2", Keyless: true})
	gw := llm.NewGateway(reg, keys(nil), providers.Default())

	got, err := gw.Call(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "local answer", got)
}

type recorder struct {
	mu      sync.Mutex
	records []*llm.CallRecord
	err     error
}

func (r *recorder) Record(_ context.Context, rec *llm.CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

func TestGateway_Call_RecordsCalls(t *testing.T) {
	server := openAIServer(t, "answer", nil)
	defer server.Close()

	rec := &recorder{err: errors.New("kv unavailable")}
	reg := model.NewRegistry(model.EndpointConfig{Provider: "openai", URL: server.URL, Model: "gpt-4o"})
	gw := llm.NewGateway(reg, keys(map[string]string{"openai": "k"}), providers.Default(),
		llm.WithCallRecorder(rec))

	_, err := gw.Call(context.Background(), "prompt")
	require.NoError(t, err, "recorder failures must not fail the call")

	require.Len(t, rec.records, 1)
	got := rec.records[0]
	assert.NotEmpty(t, got.RequestID)
	assert.Equal(t, "openai", got.Provider)
	assert.Equal(t, "gpt-4o", got.Model)
	assert.Equal(t, llm.CallStatusSuccess, got.Status)
	assert.Equal(t, len("prompt"), got.PromptChars)
	assert.Equal(t, len("answer"), got.ResponseChars)
	assert.False(t, got.CompletedAt.Before(got.StartedAt))
}

func TestGateway_Call_RateLimitHonorsContext(t *testing.T) {
	server := openAIServer(t, "ok", nil)
	defer server.Close()

	reg := model.NewRegistry(model.EndpointConfig{Provider: "openai", URL: server.URL})
	gw := llm.NewGateway(reg, keys(map[string]string{"openai": "k"}), providers.Default(),
		llm.WithRateLimit(0.001, 1))

	_, err := gw.Call(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = gw.Call(ctx, "second")
	var netErr *llm.NetworkError
	assert.True(t, errors.As(err, &netErr), "got %v", err)
}

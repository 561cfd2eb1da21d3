package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/model-router/router/pkg/errors"
	"github.com/model-router/router/pkg/types"
	"github.com/model-router/router/pkg/utils"
)

func newAdapter(t *testing.T, kind, endpoint string) Adapter {
	t.Helper()
	cfg := &types.ProviderConfig{Name: "upstream", Kind: kind, Endpoint: endpoint, Model: "test-model"}
	desc := &types.ProviderDescriptor{
		Name:        "upstream",
		Kind:        kind,
		Endpoint:    endpoint,
		MaxTokens:   2048,
		Temperature: 0.7,
		TopP:        0.9,
	}
	adapter, err := New(cfg, desc, &http.Client{}, utils.NewTestLogger())
	require.NoError(t, err)
	return adapter
}

func TestNewAdapter(t *testing.T) {
	t.Run("UnknownKind", func(t *testing.T) {
		cfg := &types.ProviderConfig{Name: "bad", Kind: "carrier-pigeon", Endpoint: "http://x"}
		_, err := New(cfg, &types.ProviderDescriptor{Name: "bad"}, &http.Client{}, utils.NewTestLogger())
		assert.Error(t, err)
	})

	t.Run("MissingCredentialEnvVar", func(t *testing.T) {
		cfg := &types.ProviderConfig{
			Name:         "secure",
			Kind:         "openai",
			Endpoint:     "http://x",
			APIKeyEnvVar: "ROUTER_TEST_KEY_THAT_DOES_NOT_EXIST",
		}
		_, err := New(cfg, &types.ProviderDescriptor{Name: "secure"}, &http.Client{}, utils.NewTestLogger())
		assert.Error(t, err)
	})

	t.Run("MockKind", func(t *testing.T) {
		cfg := &types.ProviderConfig{Name: "dev", Kind: "mock", Endpoint: "http://x"}
		adapter, err := New(cfg, &types.ProviderDescriptor{Name: "dev"}, nil, utils.NewTestLogger())
		require.NoError(t, err)
		assert.Equal(t, "dev", adapter.Name())
	})
}

func TestOpenAIWireFormat(t *testing.T) {
	t.Run("RequestAndResponseTranslation", func(t *testing.T) {
		var captured openAIRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

			finish := "stop"
			json.NewEncoder(w).Encode(openAIResponse{
				ID:    "cmpl-1",
				Model: "test-model",
				Choices: []openAIChoice{
					{Message: openAIMessage{Role: "assistant", Content: "hello back"}, FinishReason: &finish},
				},
				Usage: openAIUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
			})
		}))
		defer server.Close()

		adapter := newAdapter(t, "openai", server.URL)
		maxTokens := 512
		temperature := 0.2
		result, err := adapter.Generate(context.Background(), &types.GenerationRequest{
			Prompt:      "hello",
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
		require.NoError(t, err)

		assert.Equal(t, "test-model", captured.Model)
		require.Len(t, captured.Messages, 1)
		assert.Equal(t, "user", captured.Messages[0].Role)
		assert.Equal(t, "hello", captured.Messages[0].Content)
		assert.Equal(t, 512, captured.MaxTokens)
		assert.Equal(t, 0.2, captured.Temperature)
		assert.Equal(t, 0.9, captured.TopP)

		assert.Equal(t, "hello back", result.Content)
		assert.Equal(t, "upstream", result.Provider)
		assert.Equal(t, 5, result.Usage["total_tokens"])
	})

	t.Run("DescriptorDefaultsApply", func(t *testing.T) {
		var captured openAIRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&captured)
			json.NewEncoder(w).Encode(openAIResponse{
				Choices: []openAIChoice{{Message: openAIMessage{Content: "ok"}}},
			})
		}))
		defer server.Close()

		adapter := newAdapter(t, "openai", server.URL)
		_, err := adapter.Generate(context.Background(), &types.GenerationRequest{Prompt: "hello"})
		require.NoError(t, err)

		assert.Equal(t, 2048, captured.MaxTokens)
		assert.Equal(t, 0.7, captured.Temperature)
	})

	t.Run("EmptyChoicesIsProtocolError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(openAIResponse{})
		}))
		defer server.Close()

		adapter := newAdapter(t, "openai", server.URL)
		_, err := adapter.Generate(context.Background(), &types.GenerationRequest{Prompt: "hello"})
		require.Error(t, err)

		routerErr, ok := err.(*errors.RouterError)
		require.True(t, ok)
		assert.Equal(t, errors.ErrUpstreamProtocol, routerErr.Code)
	})
}

func TestRunPodWireFormat(t *testing.T) {
	t.Run("RequestAndResponseTranslation", func(t *testing.T) {
		var captured runpodRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/runsync", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

			json.NewEncoder(w).Encode(runpodResponse{
				ID:     "job-1",
				Status: "COMPLETED",
				Output: runpodOutput{Text: "generated text", Tokens: 7},
			})
		}))
		defer server.Close()

		adapter := newAdapter(t, "runpod", server.URL)
		result, err := adapter.Generate(context.Background(), &types.GenerationRequest{Prompt: "draw me a map"})
		require.NoError(t, err)

		assert.Equal(t, "draw me a map", captured.Input.Prompt)
		assert.Equal(t, 2048, captured.Input.MaxTokens)
		assert.Equal(t, "generated text", result.Content)
		assert.Equal(t, 7, result.Usage["total_tokens"])
	})

	t.Run("FailedJobStatus", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(runpodResponse{ID: "job-2", Status: "FAILED"})
		}))
		defer server.Close()

		adapter := newAdapter(t, "runpod", server.URL)
		_, err := adapter.Generate(context.Background(), &types.GenerationRequest{Prompt: "hi"})
		assert.Error(t, err)
	})

	t.Run("JobError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(runpodResponse{ID: "job-3", Status: "COMPLETED", Error: "out of credits"})
		}))
		defer server.Close()

		adapter := newAdapter(t, "runpod", server.URL)
		_, err := adapter.Generate(context.Background(), &types.GenerationRequest{Prompt: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "out of credits")
	})
}

func TestGenerateTransportFailures(t *testing.T) {
	t.Run("Non200Status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream exploded", http.StatusBadGateway)
		}))
		defer server.Close()

		adapter := newAdapter(t, "openai", server.URL)
		_, err := adapter.Generate(context.Background(), &types.GenerationRequest{Prompt: "hi"})
		require.Error(t, err)

		routerErr, ok := err.(*errors.RouterError)
		require.True(t, ok)
		assert.Equal(t, errors.ErrUpstreamProtocol, routerErr.Code)
		assert.Contains(t, routerErr.Details, "upstream exploded")
	})

	t.Run("Timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer server.Close()

		adapter := newAdapter(t, "openai", server.URL)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := adapter.Generate(ctx, &types.GenerationRequest{Prompt: "hi"})
		require.Error(t, err)

		routerErr, ok := err.(*errors.RouterError)
		require.True(t, ok)
		assert.Equal(t, errors.ErrUpstreamTimeout, routerErr.Code)
	})

	t.Run("ConnectionRefused", func(t *testing.T) {
		adapter := newAdapter(t, "openai", "http://127.0.0.1:1")
		_, err := adapter.Generate(context.Background(), &types.GenerationRequest{Prompt: "hi"})
		require.Error(t, err)

		routerErr, ok := err.(*errors.RouterError)
		require.True(t, ok)
		assert.Equal(t, errors.ErrUpstreamProtocol, routerErr.Code)
	})
}

func TestProbe(t *testing.T) {
	t.Run("CustomHealthEndpoint", func(t *testing.T) {
		var path string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		cfg := &types.ProviderConfig{Name: "upstream", Kind: "openai", Endpoint: server.URL}
		desc := &types.ProviderDescriptor{
			Name:           "upstream",
			Endpoint:       server.URL,
			HealthEndpoint: server.URL + "/status",
		}
		adapter, err := New(cfg, desc, &http.Client{}, utils.NewTestLogger())
		require.NoError(t, err)

		require.NoError(t, adapter.Probe(context.Background()))
		assert.Equal(t, "/status", path)
	})

	t.Run("DefaultHealthPath", func(t *testing.T) {
		var path string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		adapter := newAdapter(t, "openai", server.URL)
		require.NoError(t, adapter.Probe(context.Background()))
		assert.Equal(t, "/health", path)
	})
}

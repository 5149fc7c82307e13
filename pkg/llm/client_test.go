package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/config"
)

func TestClient_GenerateResponse(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"}}],"usage":{"prompt_tokens":12,"completion_tokens":4}}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL + "/v1/", Model: "gpt-test", APIKey: "key"}, zap.NewNop())
	require.NoError(t, err)

	res, err := client.GenerateResponse(context.Background(), "draft the bid", "you write bids", 0.2)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, res.Content)
	assert.Equal(t, 12, res.PromptTokens)
	assert.Equal(t, 4, res.CompletionTokens)

	assert.Equal(t, "gpt-test", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "draft the bid", msgs[1].(map[string]any)["content"])
}

func TestClient_GenerateResponse_ClassifiesFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, Model: "gpt-test"}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.GenerateResponse(context.Background(), "p", "s", 0)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestClient_CreateEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25]}],"model":"embed"}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, EmbeddingModel: "embed"}, zap.NewNop())
	require.NoError(t, err)

	vec, err := client.CreateEmbedding(context.Background(), "slice thickness")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, vec)

	chatOnly, err := NewClient(&Config{Endpoint: server.URL, Model: "m"}, zap.NewNop())
	require.NoError(t, err)
	_, err = chatOnly.CreateEmbedding(context.Background(), "x")
	assert.Error(t, err)
}

func TestClient_CreateEmbedding_EnforcesDimensions(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}],"model":"embed"}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, EmbeddingModel: "embed", Dimensions: 4}, zap.NewNop())
	require.NoError(t, err)

	_, err = client.CreateEmbedding(context.Background(), "gantry aperture")
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "expected 4")
	assert.EqualValues(t, 4, got["dimensions"])
}

func TestAnthropicClient_GenerateResponse(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[{"type":"text","text":"{\"a\":"},{"type":"text","text":"1}"}],"stop_reason":"end_turn","usage":{"input_tokens":20,"output_tokens":6}}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient("key", "claude-test", server.URL+"/v1", zap.NewNop())
	require.NoError(t, err)

	res, err := client.GenerateResponse(context.Background(), "draft", "system prompt", 0.1)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, res.Content)
	assert.Equal(t, 20, res.PromptTokens)
	assert.Equal(t, 6, res.CompletionTokens)
	assert.Equal(t, "system prompt", got["system"])
	assert.Equal(t, "claude-test", client.GetModel())
}

func TestNewLLMClient(t *testing.T) {
	logger := zap.NewNop()

	c, err := NewLLMClient(&config.AIConfig{Provider: "none"}, logger)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewLLMClient(&config.AIConfig{Provider: "openai", LLMBaseURL: "http://localhost:1/v1", LLMModel: "m"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &Client{}, c)

	c, err = NewLLMClient(&config.AIConfig{Provider: "anthropic", LLMBaseURL: defaultOpenAIBaseURL, LLMModel: "claude", APIKey: "k"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)

	_, err = NewLLMClient(&config.AIConfig{Provider: "anthropic", LLMModel: "claude"}, logger)
	assert.Error(t, err, "anthropic needs an api key")

	e, err := NewEmbedder(&config.AIConfig{}, logger)
	require.NoError(t, err)
	assert.Nil(t, e)
}

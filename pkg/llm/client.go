package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Config holds configuration for an OpenAI-compatible endpoint.
type Config struct {
	Endpoint       string // Base URL, e.g., "https://api.openai.com/v1"
	Model          string // Chat model used for bid drafting
	EmbeddingModel string // Optional; required only for CreateEmbedding
	APIKey         string // Optional for local endpoints

	// Dimensions, when set, is requested from the embedding endpoint and
	// enforced on every returned vector. It must match the knowledge column.
	Dimensions int
}

// Client drafts bids and embeds knowledge chunks through an
// OpenAI-compatible API.
type Client struct {
	api    *openai.Client
	cfg    Config
	logger *zap.Logger
}

// NewClient creates a client. Either Model or EmbeddingModel must be set.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	switch {
	case cfg.Endpoint == "":
		return nil, fmt.Errorf("endpoint is required")
	case cfg.Model == "" && cfg.EmbeddingModel == "":
		return nil, fmt.Errorf("model is required")
	case cfg.Dimensions < 0:
		return nil, fmt.Errorf("dimensions must not be negative")
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &Client{
		api:    openai.NewClientWithConfig(apiCfg),
		cfg:    *cfg,
		logger: logger.Named("llm"),
	}, nil
}

func (c *Client) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(temperature),
	})
	if err != nil {
		c.logger.Warn("Completion failed",
			zap.String("model", c.cfg.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, ClassifyError(err).withContext(c.cfg.Model, c.cfg.Endpoint)
	}
	if len(resp.Choices) == 0 {
		return nil, NewError(ErrorTypeResponse, "no choices in response", true, nil).withContext(c.cfg.Model, c.cfg.Endpoint)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		c.logger.Warn("Completion truncated at the token limit",
			zap.String("model", c.cfg.Model),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	}

	c.logger.Debug("Completion finished",
		zap.String("model", c.cfg.Model),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerateResponseResult{
		Content:          choice.Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// CreateEmbedding embeds one knowledge passage or search query.
func (c *Client) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if c.cfg.EmbeddingModel == "" {
		return nil, fmt.Errorf("no embedding model configured")
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(c.cfg.EmbeddingModel),
		Input:      []string{input},
		Dimensions: c.cfg.Dimensions,
	})
	if err != nil {
		return nil, ClassifyError(err).withContext(c.cfg.EmbeddingModel, c.cfg.Endpoint)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, NewError(ErrorTypeResponse, "no embedding in response", false, nil).withContext(c.cfg.EmbeddingModel, c.cfg.Endpoint)
	}

	vec := resp.Data[0].Embedding
	if c.cfg.Dimensions > 0 && len(vec) != c.cfg.Dimensions {
		msg := fmt.Sprintf("embedding has %d dimensions, expected %d", len(vec), c.cfg.Dimensions)
		return nil, NewError(ErrorTypeModel, msg, false, nil).withContext(c.cfg.EmbeddingModel, c.cfg.Endpoint)
	}
	return vec, nil
}

// GetModel returns the chat model name.
func (c *Client) GetModel() string {
	return c.cfg.Model
}

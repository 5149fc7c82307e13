package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-bidflow/pkg/config"
)

// NewLLMClient builds the generation client selected by cfg.Provider.
// It returns nil when the provider is "none".
func NewLLMClient(cfg *config.AIConfig, logger *zap.Logger) (LLMClient, error) {
	switch cfg.Provider {
	case "none", "":
		return nil, nil
	case "openai":
		client, err := NewClient(&Config{
			Endpoint: cfg.LLMBaseURL,
			Model:    cfg.LLMModel,
			APIKey:   cfg.APIKey,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "anthropic":
		baseURL := cfg.LLMBaseURL
		if baseURL == defaultOpenAIBaseURL {
			baseURL = ""
		}
		client, err := NewAnthropicClient(cfg.APIKey, cfg.LLMModel, baseURL, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// defaultOpenAIBaseURL is the config default, meaningless for Anthropic.
const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// NewEmbedder builds the embedding client. It returns nil when no embedding
// endpoint is configured.
func NewEmbedder(cfg *config.AIConfig, logger *zap.Logger) (Embedder, error) {
	if !cfg.EmbeddingEnabled() {
		return nil, nil
	}
	key := cfg.EmbeddingKey
	if key == "" {
		key = cfg.APIKey
	}
	client, err := NewClient(&Config{
		Endpoint:       cfg.EmbeddingURL,
		EmbeddingModel: cfg.EmbeddingModel,
		APIKey:         key,
		Dimensions:     cfg.EmbeddingDims,
	}, logger.Named("embedding"))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Package llm talks to the language and embedding models behind bid
// generation and knowledge search.
package llm

import (
	"context"
)

// GenerateResponseResult is a completion plus token usage.
type GenerateResponseResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
}

// LLMClient produces completions. Implementations exist for OpenAI-compatible
// endpoints and for Anthropic.
type LLMClient interface {
	// GenerateResponse sends one system and one user message.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error)

	// GetModel returns the configured model name.
	GetModel() string
}

// Embedder turns text into a vector.
type Embedder interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

var (
	_ LLMClient = (*Client)(nil)
	_ Embedder   = (*Client)(nil)
	_ LLMClient = (*AnthropicClient)(nil)
)

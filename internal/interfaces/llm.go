package interfaces

import (
	"context"
)

// TextRequest is a provider-agnostic text generation request. Provider
// selection is a pure function of the model-name prefix.
type TextRequest struct {
	Prompt       string
	SystemPrompt string
	Model        string
	Temperature  float32
	MaxTokens    int
}

// LLMService is the capability interface over the configured AI providers.
type LLMService interface {
	GenerateText(ctx context.Context, request *TextRequest) (string, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// EmbeddingDimension is fixed at boot by the configured embedding
	// model; artifacts with a different dimensionality are rejected.
	EmbeddingDimension() int

	Close() error
}

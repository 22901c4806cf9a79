package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
)

// Service implements the LLMService interface over the provider factory.
type Service struct {
	factory   *ProviderFactory
	dimension int
	logger    arbor.ILogger
}

// NewService creates a new LLM service
func NewService(config *common.Config, logger arbor.ILogger) interfaces.LLMService {
	factory := NewProviderFactory(&config.Gemini, &config.Claude, &config.LLM, logger)
	return &Service{
		factory:   factory,
		dimension: config.LLM.EmbeddingDimension,
		logger:    logger,
	}
}

// GenerateText generates text via the provider the model name selects.
func (s *Service) GenerateText(ctx context.Context, request *interfaces.TextRequest) (string, error) {
	if request == nil || request.Prompt == "" {
		return "", common.NewError(common.KindValidation, "", "prompt is required")
	}
	return s.factory.GenerateText(ctx, request)
}

// GenerateEmbedding creates a vector embedding for text. The returned
// vector always has EmbeddingDimension elements; a mismatched response is
// an integrity error, not something to store.
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, common.NewError(common.KindValidation, "", "text cannot be empty")
	}

	embedding, err := s.factory.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}

	if s.dimension > 0 && len(embedding) != s.dimension {
		return nil, common.NewError(common.KindIntegrity, "",
			fmt.Sprintf("embedding dimension mismatch: got %d, want %d", len(embedding), s.dimension))
	}

	s.logger.Debug().Int("embedding_dim", len(embedding)).Msg("Generated embedding")
	return embedding, nil
}

// EmbeddingDimension returns the boot-time embedding dimension.
func (s *Service) EmbeddingDimension() int {
	return s.dimension
}

// Close closes the underlying provider clients
func (s *Service) Close() error {
	return s.factory.Close()
}

package qa

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// contextResults is how many stored Q&A pairs ground an ad-hoc answer.
const contextResults = 5

const askSystemPrompt = `You answer reader questions about a publisher's blog content.
Ground your answer in the provided context. If the context does not cover the question, say so briefly.
Answer in plain prose, no markdown headings.`

// AnswerResult is the response payload for an ad-hoc question. Nothing is
// persisted.
type AnswerResult struct {
	Answer  string                 `json:"answer"`
	Sources []*models.SearchResult `json:"sources,omitempty"`
}

// Service answers ad-hoc reader questions by retrieving the publisher's
// nearest stored Q&A pairs and asking the chat model over them.
type Service struct {
	artifacts interfaces.ArtifactStorage
	llm       interfaces.LLMService
	logger    arbor.ILogger
}

// NewService creates a new QA service
func NewService(artifacts interfaces.ArtifactStorage, llm interfaces.LLMService, logger arbor.ILogger) *Service {
	return &Service{
		artifacts: artifacts,
		llm:       llm,
		logger:    logger,
	}
}

// Ask embeds the question, retrieves similar stored Q&A pairs within the
// publisher's domain, and generates a grounded answer.
func (s *Service) Ask(ctx context.Context, question string, publisher *models.Publisher) (*AnswerResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, common.NewError(common.KindValidation, "", "question is required")
	}

	embedding, err := s.llm.GenerateEmbedding(ctx, question)
	if err != nil {
		return nil, err
	}

	sources, err := s.artifacts.SearchSimilar(ctx, embedding, contextResults, publisher.Domain)
	if err != nil {
		return nil, err
	}

	config := publisher.Config
	config.ApplyDefaults()

	answer, err := s.llm.GenerateText(ctx, &interfaces.TextRequest{
		Prompt:       buildAskPrompt(question, sources),
		SystemPrompt: askSystemPrompt,
		Model:        config.ChatModel,
		Temperature:  config.ChatTemperature,
		MaxTokens:    config.ChatMaxTokens,
	})
	if err != nil {
		return nil, err
	}

	return &AnswerResult{
		Answer:  strings.TrimSpace(answer),
		Sources: sources,
	}, nil
}

func buildAskPrompt(question string, sources []*models.SearchResult) string {
	var b strings.Builder
	if len(sources) > 0 {
		b.WriteString("Context from the publisher's blog content:\n\n")
		for i, src := range sources {
			fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n   (%s)\n", i+1, src.Question, src.Answer, src.URL)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("No stored content matched this question.\n\n")
	}
	fmt.Fprintf(&b, "Reader question: %s", question)
	return b.String()
}

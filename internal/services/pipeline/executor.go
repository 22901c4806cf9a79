package pipeline

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// Executor runs a single claimed job end to end: crawl, generate, persist,
// and reconcile slot accounting. It is the one component that catches and
// classifies; no error escapes Run without the job reaching a terminal
// transition or an explicit requeue.
type Executor struct {
	publishers interfaces.PublisherStorage
	jobs       interfaces.JobStorage
	artifacts  interfaces.ArtifactStorage
	crawler    interfaces.CrawlerService
	llm        interfaces.LLMService
	logger     arbor.ILogger
}

// NewExecutor creates a new pipeline executor
func NewExecutor(
	publishers interfaces.PublisherStorage,
	jobs interfaces.JobStorage,
	artifacts interfaces.ArtifactStorage,
	crawler interfaces.CrawlerService,
	llm interfaces.LLMService,
	logger arbor.ILogger,
) *Executor {
	return &Executor{
		publishers: publishers,
		jobs:       jobs,
		artifacts:  artifacts,
		crawler:    crawler,
		llm:        llm,
		logger:     logger,
	}
}

// Run executes a claimed PROCESSING job. The slot accounting rule:
//   - success: release the slot with processed=true, exactly once
//   - transient failure: MarkFailed decides; a REQUEUED job keeps its slot,
//     a PERMANENTLY_FAILED one releases it with processed=false
//   - permanent failure: straight to FAILED, release with processed=false
func (e *Executor) Run(ctx context.Context, job *models.Job) {
	result, err := e.process(ctx, job)
	if err == nil {
		if err := e.jobs.MarkCompleted(ctx, job.ID, result); err != nil {
			e.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to mark job completed")
			return
		}
		if err := e.publishers.ReleaseSlot(ctx, job.PublisherID, true); err != nil {
			e.logger.Error().Err(err).
				Str("job_id", job.ID).
				Str("publisher_id", job.PublisherID).
				Msg("Failed to release slot after completion; reconciler will correct")
		}
		return
	}

	e.logger.Warn().Err(err).
		Str("job_id", job.ID).
		Str("blog_url", job.BlogURL).
		Str("kind", string(common.KindOf(err))).
		Msg("Pipeline run failed")

	if common.IsTransient(err) {
		outcome, markErr := e.jobs.MarkFailed(ctx, job.ID, err.Error())
		if markErr != nil {
			e.logger.Error().Err(markErr).Str("job_id", job.ID).Msg("Failed to mark job failed")
			return
		}
		if outcome == models.FailureOutcomePermanentlyFailed {
			e.releaseAfterFailure(ctx, job)
		}
		return
	}

	if markErr := e.jobs.MarkPermanentlyFailed(ctx, job.ID, err.Error()); markErr != nil {
		e.logger.Error().Err(markErr).Str("job_id", job.ID).Msg("Failed to mark job permanently failed")
		return
	}
	e.releaseAfterFailure(ctx, job)
}

func (e *Executor) releaseAfterFailure(ctx context.Context, job *models.Job) {
	if err := e.publishers.ReleaseSlot(ctx, job.PublisherID, false); err != nil {
		e.logger.Error().Err(err).
			Str("job_id", job.ID).
			Str("publisher_id", job.PublisherID).
			Msg("Failed to release slot after failure; reconciler will correct")
	}
}

// process runs the pipeline steps and returns the completion result or a
// classified error.
func (e *Executor) process(ctx context.Context, job *models.Job) (*models.JobResult, error) {
	config, err := e.effectiveConfig(ctx, job)
	if err != nil {
		return nil, err
	}

	crawled, err := e.crawler.Crawl(ctx, job.BlogURL)
	if err != nil {
		return nil, err
	}

	if _, err := e.artifacts.UpsertBlog(ctx, job.BlogURL, crawled.Title, crawled.Text, nil); err != nil {
		return nil, common.WrapError(common.KindTransientUpstream, "", "failed to store blog", err)
	}

	result := &models.JobResult{Title: crawled.Title}

	var summaryText string
	var keyPoints []string
	if config.GenerateSummary {
		summaryText, keyPoints, err = e.generateSummary(ctx, config, crawled)
		if err != nil {
			return nil, err
		}
		result.SummaryGenerated = true
	}

	questions, err := e.generateQuestions(ctx, config, crawled)
	if err != nil {
		return nil, err
	}
	result.QuestionsGenerated = len(questions)

	inputs := make([]models.QuestionInput, len(questions))
	for i, q := range questions {
		inputs[i] = models.QuestionInput{Question: q.Question, Answer: q.Answer}
	}

	var summaryEmbedding []float32
	if config.GenerateEmbeddings {
		for i := range inputs {
			embedding, err := e.llm.GenerateEmbedding(ctx, inputs[i].Question+"\n"+inputs[i].Answer)
			if err != nil {
				return nil, e.classifyLLMError(err)
			}
			inputs[i].Embedding = embedding
			result.EmbeddingsGenerated++
		}
		if config.GenerateSummary && summaryText != "" {
			summaryEmbedding, err = e.llm.GenerateEmbedding(ctx, summaryText)
			if err != nil {
				return nil, e.classifyLLMError(err)
			}
			result.EmbeddingsGenerated++
		}
	}

	if config.GenerateSummary {
		if _, err := e.artifacts.UpsertSummary(ctx, job.BlogURL, summaryText, keyPoints, summaryEmbedding); err != nil {
			return nil, common.WrapError(common.KindTransientUpstream, "", "failed to store summary", err)
		}
	}

	if _, err := e.artifacts.ReplaceQuestions(ctx, job.BlogURL, inputs); err != nil {
		return nil, common.WrapError(common.KindTransientUpstream, "", "failed to store questions", err)
	}

	return result, nil
}

// effectiveConfig prefers the enqueue-time snapshot so retries run with
// stable parameters even if the publisher edits config mid-flight.
func (e *Executor) effectiveConfig(ctx context.Context, job *models.Job) (*models.PublisherConfig, error) {
	if job.ConfigSnapshot != nil {
		return job.ConfigSnapshot, nil
	}

	publisher, err := e.publishers.GetByID(ctx, job.PublisherID)
	if err != nil {
		if common.KindOf(err) == common.KindNotFound {
			return nil, common.NewError(common.KindPermanentUpstream, common.CodeMissingPublisher,
				fmt.Sprintf("publisher %s no longer exists", job.PublisherID))
		}
		return nil, common.WrapError(common.KindTransientUpstream, "", "failed to load publisher config", err)
	}

	config := publisher.Config
	config.ApplyDefaults()
	return &config, nil
}

func (e *Executor) generateSummary(ctx context.Context, config *models.PublisherConfig, crawled *interfaces.CrawlResult) (string, []string, error) {
	system, user := BuildSummaryPrompt(config.CustomSummaryPrompt, crawled.Title, crawled.Text)

	text, err := e.llm.GenerateText(ctx, &interfaces.TextRequest{
		Prompt:       user,
		SystemPrompt: system,
		Model:        config.LLMModel,
		Temperature:  config.Temperature,
		MaxTokens:    config.MaxTokens,
	})
	if err != nil {
		return "", nil, e.classifyLLMError(err)
	}

	summary, keyPoints, parseErr := ParseSummaryResponse(text)
	if parseErr == nil {
		return summary, keyPoints, nil
	}

	// One reformatting retry before giving up as transient
	text, err = e.reformat(ctx, config, text)
	if err != nil {
		return "", nil, err
	}
	summary, keyPoints, parseErr = ParseSummaryResponse(text)
	if parseErr != nil {
		return "", nil, common.WrapError(common.KindTransientUpstream, "", "summary response unparseable after retry", parseErr)
	}
	return summary, keyPoints, nil
}

func (e *Executor) generateQuestions(ctx context.Context, config *models.PublisherConfig, crawled *interfaces.CrawlResult) ([]questionPayload, error) {
	count := config.QuestionsPerBlog
	if count <= 0 {
		count = 5
	}

	system, user := BuildQuestionPrompt(config.CustomQuestionPrompt, crawled.Title, crawled.Text, count)
	questions, err := e.questionCall(ctx, config, system, user)
	if err != nil {
		return nil, err
	}

	if len(questions) == count {
		return questions, nil
	}
	if len(questions) > count {
		return questions[:count], nil
	}

	// Fewer than requested: retry once with an explicit count reformulation
	e.logger.Debug().
		Int("got", len(questions)).
		Int("want", count).
		Msg("Question count mismatch, retrying with reformulation")

	system, user = BuildQuestionRetryPrompt(config.CustomQuestionPrompt, crawled.Title, crawled.Text, count, len(questions))
	questions, err = e.questionCall(ctx, config, system, user)
	if err != nil {
		return nil, err
	}

	if len(questions) >= count {
		return questions[:count], nil
	}
	return nil, common.NewError(common.KindTransientUpstream, "",
		fmt.Sprintf("model produced %d questions, want %d", len(questions), count))
}

// questionCall performs one generation round with a reformatting retry on
// parse failure.
func (e *Executor) questionCall(ctx context.Context, config *models.PublisherConfig, system, user string) ([]questionPayload, error) {
	text, err := e.llm.GenerateText(ctx, &interfaces.TextRequest{
		Prompt:       user,
		SystemPrompt: system,
		Model:        config.LLMModel,
		Temperature:  config.Temperature,
		MaxTokens:    config.MaxTokens,
	})
	if err != nil {
		return nil, e.classifyLLMError(err)
	}

	questions, parseErr := ParseQuestionResponse(text)
	if parseErr == nil {
		return questions, nil
	}

	text, err = e.reformat(ctx, config, text)
	if err != nil {
		return nil, err
	}
	questions, parseErr = ParseQuestionResponse(text)
	if parseErr != nil {
		return nil, common.WrapError(common.KindTransientUpstream, "", "question response unparseable after retry", parseErr)
	}
	return questions, nil
}

func (e *Executor) reformat(ctx context.Context, config *models.PublisherConfig, malformed string) (string, error) {
	system, user := BuildReformatPrompt(malformed)
	text, err := e.llm.GenerateText(ctx, &interfaces.TextRequest{
		Prompt:       user,
		SystemPrompt: system,
		Model:        config.LLMModel,
		// Reformatting wants determinism, not creativity
		Temperature: 0.1,
		MaxTokens:   config.MaxTokens,
	})
	if err != nil {
		return "", e.classifyLLMError(err)
	}
	return text, nil
}

// classifyLLMError keeps existing classifications and defaults everything
// else to transient. Provider auth/quota misconfiguration arrives already
// classified permanent by the LLM service.
func (e *Executor) classifyLLMError(err error) error {
	switch common.KindOf(err) {
	case common.KindTransientUpstream, common.KindPermanentUpstream:
		return err
	default:
		return common.WrapError(common.KindTransientUpstream, "", "LLM call failed", err)
	}
}

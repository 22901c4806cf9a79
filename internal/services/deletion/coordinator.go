package deletion

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/models"
)

// Coordinator performs admin-initiated blog removal: questions and summary
// first, then the blog. Partial success is reported, not rolled back, and
// repeated invocations are safe.
type Coordinator struct {
	artifacts interfaces.ArtifactStorage
	logger    arbor.ILogger
}

// NewCoordinator creates a new deletion coordinator
func NewCoordinator(artifacts interfaces.ArtifactStorage, logger arbor.ILogger) *Coordinator {
	return &Coordinator{
		artifacts: artifacts,
		logger:    logger,
	}
}

// DeleteBlog removes a blog and all artifacts sharing its URL.
func (c *Coordinator) DeleteBlog(ctx context.Context, blogID string) (*models.DeletionReport, error) {
	report, err := c.artifacts.DeleteBlog(ctx, blogID)
	if err != nil {
		if report != nil && (report.QuestionsDeleted > 0 || report.SummaryDeleted) {
			c.logger.Warn().Err(err).
				Str("blog_id", blogID).
				Int("questions_deleted", report.QuestionsDeleted).
				Bool("summary_deleted", report.SummaryDeleted).
				Msg("Partial blog deletion; retry to finish")
		}
		return report, err
	}
	return report, nil
}

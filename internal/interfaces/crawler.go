package interfaces

import (
	"context"
)

// CrawlResult is the cleaned output of a single page fetch.
type CrawlResult struct {
	URL   string
	Title string
	Text  string // cleaned main content (markdown)
}

// CrawlerService fetches and cleans a blog URL. Failures carry the
// transient/permanent classification via the common error taxonomy.
type CrawlerService interface {
	Crawl(ctx context.Context, url string) (*CrawlResult, error)
}

package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/interfaces"
	"golang.org/x/time/rate"
)

// Service fetches blog pages and extracts their main content as markdown.
// Fetches are rate-limited per host so a burst of jobs against one
// publisher's site stays polite.
type Service struct {
	config     common.CrawlerConfig
	logger     arbor.ILogger
	httpClient *http.Client
	retry      *RetryPolicy

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewService creates a new crawler service
func NewService(config common.CrawlerConfig, logger arbor.ILogger) interfaces.CrawlerService {
	return &Service{
		config: config,
		logger: logger,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		retry:    NewRetryPolicy(),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Crawl fetches a URL and returns its cleaned content. HTTP 4xx (except
// 408/429) and non-HTML content classify as permanent failures; network
// errors and 5xx classify as transient.
func (s *Service) Crawl(ctx context.Context, targetURL string) (*interfaces.CrawlResult, error) {
	host := common.HostOf(targetURL)
	if host == "" {
		return nil, common.NewError(common.KindValidation, "", fmt.Sprintf("invalid URL: %s", targetURL))
	}

	if err := s.limiterFor(host).Wait(ctx); err != nil {
		return nil, err
	}

	var body []byte
	var contentType string

	statusCode, err := s.retry.ExecuteWithRetry(ctx, s.logger, func() (int, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if reqErr != nil {
			return 0, reqErr
		}
		req.Header.Set("User-Agent", s.config.UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")

		resp, respErr := s.httpClient.Do(req)
		if respErr != nil {
			return 0, respErr
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			// Drain so the connection can be reused
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return resp.StatusCode, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, targetURL)
		}

		contentType = resp.Header.Get("Content-Type")

		limited := io.LimitReader(resp.Body, int64(s.config.MaxBodySize)+1)
		data, readErr := io.ReadAll(limited)
		if readErr != nil {
			return resp.StatusCode, readErr
		}
		if len(data) > s.config.MaxBodySize {
			return resp.StatusCode, fmt.Errorf("response body exceeds %d bytes", s.config.MaxBodySize)
		}

		body = data
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, classifyFetchError(statusCode, err)
	}

	if contentType != "" && !strings.Contains(contentType, "html") && !strings.Contains(contentType, "text") {
		return nil, common.NewError(common.KindPermanentUpstream, "",
			fmt.Sprintf("unsupported content type %q for %s", contentType, targetURL))
	}

	result, err := s.extract(targetURL, string(body))
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("url", targetURL).
		Str("title", result.Title).
		Int("content_length", len(result.Text)).
		Msg("Page crawled")

	return result, nil
}

// extract parses the HTML, strips boilerplate, and converts the main
// content region to markdown.
func (s *Service) extract(targetURL, html string) (*interfaces.CrawlResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, common.WrapError(common.KindPermanentUpstream, "",
			fmt.Sprintf("failed to parse HTML from %s", targetURL), err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if og, exists := doc.Find(`meta[property="og:title"]`).Attr("content"); exists && og != "" {
		title = strings.TrimSpace(og)
	}

	doc.Find("script, style, noscript, iframe, nav, header, footer, aside, form").Remove()

	// Prefer a semantic content region; fall back to body.
	content := doc.Find("article").First()
	if content.Length() == 0 {
		content = doc.Find("main").First()
	}
	if content.Length() == 0 {
		content = doc.Find("body").First()
	}
	if content.Length() == 0 {
		return nil, common.NewError(common.KindPermanentUpstream,
			"", fmt.Sprintf("no content found at %s", targetURL))
	}

	contentHTML, err := goquery.OuterHtml(content)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize content: %w", err)
	}

	converter := md.NewConverter(targetURL, true, nil)
	markdown, err := converter.ConvertString(contentHTML)
	if err != nil {
		return nil, common.WrapError(common.KindPermanentUpstream, "",
			fmt.Sprintf("failed to convert content from %s", targetURL), err)
	}

	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return nil, common.NewError(common.KindPermanentUpstream, "",
			fmt.Sprintf("page has no extractable text: %s", targetURL))
	}

	return &interfaces.CrawlResult{
		URL:   targetURL,
		Title: title,
		Text:  markdown,
	}, nil
}

// limiterFor returns the per-host rate limiter, creating it on first use.
func (s *Service) limiterFor(host string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.Burst)
		s.limiters[host] = limiter
	}
	return limiter
}

// classifyFetchError maps a fetch failure onto the transient/permanent
// taxonomy the job state machine consumes.
func classifyFetchError(statusCode int, err error) error {
	if statusCode >= 400 && statusCode < 500 && statusCode != 408 && statusCode != 429 {
		return common.WrapError(common.KindPermanentUpstream, "", "page fetch rejected", err)
	}
	return common.WrapError(common.KindTransientUpstream, "", "page fetch failed", err)
}

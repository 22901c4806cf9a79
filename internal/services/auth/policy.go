package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/models"
)

// Policy enforces the domain-authorization and whitelist rules applied at
// every write boundary.
type Policy struct {
	logger arbor.ILogger
}

// NewPolicy creates a new auth policy
func NewPolicy(logger arbor.ILogger) *Policy {
	return &Policy{logger: logger}
}

// CheckDomain verifies the blog URL's host equals the publisher's domain or
// is a subdomain of it.
func (p *Policy) CheckDomain(normalizedURL string, publisher *models.Publisher) error {
	host := common.HostOf(normalizedURL)
	if !common.IsSameOrSubdomain(host, publisher.Domain) {
		p.logger.Debug().
			Str("host", host).
			Str("domain", publisher.Domain).
			Msg("Domain check failed")
		return common.NewError(common.KindAuth, common.CodeDomainMismatch,
			fmt.Sprintf("URL host %q does not belong to publisher domain %q", host, publisher.Domain))
	}
	return nil
}

// CheckWhitelist verifies the URL against the publisher's whitelist
// patterns. An empty whitelist accepts any URL within the domain. Patterns
// are anchored globs where "*" matches any characters including "/";
// matching is case-insensitive on the host, case-sensitive on the path.
func (p *Policy) CheckWhitelist(normalizedURL string, publisher *models.Publisher) error {
	patterns := publisher.Config.WhitelistedBlogURLs
	if len(patterns) == 0 {
		return nil
	}

	candidate := lowercaseHost(normalizedURL)
	for _, pattern := range patterns {
		matcher, err := glob.Compile(lowercaseHost(pattern))
		if err != nil {
			p.logger.Warn().
				Str("pattern", pattern).
				Str("publisher_id", publisher.ID).
				Err(err).
				Msg("Skipping invalid whitelist pattern")
			continue
		}
		if matcher.Match(candidate) {
			return nil
		}
	}

	p.logger.Debug().
		Str("url", normalizedURL).
		Str("publisher_id", publisher.ID).
		Msg("Whitelist check failed")

	return common.NewError(common.KindAuth, common.CodeNotWhitelisted,
		fmt.Sprintf("URL %q matches no whitelist pattern", normalizedURL))
}

// CheckActive rejects submissions from an inactive publisher account.
func (p *Policy) CheckActive(publisher *models.Publisher) error {
	if publisher.Status == models.PublisherStatusInactive {
		return common.NewError(common.KindAuth, "",
			fmt.Sprintf("publisher %s is inactive", publisher.ID))
	}
	return nil
}

// lowercaseHost lowercases the scheme and host portion of a URL or URL
// pattern, leaving the path untouched. Works on pattern strings that are
// not parseable URLs by falling back to lowercasing up to the first "/"
// after the scheme.
func lowercaseHost(s string) string {
	if parsed, err := url.Parse(s); err == nil && parsed.Host != "" {
		parsed.Scheme = strings.ToLower(parsed.Scheme)
		parsed.Host = strings.ToLower(parsed.Host)
		return parsed.String()
	}

	rest := s
	prefix := ""
	if idx := strings.Index(s, "://"); idx >= 0 {
		prefix = strings.ToLower(s[:idx+3])
		rest = s[idx+3:]
	}
	if idx := strings.Index(rest, "/"); idx >= 0 {
		return prefix + strings.ToLower(rest[:idx]) + rest[idx:]
	}
	return prefix + strings.ToLower(rest)
}

package common

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// NormalizeURL produces the canonical form of a blog URL. Applied at every
// boundary that writes and before every lookup, so two URLs are equivalent
// iff their normalizations are byte-equal.
//
// Rules: default scheme to https, lowercase the host, strip a single leading
// "www.", drop a trailing "/" on non-root paths. Path case, query, and
// fragment are preserved. The function is idempotent.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", NewError(KindValidation, "", "blog URL is required")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", WrapError(KindValidation, "", fmt.Sprintf("invalid URL: %s", raw), err)
	}
	if parsed.Host == "" {
		return "", NewError(KindValidation, "", fmt.Sprintf("URL has no host: %s", raw))
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Host)
	host = strings.TrimPrefix(host, "www.")
	parsed.Host = host

	if len(parsed.Path) > 1 && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String(), nil
}

// NormalizeDomain canonicalizes a publisher domain: lowercase, no leading
// "www.", no port.
func NormalizeDomain(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "www.")
	if idx := strings.Index(domain, ":"); idx >= 0 {
		domain = domain[:idx]
	}
	return strings.TrimSuffix(domain, "/")
}

// HostOf returns the lowercase host of a URL, empty if unparseable.
func HostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// IsSameOrSubdomain reports whether host equals domain or is a subdomain of
// it (suffix match on a dot boundary).
func IsSameOrSubdomain(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	if host == "" || domain == "" {
		return false
	}
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain)
}

// StartOfUTCDay returns midnight UTC of the day containing t. Used for the
// daily completion limit window.
func StartOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
